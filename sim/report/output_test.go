package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmc-sim/dmc-sim/sim"
	"github.com/dmc-sim/dmc-sim/sim/observable"
)

func summaries(current float64) []observable.Summary {
	return []observable.Summary{
		{Name: "flux", Kind: "basic", Stats: []sim.Stat{{Key: "steps", Value: 10}, {Key: "current", Value: current}}},
		{Name: "profile", Kind: "density", Stats: []sim.Stat{{Key: "rho[0]", Value: 0.5}}},
	}
}

func TestNewOutputManager_EmptyDirDisablesOutput(t *testing.T) {
	om, err := NewOutputManager("", "run")
	require.NoError(t, err)
	assert.Nil(t, om)

	// THEN every method is a no-op on the nil manager
	assert.NoError(t, om.WriteBlock(0, summaries(1)))
	assert.NoError(t, om.WriteTotals(summaries(1)))
	assert.NoError(t, om.WriteConfig(&sim.RunParameters{}))
	assert.NoError(t, om.Close())
	assert.Equal(t, "", om.Dir())
}

func TestOutputManager_WritesHeaderOnce(t *testing.T) {
	// GIVEN an output directory
	dir := filepath.Join(t.TempDir(), "out")
	om, err := NewOutputManager(dir, "run-1")
	require.NoError(t, err)

	// WHEN two blocks and the totals are written
	require.NoError(t, om.WriteBlock(0, summaries(0.25)))
	require.NoError(t, om.WriteBlock(1, summaries(0.75)))
	require.NoError(t, om.WriteTotals(summaries(0.5)))
	require.NoError(t, om.Close())

	// THEN blocks.csv parses back into six rows under one header
	data, err := os.ReadFile(filepath.Join(dir, "blocks.csv"))
	require.NoError(t, err)
	var rows []BlockRow
	require.NoError(t, gocsv.UnmarshalBytes(data, &rows))
	require.Len(t, rows, 6)
	assert.Equal(t, BlockRow{RunID: "run-1", Block: 1, Observable: "flux", Kind: "basic", Key: "current", Value: 0.75}, rows[4])

	data, err = os.ReadFile(filepath.Join(dir, "totals.csv"))
	require.NoError(t, err)
	var totals []TotalRow
	require.NoError(t, gocsv.UnmarshalBytes(data, &totals))
	require.Len(t, totals, 3)
	assert.Equal(t, 0.5, totals[1].Value)
}

func TestOutputManager_WriteConfig(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir, "run-2")
	require.NoError(t, err)
	defer om.Close()

	params := &sim.RunParameters{
		Lattice: sim.LatticeConfig{Length: 8, Dimension: 1},
		Walkers: 4,
		Mover:   "sns",
	}
	require.NoError(t, om.WriteConfig(params))

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	parsed, err := sim.ParseRunParameters(data)
	require.NoError(t, err)
	assert.Equal(t, 8, parsed.Lattice.Length)
	assert.Equal(t, "sns", parsed.Mover)
}
