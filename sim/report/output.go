// Package report writes coordinator statistics as CSV files.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/dmc-sim/dmc-sim/sim"
	"github.com/dmc-sim/dmc-sim/sim/observable"
)

// BlockRow is one summary value of one observable for one block.
type BlockRow struct {
	RunID      string  `csv:"run_id"`
	Block      int     `csv:"block"`
	Observable string  `csv:"observable"`
	Kind       string  `csv:"kind"`
	Key        string  `csv:"key"`
	Value      float64 `csv:"value"`
}

// TotalRow is one summary value of one observable over the whole run.
type TotalRow struct {
	RunID      string  `csv:"run_id"`
	Observable string  `csv:"observable"`
	Kind       string  `csv:"kind"`
	Key        string  `csv:"key"`
	Value      float64 `csv:"value"`
}

// OutputManager writes blocks.csv, totals.csv and the resolved config.yaml
// into one directory. A nil *OutputManager discards everything.
type OutputManager struct {
	dir         string
	blocksFile  *os.File
	totalsFile  *os.File
	runID       string
	blockHeader bool
	totalHeader bool
}

// NewOutputManager creates the output directory and files.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir, runID string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, runID: runID}

	f, err := os.Create(filepath.Join(dir, "blocks.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating blocks.csv: %w", err)
	}
	om.blocksFile = f

	f, err = os.Create(filepath.Join(dir, "totals.csv"))
	if err != nil {
		om.blocksFile.Close()
		return nil, fmt.Errorf("creating totals.csv: %w", err)
	}
	om.totalsFile = f

	return om, nil
}

// Dir returns the output directory ("" for a nil manager).
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// WriteConfig saves the resolved run parameters as YAML.
func (om *OutputManager) WriteConfig(params *sim.RunParameters) error {
	if om == nil {
		return nil
	}
	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("writing config.yaml: %w", err)
	}
	return nil
}

// WriteBlock appends the summaries of one block to blocks.csv.
func (om *OutputManager) WriteBlock(block int, summaries []observable.Summary) error {
	if om == nil {
		return nil
	}
	var rows []BlockRow
	for _, s := range summaries {
		for _, st := range s.Stats {
			rows = append(rows, BlockRow{
				RunID: om.runID, Block: block, Observable: s.Name, Kind: s.Kind, Key: st.Key, Value: st.Value,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	if !om.blockHeader {
		if err := gocsv.Marshal(rows, om.blocksFile); err != nil {
			return fmt.Errorf("writing blocks: %w", err)
		}
		om.blockHeader = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(rows, om.blocksFile); err != nil {
			return fmt.Errorf("writing blocks: %w", err)
		}
	}
	return nil
}

// WriteTotals appends the run totals to totals.csv.
func (om *OutputManager) WriteTotals(summaries []observable.Summary) error {
	if om == nil {
		return nil
	}
	var rows []TotalRow
	for _, s := range summaries {
		for _, st := range s.Stats {
			rows = append(rows, TotalRow{
				RunID: om.runID, Observable: s.Name, Kind: s.Kind, Key: st.Key, Value: st.Value,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	if !om.totalHeader {
		if err := gocsv.Marshal(rows, om.totalsFile); err != nil {
			return fmt.Errorf("writing totals: %w", err)
		}
		om.totalHeader = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(rows, om.totalsFile); err != nil {
			return fmt.Errorf("writing totals: %w", err)
		}
	}
	return nil
}

// Close closes both CSV files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return errors.Join(om.blocksFile.Close(), om.totalsFile.Close())
}
