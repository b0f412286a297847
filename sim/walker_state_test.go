package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkerState_PlaceRemoveRelocate(t *testing.T) {
	s := NewWalkerState(CanonicalWeight, 3)
	s.Place(At(4), 0)
	s.Place(At(1), 1)
	s.Place(At(2), 2)
	assert.Equal(t, 3, s.ParticleCount())
	assert.Equal(t, []Site{At(1), At(2), At(4)}, s.Sites())

	s.Relocate(At(2), At(3))
	id, ok := s.Occupied(At(3))
	assert.True(t, ok)
	assert.Equal(t, 2, id)
	_, ok = s.Occupied(At(2))
	assert.False(t, ok)

	assert.Equal(t, 0, s.Remove(At(4)))
	assert.Equal(t, 2, s.ParticleCount())
	assert.NoError(t, s.CheckInvariants(5))
}

func TestWalkerState_ExclusionPanics(t *testing.T) {
	s := NewWalkerState(CanonicalWeight, 0)
	s.Place(At(0), 0)
	assert.Panics(t, func() { s.Place(At(0), 1) })
	assert.Panics(t, func() { s.Remove(At(1)) })
}

func TestWalkerState_CheckInvariants(t *testing.T) {
	tests := []struct {
		name  string
		build func(s *WalkerState)
	}{
		{"site beyond lattice", func(s *WalkerState) { s.Place(At(5), 0) }},
		{"negative site", func(s *WalkerState) { s.Place(At(-1), 0) }},
		{"off-axis site", func(s *WalkerState) { s.Place(Site{X: 1, Y: 1}, 0) }},
		{"duplicate id", func(s *WalkerState) { s.Place(At(0), 7); s.Place(At(1), 7) }},
		{"count drift", func(s *WalkerState) { s.Place(At(0), 0); s.particleCount = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewWalkerState(CanonicalWeight, 0)
			tt.build(s)
			assert.Error(t, s.CheckInvariants(5))
		})
	}
}

func TestWalkerState_CloneIsDeep(t *testing.T) {
	// GIVEN a state with particles, displacement and a non-trivial weight
	s := NewWalkerState(2.5, 9)
	s.Place(At(0), 0)
	s.Place(At(3), 1)
	s.Q = At(4)
	s.LTime = 17
	s.NextParticleID = 2
	s.Serial = 11

	// WHEN it is cloned and the clone mutated
	c := s.Clone()
	c.Remove(At(0))
	c.Place(At(1), 5)
	require.NoError(t, c.Weight.MultUpdate(2))

	// THEN the original is untouched
	assert.Equal(t, []Site{At(0), At(3)}, s.Sites())
	assert.Equal(t, 2.5, s.Weight.Value())
	assert.Equal(t, 5.0, c.Weight.Value())
	assert.Equal(t, uint64(11), c.Serial)
	assert.Equal(t, 9, c.Lineage)
	assert.Equal(t, int64(17), c.LTime)
	assert.Equal(t, At(4), c.Q)
}

func TestWalkerState_CopyFromReusesStorageAndKeepsSerial(t *testing.T) {
	src := NewWalkerState(CanonicalWeight, 1)
	src.Place(At(2), 4)
	src.Serial = 1

	dst := NewWalkerState(CanonicalWeight, 2)
	dst.Place(At(0), 0)
	dst.Place(At(1), 1)
	dst.Serial = 8

	dst.CopyFrom(src)
	assert.Equal(t, []Site{At(2)}, dst.Sites())
	assert.Equal(t, 1, dst.ParticleCount())
	assert.Equal(t, 1, dst.Lineage)
	assert.Equal(t, uint64(8), dst.Serial)

	// a zero-value destination gets its own map
	var fresh WalkerState
	fresh.CopyFrom(src)
	fresh.Place(At(3), 5)
	assert.Equal(t, 1, src.ParticleCount())
}

func TestWalkerState_ClearAndBeginStep(t *testing.T) {
	s := NewWalkerState(3, 4)
	s.Place(At(1), 0)
	s.NextParticleID = 1
	s.DQ, s.Q, s.LTime, s.Accepted = At(1), At(5), 9, true

	s.BeginStep()
	assert.Equal(t, Site{}, s.DQ)
	assert.False(t, s.Accepted)
	assert.Equal(t, At(5), s.Q)

	s.Clear()
	assert.Equal(t, 0, s.ParticleCount())
	assert.Empty(t, s.Occupancy())
	assert.Equal(t, Site{}, s.Q)
	assert.Equal(t, int64(0), s.LTime)
	assert.Equal(t, 0, s.NextParticleID)
	assert.Equal(t, 3.0, s.Weight.Value(), "Clear keeps the weight")
	assert.Equal(t, 4, s.Lineage)
}
