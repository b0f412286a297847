package sim

import (
	"math"
	"testing"
	"time"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"max int64", math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

func TestSimulationKey_WallClock(t *testing.T) {
	// GIVEN the wall-clock sentinel
	before := time.Now().Unix()

	// WHEN a key is created
	key := NewSimulationKey(WallClockSeed)

	// THEN it is the current Unix time
	after := time.Now().Unix()
	if int64(key) < before || int64(key) > after {
		t.Errorf("wall-clock key %d outside [%d, %d]", key, before, after)
	}
}

func TestSimulationKey_RankSeed_IsBasePlusRank(t *testing.T) {
	key := NewSimulationKey(1000)
	for rank := 0; rank < 4; rank++ {
		if got := key.RankSeed(rank); got != 1000+int64(rank) {
			t.Errorf("RankSeed(%d) = %d, want %d", rank, got, 1000+rank)
		}
	}
}

func TestSimulationKey_ForRank_Deterministic(t *testing.T) {
	// GIVEN two sources for the same rank and one for another rank
	key := NewSimulationKey(42)
	a, b, other := key.ForRank(1), key.ForRank(1), key.ForRank(2)

	// WHEN both same-rank sources draw
	same := true
	differs := false
	for i := 0; i < 100; i++ {
		x, y, z := a.Int63(), b.Int63(), other.Int63()
		if x != y {
			same = false
		}
		if x != z {
			differs = true
		}
	}

	// THEN same rank means same stream, different rank a different stream
	if !same {
		t.Error("same rank produced different streams")
	}
	if !differs {
		t.Error("different ranks produced identical streams")
	}
}
