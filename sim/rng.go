package sim

import (
	"math/rand"
	"time"
)

// RandomSource is the uniform-variate capability every stochastic decision
// draws from. *rand.Rand satisfies it; tests substitute scripted sources.
type RandomSource interface {
	// Intn returns a uniform integer in [0, n).
	Intn(n int) int
	// Float64 returns a uniform real in [0, 1).
	Float64() float64
}

// === SimulationKey ===

// SimulationKey is the base seed of a run. Two runs with the same key, the
// same configuration and the same number of ranks produce identical results.
type SimulationKey int64

// WallClockSeed is the configured seed value that asks for a seed derived from the wall clock.
const WallClockSeed = -1

// NewSimulationKey creates a SimulationKey from a configured seed.
// WallClockSeed resolves to the current Unix time in seconds.
func NewSimulationKey(seed int64) SimulationKey {
	if seed == WallClockSeed {
		return SimulationKey(time.Now().Unix())
	}
	return SimulationKey(seed)
}

// RankSeed returns the seed for a given rank: base seed plus rank.
func (k SimulationKey) RankSeed(rank int) int64 {
	return int64(k) + int64(rank)
}

// ForRank returns the process-wide random source for a rank. All walkers on
// that rank share it, and every draw goes through it.
//
// Thread-safety: NOT thread-safe. Must only be used by the owning rank.
func (k SimulationKey) ForRank(rank int) *rand.Rand {
	return rand.New(rand.NewSource(k.RankSeed(rank)))
}
