package observable

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/dmc-sim/dmc-sim/sim"
)

// AutoCorr estimates C(k) = <x(t) x(t+k)> - <x>^2 for k in [0, MaxLag] along
// the trajectory a walker slot follows.
//
// The recent history is kept per bound state: when the slot receives another
// state (its Serial changes, e.g. after branching) or the observable is reset,
// pairs spanning the change are not formed.
type AutoCorr struct {
	kind  string
	name  string
	value func(state *sim.WalkerState) int64

	Samples    int64
	Sum        int64
	PairSums   []int64 // Σ x(t)·x(t-k), by lag
	PairCounts []int64 // number of pairs, by lag

	history []int64 // ring buffer of the last len(PairSums) values
	filled  int
	head    int
	serial  uint64
	bound   bool
}

func newAutoCorr(kind, name string, maxLag int, value func(*sim.WalkerState) int64) *AutoCorr {
	return &AutoCorr{
		kind:       kind,
		name:       name,
		value:      value,
		PairSums:   make([]int64, maxLag+1),
		PairCounts: make([]int64, maxLag+1),
		history:    make([]int64, maxLag+1),
	}
}

// NewCurrentAutoCorr correlates the per-step displacement dQ.
func NewCurrentAutoCorr(name string, maxLag int) *AutoCorr {
	return newAutoCorr("autocorr", name, maxLag, func(s *sim.WalkerState) int64 { return int64(s.DQ.X) })
}

// NewCountAutoCorr correlates the particle count N.
func NewCountAutoCorr(name string, maxLag int) *AutoCorr {
	return newAutoCorr("autocorr-full", name, maxLag, func(s *sim.WalkerState) int64 { return int64(s.ParticleCount()) })
}

// NewIntegratedAutoCorr correlates the integrated displacement Q.
func NewIntegratedAutoCorr(name string, maxLag int) *AutoCorr {
	return newAutoCorr("autocorr-i", name, maxLag, func(s *sim.WalkerState) int64 { return int64(s.Q.X) })
}

func (a *AutoCorr) Kind() string { return a.kind }
func (a *AutoCorr) Name() string { return a.name }

// MaxLag returns the largest lag estimated.
func (a *AutoCorr) MaxLag() int { return len(a.PairSums) - 1 }

func (a *AutoCorr) Accumulate(state *sim.WalkerState) {
	if !a.bound || state.Serial != a.serial {
		a.forget()
		a.serial = state.Serial
		a.bound = true
	}
	x := a.value(state)
	a.Samples++
	a.Sum += x

	size := len(a.history)
	a.history[a.head] = x
	if a.filled < size {
		a.filled++
	}
	for k := 0; k < a.filled; k++ {
		prev := a.history[(a.head-k+size)%size]
		a.PairSums[k] += x * prev
		a.PairCounts[k]++
	}
	a.head = (a.head + 1) % size
}

func (a *AutoCorr) forget() {
	a.filled = 0
	a.head = 0
}

func (a *AutoCorr) MergeInto(global sim.Observable) error {
	g, ok := global.(*AutoCorr)
	if !ok || g.kind != a.kind || len(g.PairSums) != len(a.PairSums) {
		return mismatch(a, global)
	}
	g.Samples += a.Samples
	g.Sum += a.Sum
	for k := range a.PairSums {
		g.PairSums[k] += a.PairSums[k]
		g.PairCounts[k] += a.PairCounts[k]
	}
	return nil
}

// Clone copies the accumulated totals. The copy starts with an empty history.
func (a *AutoCorr) Clone() sim.Observable {
	c := newAutoCorr(a.kind, a.name, a.MaxLag(), a.value)
	c.Samples = a.Samples
	c.Sum = a.Sum
	copy(c.PairSums, a.PairSums)
	copy(c.PairCounts, a.PairCounts)
	return c
}

func (a *AutoCorr) Reset() {
	a.Samples = 0
	a.Sum = 0
	clear(a.PairSums)
	clear(a.PairCounts)
	a.forget()
	a.bound = false
}

// Correlation returns C(k) for every lag; lags without pairs report 0.
func (a *AutoCorr) Correlation() []float64 {
	c := make([]float64, len(a.PairSums))
	if a.Samples == 0 {
		return c
	}
	mean := float64(a.Sum) / float64(a.Samples)
	for k := range c {
		if a.PairCounts[k] == 0 {
			continue
		}
		c[k] = float64(a.PairSums[k])/float64(a.PairCounts[k]) - mean*mean
	}
	return c
}

// Summarize reports the mean, C(k) per lag and the integrated correlation
// time 1 + 2 Σ_{k≥1} C(k)/C(0).
func (a *AutoCorr) Summarize(sim.ObservableMeta) []sim.Stat {
	stats := []sim.Stat{{Key: "samples", Value: float64(a.Samples)}}
	if a.Samples == 0 {
		return stats
	}
	stats = append(stats, sim.Stat{Key: "mean", Value: float64(a.Sum) / float64(a.Samples)})
	c := a.Correlation()
	for k, v := range c {
		stats = append(stats, sim.Stat{Key: fmt.Sprintf("C[%d]", k), Value: v})
	}
	if len(c) > 1 && c[0] != 0 {
		stats = append(stats, sim.Stat{Key: "tau", Value: 1 + 2*floats.Sum(c[1:])/c[0]})
	}
	return stats
}
