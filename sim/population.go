package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// CanonicalWeight is the weight every walker carries after branching.
const CanonicalWeight = 1.0

// BranchResult describes one population-control event.
type BranchResult struct {
	Before              int     // population size before branching
	After               int     // population size after branching (always the target)
	Survivors           int     // distinct parents with at least one copy
	Culled              int     // parents with zero copies
	Cloned              int     // extra copies created
	Dominant            int     // walkers whose normalised weight exceeded MaxWeight
	MaxNormalizedWeight float64 // largest weight relative to the population mean
	Copies              []int   // copies per parent slot, in slot order
}

// Population is the index-addressable walker collection of one worker rank.
//
// The slots (walker IDs, local observables, shared random source) are fixed;
// branching regenerates which state each slot holds. A parent state moves into
// its first copy, extra copies are deep copies, and states of culled parents
// return to a pool that later clones are copied into in place. No state is ever
// held by two slots.
//
// Thread-safety: NOT thread-safe. Owned by one rank.
type Population struct {
	walkers    []*Walker
	pool       []*WalkerState
	nextSerial uint64
}

// NewPopulation wraps walkers into a population whose target size is len(walkers).
// Every state receives a distinct Serial. Panics on an empty slice.
func NewPopulation(walkers []*Walker) *Population {
	if len(walkers) == 0 {
		panic("NewPopulation: population must hold at least one walker")
	}
	p := &Population{walkers: walkers}
	for _, w := range walkers {
		w.State.Serial = p.newSerial()
	}
	return p
}

// Len returns the population size.
func (p *Population) Len() int {
	return len(p.walkers)
}

// At returns the walker in slot i.
func (p *Population) At(i int) *Walker {
	return p.walkers[i]
}

// Walkers returns the walker slots. The slice must not be modified.
func (p *Population) Walkers() []*Walker {
	return p.walkers
}

// ResetWeights sets every walker's weight to CanonicalWeight.
func (p *Population) ResetWeights() {
	for _, w := range p.walkers {
		w.State.Weight.Reset(CanonicalWeight)
	}
}

// Branch resamples the population in proportion to weight while keeping its
// size at the target.
//
// Weights are normalised to mean 1 in log space so extreme weights cannot
// overflow. Walkers whose normalised weight falls below cfg.MinWeight are
// culled. The remaining weights are resampled systematically with a single
// uniform draw u: the comb teeth u, u+1, ..., u+N-1 are laid over the
// cumulative normalised weight C, scaled to end exactly at the target N, and
// walker i receives the teeth falling in [C_{i-1}, C_i). Every tooth lands on
// exactly one walker, so the copies always sum to the target, and a zero
// weight spans an empty interval and receives none. Every surviving and
// cloned walker leaves with CanonicalWeight.
//
// Returns ErrNumericAnomaly for a non-finite weight and ErrPopulationCollapse
// when no walker carries weight; the population is unchanged in both cases.
func (p *Population) Branch(rng RandomSource, cfg BranchingConfig) (BranchResult, error) {
	n := len(p.walkers)
	res := BranchResult{Before: n, After: n}

	logs := make([]float64, n)
	maxLog := math.Inf(-1)
	for i, w := range p.walkers {
		l := w.State.Weight.Log()
		if math.IsNaN(l) || math.IsInf(l, 1) {
			return BranchResult{}, fmt.Errorf("walker %d weight %v: %w", w.ID, w.State.Weight, ErrNumericAnomaly)
		}
		logs[i] = l
		if l > maxLog {
			maxLog = l
		}
	}
	if math.IsInf(maxLog, -1) {
		return BranchResult{}, fmt.Errorf("all %d walkers carry zero weight: %w", n, ErrPopulationCollapse)
	}

	rel := make([]float64, n)
	for i, l := range logs {
		rel[i] = math.Exp(l - maxLog)
	}
	scale := float64(n) / floats.Sum(rel)
	for i := range rel {
		norm := rel[i] * scale
		if norm < cfg.MinWeight {
			rel[i] = 0
			continue
		}
		if norm > res.MaxNormalizedWeight {
			res.MaxNormalizedWeight = norm
		}
		if norm > cfg.MaxWeight {
			res.Dominant++
		}
	}
	if floats.Sum(rel) == 0 {
		return BranchResult{}, fmt.Errorf("every walker fell below min weight %g: %w", cfg.MinWeight, ErrPopulationCollapse)
	}

	// C ends at exactly n and no entry may exceed it.
	cum := floats.CumSum(make([]float64, n), rel)
	floats.Scale(float64(n)/cum[n-1], cum)
	last := 0
	for i := range cum {
		cum[i] = math.Min(cum[i], float64(n))
		if rel[i] > 0 {
			last = i
		}
	}
	cum[n-1] = float64(n)

	u := rng.Float64()
	res.Copies = make([]int, n)
	i := 0
	for k := 0; k < n; k++ {
		tooth := float64(k) + u
		for i < last && tooth >= cum[i] {
			i++
		}
		res.Copies[i]++
	}

	p.rebuild(res.Copies)

	for _, c := range res.Copies {
		switch {
		case c == 0:
			res.Culled++
		default:
			res.Survivors++
			res.Cloned += c - 1
		}
	}
	p.ResetWeights()
	return res, nil
}

// rebuild reassigns states to slots according to copies, which must sum to Len().
func (p *Population) rebuild(copies []int) {
	for i, c := range copies {
		if c == 0 {
			p.release(p.walkers[i].State)
		}
	}
	states := make([]*WalkerState, 0, len(p.walkers))
	for i, c := range copies {
		if c == 0 {
			continue
		}
		parent := p.walkers[i].State
		states = append(states, parent)
		for k := 1; k < c; k++ {
			clone := p.acquire()
			clone.CopyFrom(parent)
			clone.Serial = p.newSerial()
			states = append(states, clone)
		}
	}
	if len(states) != len(p.walkers) {
		panic(fmt.Sprintf("Population.rebuild: %d states for %d slots", len(states), len(p.walkers)))
	}
	for i, w := range p.walkers {
		w.State = states[i]
	}
}

func (p *Population) release(s *WalkerState) {
	p.pool = append(p.pool, s)
}

func (p *Population) acquire() *WalkerState {
	if n := len(p.pool); n > 0 {
		s := p.pool[n-1]
		p.pool[n-1] = nil
		p.pool = p.pool[:n-1]
		return s
	}
	return &WalkerState{}
}

func (p *Population) newSerial() uint64 {
	p.nextSerial++
	return p.nextSerial
}
