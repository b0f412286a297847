package observable

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dmc-sim/dmc-sim/sim"
)

// CloneMultiplicity counts walker-steps per lineage. After branching, clones
// inherit their parent's lineage, so the counts show how the population has
// concentrated on a few founding walkers.
type CloneMultiplicity struct {
	name   string
	Counts map[int]int64 // lineage -> walker-steps
}

// NewCloneMultiplicity creates an empty CloneMultiplicity observable.
func NewCloneMultiplicity(name string) *CloneMultiplicity {
	return &CloneMultiplicity{name: name, Counts: make(map[int]int64)}
}

func (c *CloneMultiplicity) Kind() string { return "clone-multiplicity" }
func (c *CloneMultiplicity) Name() string { return c.name }

func (c *CloneMultiplicity) Accumulate(state *sim.WalkerState) {
	c.Counts[state.Lineage]++
}

func (c *CloneMultiplicity) MergeInto(global sim.Observable) error {
	g, ok := global.(*CloneMultiplicity)
	if !ok {
		return mismatch(c, global)
	}
	for l, n := range c.Counts {
		g.Counts[l] += n
	}
	return nil
}

func (c *CloneMultiplicity) Clone() sim.Observable {
	out := NewCloneMultiplicity(c.name)
	for l, n := range c.Counts {
		out.Counts[l] = n
	}
	return out
}

func (c *CloneMultiplicity) Reset() {
	clear(c.Counts)
}

// Summarize reports the number of lineages and their mean and largest
// multiplicity, i.e. walker-steps divided by ticks, where ticks is the total
// walker-steps over meta.TotalWalkers.
func (c *CloneMultiplicity) Summarize(meta sim.ObservableMeta) []sim.Stat {
	stats := []sim.Stat{{Key: "lineages", Value: float64(len(c.Counts))}}
	if len(c.Counts) == 0 || meta.TotalWalkers <= 0 {
		return stats
	}
	lineages := make([]int, 0, len(c.Counts))
	for l := range c.Counts {
		lineages = append(lineages, l)
	}
	sort.Ints(lineages)
	m := make([]float64, len(lineages))
	for i, l := range lineages {
		m[i] = float64(c.Counts[l])
	}
	ticks := floats.Sum(m) / float64(meta.TotalWalkers)
	floats.Scale(1/ticks, m)
	return append(stats,
		sim.Stat{Key: "mean-multiplicity", Value: stat.Mean(m, nil)},
		sim.Stat{Key: "max-multiplicity", Value: floats.Max(m)},
	)
}
