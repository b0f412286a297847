package observable

import "github.com/dmc-sim/dmc-sim/sim"

// Basic tracks the current, its variance, the mean density and the mean weight.
//
// Every field but SumWeight is an integer count and merges exactly in any
// order. SumWeight is a float64 sum: with non-unit weights its last bits depend
// on merge order, so mean-weight is reproducible only for a fixed order.
type Basic struct {
	name string

	Steps     int64
	SumDQ     int64
	SumDQ2    int64
	SumN      int64
	SumN2     int64
	SumWeight float64
}

// NewBasic creates an empty Basic observable.
func NewBasic(name string) *Basic {
	return &Basic{name: name}
}

func (b *Basic) Kind() string { return "basic" }
func (b *Basic) Name() string { return b.name }

// Accumulate records the last move's displacement, the particle count and the weight.
func (b *Basic) Accumulate(state *sim.WalkerState) {
	dq := int64(state.DQ.X)
	n := int64(state.ParticleCount())
	b.Steps++
	b.SumDQ += dq
	b.SumDQ2 += dq * dq
	b.SumN += n
	b.SumN2 += n * n
	b.SumWeight += state.Weight.Value()
}

func (b *Basic) MergeInto(global sim.Observable) error {
	g, ok := global.(*Basic)
	if !ok {
		return mismatch(b, global)
	}
	g.Steps += b.Steps
	g.SumDQ += b.SumDQ
	g.SumDQ2 += b.SumDQ2
	g.SumN += b.SumN
	g.SumN2 += b.SumN2
	g.SumWeight += b.SumWeight
	return nil
}

func (b *Basic) Clone() sim.Observable {
	c := *b
	return &c
}

func (b *Basic) Reset() {
	*b = Basic{name: b.name}
}

// Summarize reports the current J = ΣdQ / (steps·dt), its variance per unit
// time, the density ΣN / (steps·L), the variance of N and the mean weight.
func (b *Basic) Summarize(meta sim.ObservableMeta) []sim.Stat {
	stats := []sim.Stat{{Key: "steps", Value: float64(b.Steps)}}
	if b.Steps == 0 || meta.DT <= 0 {
		return stats
	}
	steps := float64(b.Steps)
	meanDQ := float64(b.SumDQ) / steps
	meanN := float64(b.SumN) / steps
	stats = append(stats,
		sim.Stat{Key: "current", Value: meanDQ / meta.DT},
		sim.Stat{Key: "current-variance", Value: (float64(b.SumDQ2)/steps - meanDQ*meanDQ) / meta.DT},
		sim.Stat{Key: "particles", Value: meanN},
		sim.Stat{Key: "particles-variance", Value: float64(b.SumN2)/steps - meanN*meanN},
		sim.Stat{Key: "mean-weight", Value: b.SumWeight / steps},
	)
	if meta.L > 0 {
		stats = append(stats, sim.Stat{Key: "density", Value: meanN / float64(meta.L)})
	}
	return stats
}
