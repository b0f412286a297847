package observable

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dmc-sim/dmc-sim/sim"
)

// Density counts, per lattice site, the steps at which the site was occupied.
type Density struct {
	name   string
	Steps  int64
	Counts []int64 // indexed by site X
}

// NewDensity creates an empty profile over l sites.
func NewDensity(name string, l int) *Density {
	return &Density{name: name, Counts: make([]int64, l)}
}

func (d *Density) Kind() string { return "density" }
func (d *Density) Name() string { return d.name }

// Accumulate records the occupied sites. Sites outside the profile are ignored.
func (d *Density) Accumulate(state *sim.WalkerState) {
	d.Steps++
	for site := range state.Occupancy() {
		if site.X >= 0 && site.X < len(d.Counts) {
			d.Counts[site.X]++
		}
	}
}

func (d *Density) MergeInto(global sim.Observable) error {
	g, ok := global.(*Density)
	if !ok || len(g.Counts) != len(d.Counts) {
		return mismatch(d, global)
	}
	g.Steps += d.Steps
	for i, c := range d.Counts {
		g.Counts[i] += c
	}
	return nil
}

func (d *Density) Clone() sim.Observable {
	return &Density{name: d.name, Steps: d.Steps, Counts: append([]int64(nil), d.Counts...)}
}

func (d *Density) Reset() {
	d.Steps = 0
	clear(d.Counts)
}

// Profile returns the occupation probability of every site.
func (d *Density) Profile() []float64 {
	rho := make([]float64, len(d.Counts))
	if d.Steps == 0 {
		return rho
	}
	for i, c := range d.Counts {
		rho[i] = float64(c)
	}
	floats.Scale(1/float64(d.Steps), rho)
	return rho
}

// Summarize reports rho[x] for every site plus the profile mean.
func (d *Density) Summarize(sim.ObservableMeta) []sim.Stat {
	rho := d.Profile()
	stats := make([]sim.Stat, 0, len(rho)+2)
	stats = append(stats, sim.Stat{Key: "steps", Value: float64(d.Steps)})
	for x, r := range rho {
		stats = append(stats, sim.Stat{Key: fmt.Sprintf("rho[%d]", x), Value: r})
	}
	if len(rho) > 0 {
		stats = append(stats, sim.Stat{Key: "mean", Value: stat.Mean(rho, nil)})
	}
	return stats
}
