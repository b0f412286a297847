package observable

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/dmc-sim/dmc-sim/sim"
)

// binner maps a state to a histogram bin; ok=false counts the sample as unbinned.
type binner func(state *sim.WalkerState) (bin int, ok bool)

// Histogram counts samples per integer bin. The q-, p- and w-histogram kinds
// differ only in how a state maps to a bin and how a bin is labelled.
type Histogram struct {
	kind  string
	name  string
	bin   binner
	label string  // fmt verb applied to the bin value
	width float64 // bin value = bin * width

	Counts   map[int]int64
	Unbinned int64
}

func newHistogram(kind, name, label string, width float64, bin binner) *Histogram {
	return &Histogram{kind: kind, name: name, bin: bin, label: label, width: width, Counts: make(map[int]int64)}
}

// NewQHistogram histograms the integrated displacement Q.
func NewQHistogram(name string) *Histogram {
	return newHistogram("q-histogram", name, "Q=%g", 1, func(s *sim.WalkerState) (int, bool) {
		return s.Q.X, true
	})
}

// NewPHistogram histograms the particle count N.
func NewPHistogram(name string) *Histogram {
	return newHistogram("p-histogram", name, "N=%g", 1, func(s *sim.WalkerState) (int, bool) {
		return s.ParticleCount(), true
	})
}

// NewWHistogram histograms log(weight) in bins of the given width.
// Zero weights have no logarithm and are counted as unbinned.
func NewWHistogram(name string, width float64) *Histogram {
	return newHistogram("w-histogram", name, "logw=%g", width, func(s *sim.WalkerState) (int, bool) {
		if s.Weight.IsZero() {
			return 0, false
		}
		return int(math.Floor(s.Weight.Log() / width)), true
	})
}

func (h *Histogram) Kind() string { return h.kind }
func (h *Histogram) Name() string { return h.name }

func (h *Histogram) Accumulate(state *sim.WalkerState) {
	b, ok := h.bin(state)
	if !ok {
		h.Unbinned++
		return
	}
	h.Counts[b]++
}

func (h *Histogram) MergeInto(global sim.Observable) error {
	g, ok := global.(*Histogram)
	if !ok || g.kind != h.kind || g.width != h.width {
		return mismatch(h, global)
	}
	for b, c := range h.Counts {
		g.Counts[b] += c
	}
	g.Unbinned += h.Unbinned
	return nil
}

func (h *Histogram) Clone() sim.Observable {
	c := *h
	c.Counts = make(map[int]int64, len(h.Counts))
	for b, n := range h.Counts {
		c.Counts[b] = n
	}
	return &c
}

func (h *Histogram) Reset() {
	clear(h.Counts)
	h.Unbinned = 0
}

// Bins returns the populated bins in ascending order.
func (h *Histogram) Bins() []int {
	bins := make([]int, 0, len(h.Counts))
	for b := range h.Counts {
		bins = append(bins, b)
	}
	sort.Ints(bins)
	return bins
}

// Summarize reports the normalised frequency of every populated bin followed
// by the mean and variance of the binned values.
func (h *Histogram) Summarize(sim.ObservableMeta) []sim.Stat {
	bins := h.Bins()
	values := make([]float64, len(bins))
	weights := make([]float64, len(bins))
	var total float64
	for i, b := range bins {
		values[i] = float64(b) * h.width
		weights[i] = float64(h.Counts[b])
		total += weights[i]
	}

	stats := []sim.Stat{{Key: "samples", Value: total}}
	if h.Unbinned > 0 {
		stats = append(stats, sim.Stat{Key: "unbinned", Value: float64(h.Unbinned)})
	}
	if total == 0 {
		return stats
	}
	for i := range bins {
		stats = append(stats, sim.Stat{Key: fmt.Sprintf(h.label, values[i]), Value: weights[i] / total})
	}
	mean, variance := stat.MeanVariance(values, weights)
	if len(bins) == 1 {
		variance = 0
	}
	return append(stats,
		sim.Stat{Key: "mean", Value: mean},
		sim.Stat{Key: "variance", Value: variance},
	)
}
