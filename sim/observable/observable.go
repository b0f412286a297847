// Package observable provides the statistics accumulated from walker states.
//
// Every kind keeps integer counts (mean weight aside), so merging is exact
// and independent of the order in which walkers or ranks are folded. Local
// and global observables are built by the same New so the two sets always
// line up index by index.
package observable

import (
	"errors"
	"fmt"

	"github.com/dmc-sim/dmc-sim/sim"
)

// ErrKindMismatch is returned when an observable is merged into one of a
// different kind or shape.
var ErrKindMismatch = errors.New("observable kind mismatch")

// Params carries the run parameters observables are shaped by.
type Params struct {
	L              int
	MaxLag         int
	WeightBinWidth float64
}

// ParamsFrom extracts observable parameters from run parameters.
func ParamsFrom(params *sim.RunParameters) Params {
	return Params{
		L:              params.Lattice.Length,
		MaxLag:         params.ObservableParams.MaxLag,
		WeightBinWidth: params.ObservableParams.WeightBinWidth,
	}
}

// New creates an observable of the given kind.
// Valid kinds are defined in sim.ValidObservableKinds.
func New(kind, name string, p Params) (sim.Observable, error) {
	if !sim.ValidObservableKinds[kind] {
		return nil, fmt.Errorf("%w: observable kind %q", sim.ErrUnknownStrategy, kind)
	}
	if p.MaxLag < 0 {
		return nil, fmt.Errorf("%w: max_lag must be >= 0, got %d", sim.ErrConfiguration, p.MaxLag)
	}
	switch kind {
	case "basic":
		return NewBasic(name), nil
	case "density":
		if p.L <= 0 {
			return nil, fmt.Errorf("%w: density needs a positive lattice length, got %d", sim.ErrConfiguration, p.L)
		}
		return NewDensity(name, p.L), nil
	case "q-histogram":
		return NewQHistogram(name), nil
	case "p-histogram":
		return NewPHistogram(name), nil
	case "w-histogram":
		if p.WeightBinWidth <= 0 {
			return nil, fmt.Errorf("%w: weight_bin_width must be > 0, got %g", sim.ErrConfiguration, p.WeightBinWidth)
		}
		return NewWHistogram(name, p.WeightBinWidth), nil
	case "autocorr":
		return NewCurrentAutoCorr(name, p.MaxLag), nil
	case "autocorr-full":
		return NewCountAutoCorr(name, p.MaxLag), nil
	case "autocorr-i":
		return NewIntegratedAutoCorr(name, p.MaxLag), nil
	case "clone-multiplicity":
		return NewCloneMultiplicity(name), nil
	default:
		panic(fmt.Sprintf("unhandled observable kind %q", kind))
	}
}

// FromSpec creates the observable described by spec.
func FromSpec(spec sim.ObservableSpec, params *sim.RunParameters) (sim.Observable, error) {
	return New(spec.Kind, spec.Name, ParamsFrom(params))
}

func mismatch(local, global sim.Observable) error {
	return fmt.Errorf("%w: cannot merge %s %q into %s %q",
		ErrKindMismatch, local.Kind(), local.Name(), global.Kind(), global.Name())
}
