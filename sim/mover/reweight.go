package mover

import (
	"fmt"
	"math"

	"github.com/dmc-sim/dmc-sim/sim"
)

// Reweighter computes the multiplicative weight factor of one move.
type Reweighter interface {
	Factor(state *sim.WalkerState) float64
}

// Unweighted leaves weights untouched: every move multiplies by exactly 1.
type Unweighted struct{}

// Factor implements Reweighter for Unweighted.
func (Unweighted) Factor(*sim.WalkerState) float64 { return 1 }

// CurrentTilt biases trajectories by their current: each move multiplies the
// weight by exp(Bias * dQ), so branching samples the tilted ensemble.
type CurrentTilt struct {
	Bias float64
}

// Factor implements Reweighter for CurrentTilt.
func (c CurrentTilt) Factor(state *sim.WalkerState) float64 {
	if state.DQ.X == 0 {
		return 1
	}
	return math.Exp(c.Bias * float64(state.DQ.X))
}

// NewReweighter creates a reweighting policy by name.
// Valid names are defined in sim.ValidReweightings; "" defaults to "none".
func NewReweighter(cfg sim.ReweightingConfig) (Reweighter, error) {
	switch cfg.Kind {
	case "", "none":
		return Unweighted{}, nil
	case "current-tilt":
		return CurrentTilt{Bias: cfg.Bias}, nil
	default:
		return nil, fmt.Errorf("%w: reweighting %q", sim.ErrUnknownStrategy, cfg.Kind)
	}
}
