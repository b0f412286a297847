// register.go wires the mover constructors into sim.NewMoverFunc. This init()
// runs when any package imports sim/mover, which keeps sim/ (interface owner)
// free of an import on its implementations.

package mover

import (
	"fmt"

	"github.com/dmc-sim/dmc-sim/sim"
)

func init() {
	sim.NewMoverFunc = New
}

// New creates a mover by name (params.Mover).
// Valid names are defined in sim.ValidMovers.
func New(params *sim.RunParameters) (sim.Mover, error) {
	if !sim.ValidMovers[params.Mover] {
		return nil, fmt.Errorf("%w: mover %q", sim.ErrUnknownStrategy, params.Mover)
	}
	switch params.Mover {
	case "sns":
		return NewSNSMover(params)
	default:
		panic(fmt.Sprintf("unhandled mover %q", params.Mover))
	}
}
