package sim

import "fmt"

// Mover proposes and applies elementary transitions on a walker state.
// One Mover is shared by every walker on a rank; it only holds read-only
// parameters, so all per-walker bookkeeping lives in the WalkerState.
type Mover interface {
	// Initialize clears the state and populates it with the initial particle configuration.
	Initialize(state *WalkerState, rng RandomSource) error
	// Move performs exactly one elementary transition. Rejection is a normal outcome.
	Move(state *WalkerState, rng RandomSource) error
}

// NewMoverFunc is the mover factory. Set by sim/mover's init() so that this
// package can build movers without importing its implementations.
var NewMoverFunc func(params *RunParameters) (Mover, error)

// NewMover creates the mover selected by params.Mover.
// Panics if no implementation package has been imported.
func NewMover(params *RunParameters) (Mover, error) {
	if NewMoverFunc == nil {
		panic("NewMoverFunc not registered: import sim/mover to register it")
	}
	m, err := NewMoverFunc(params)
	if err != nil {
		return nil, fmt.Errorf("creating mover %q: %w", params.Mover, err)
	}
	return m, nil
}
