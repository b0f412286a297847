package sim

import "fmt"

// Walker couples a WalkerState, the rank's random source and the walker's
// local observables into one steppable unit.
//
// The state is owned; the random source is shared with every other walker on
// the rank. Local observables stay with the walker slot across branching and
// are rebound to whatever state the slot holds.
type Walker struct {
	ID          int
	State       *WalkerState
	Observables []Observable
	rng         RandomSource
}

// NewWalker creates a walker. Panics if state or rng is nil.
func NewWalker(id int, state *WalkerState, rng RandomSource, observables []Observable) *Walker {
	if state == nil {
		panic("NewWalker: nil state")
	}
	if rng == nil {
		panic("NewWalker: nil random source")
	}
	return &Walker{ID: id, State: state, Observables: observables, rng: rng}
}

// RNG returns the shared random source the walker draws from.
func (w *Walker) RNG() RandomSource {
	return w.rng
}

// Initialize resets the walker's state through the mover.
func (w *Walker) Initialize(m Mover) error {
	if err := m.Initialize(w.State, w.rng); err != nil {
		return fmt.Errorf("walker %d: initialize: %w", w.ID, err)
	}
	return nil
}

// Step advances the walker by one move.
func (w *Walker) Step(m Mover) error {
	if err := m.Move(w.State, w.rng); err != nil {
		return fmt.Errorf("walker %d at step %d: %w", w.ID, w.State.LTime, err)
	}
	return nil
}

// Measure feeds the current state to every local observable.
func (w *Walker) Measure() {
	for _, o := range w.Observables {
		o.Accumulate(w.State)
	}
}

// ResetObservables clears the walker's local observables.
func (w *Walker) ResetObservables() {
	for _, o := range w.Observables {
		o.Reset()
	}
}
