package sim

import "fmt"

// Observable accumulates a statistic from walker states once per production
// step and folds into a global counterpart of the same kind.
//
// Merge must be associative and commutative so that the order in which ranks
// report does not change the totals.
type Observable interface {
	Kind() string
	Name() string
	// Accumulate records one step of state. Call once per step, after the move.
	Accumulate(state *WalkerState)
	// MergeInto folds the receiver's totals into global. Errors if kinds differ.
	MergeInto(global Observable) error
	// Clone returns a deep copy of the accumulated totals, without step history.
	Clone() Observable
	// Reset clears all accumulated totals and history.
	Reset()
	// Summarize reduces the totals to named values, normalised using meta.
	Summarize(meta ObservableMeta) []Stat
}

// ObservableMeta carries the rank metadata a global observable normalises with.
type ObservableMeta struct {
	Rank         int
	TotalProcs   int
	TotalWalkers int
	L            int
	DT           float64
}

// Stat is one named summary value of an observable.
type Stat struct {
	Key   string
	Value float64
}

// NewObservableFunc is the observable factory. Set by sim/observable's init().
var NewObservableFunc func(spec ObservableSpec, params *RunParameters) (Observable, error)

// NewObservables builds one observable per configured spec, in configuration
// order. Used for both the per-walker and the global sets so they never diverge.
// Panics if no implementation package has been imported.
func NewObservables(params *RunParameters) ([]Observable, error) {
	if NewObservableFunc == nil {
		panic("NewObservableFunc not registered: import sim/observable to register it")
	}
	obs := make([]Observable, 0, len(params.Observables))
	for _, spec := range params.Observables {
		o, err := NewObservableFunc(spec, params)
		if err != nil {
			return nil, fmt.Errorf("creating observable %q: %w", spec.Name, err)
		}
		obs = append(obs, o)
	}
	return obs, nil
}
