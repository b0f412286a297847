package observable

import (
	"fmt"

	"github.com/dmc-sim/dmc-sim/sim"
)

// Set is a global observable collection: one observable per configured spec,
// in configuration order, plus the rank metadata summaries normalise with.
// Workers hold one Set for their walkers; the coordinator holds one for the fleet.
type Set struct {
	Meta  sim.ObservableMeta
	Items []sim.Observable
}

// Summary is the reduced form of one observable.
type Summary struct {
	Name  string
	Kind  string
	Stats []sim.Stat
}

// NewSet builds a Set for the observables configured in params.
func NewSet(meta sim.ObservableMeta, params *sim.RunParameters) (*Set, error) {
	items, err := sim.NewObservables(params)
	if err != nil {
		return nil, err
	}
	return &Set{Meta: meta, Items: items}, nil
}

// Fold merges a walker's local observables into the set. locals must have
// been built from the same configuration.
func (s *Set) Fold(locals []sim.Observable) error {
	if len(locals) != len(s.Items) {
		return fmt.Errorf("%w: folding %d observables into a set of %d", ErrKindMismatch, len(locals), len(s.Items))
	}
	for i, o := range locals {
		if err := o.MergeInto(s.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

// Merge folds another set's totals into s. Meta is left alone.
func (s *Set) Merge(other *Set) error {
	return s.Fold(other.Items)
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	items := make([]sim.Observable, len(s.Items))
	for i, o := range s.Items {
		items[i] = o.Clone()
	}
	return &Set{Meta: s.Meta, Items: items}
}

// Reset clears every observable in the set.
func (s *Set) Reset() {
	for _, o := range s.Items {
		o.Reset()
	}
}

// Summaries reduces every observable using the set's metadata.
func (s *Set) Summaries() []Summary {
	out := make([]Summary, len(s.Items))
	for i, o := range s.Items {
		out[i] = Summary{Name: o.Name(), Kind: o.Kind(), Stats: o.Summarize(s.Meta)}
	}
	return out
}
