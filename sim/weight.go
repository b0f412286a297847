package sim

import (
	"fmt"
	"math"
)

// Weight is a non-negative importance weight.
//
// The value is held as mant * 2^exp with mant normalised into [0.5, 1) by
// math.Frexp, so a long chain of multiplicative updates never overflows or
// underflows the float64 range. Scaling by a power of two is exact, which
// keeps Value() bit-identical to the naive running product whenever that
// product is representable.
//
// MultUpdate and Reset are the only mutators.
type Weight struct {
	mant float64
	exp  int
}

// NewWeight returns a Weight holding v.
// Panics if v is negative or not finite.
func NewWeight(v float64) Weight {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		panic(fmt.Sprintf("NewWeight: invalid initial weight %v", v))
	}
	w := Weight{}
	w.mant, w.exp = math.Frexp(v)
	return w
}

// MultUpdate multiplies the weight by factor.
// A NaN, infinite or negative factor is rejected with ErrNumericAnomaly and
// leaves the weight unchanged.
func (w *Weight) MultUpdate(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor < 0 {
		return fmt.Errorf("weight update by %v: %w", factor, ErrNumericAnomaly)
	}
	if factor == 1 {
		return nil
	}
	m, e := math.Frexp(w.mant * factor)
	if m == 0 {
		w.mant, w.exp = 0, 0
		return nil
	}
	w.mant = m
	w.exp += e
	return nil
}

// Reset sets the weight to v. Used by branching to restore the canonical weight.
// Panics if v is negative or not finite.
func (w *Weight) Reset(v float64) {
	*w = NewWeight(v)
}

// Value returns the weight as a float64. May be +Inf or 0 for weights outside
// the float64 range; use Log for comparisons across walkers.
func (w Weight) Value() float64 {
	return math.Ldexp(w.mant, w.exp)
}

// Log returns the natural logarithm of the weight (-Inf for a zero weight).
func (w Weight) Log() float64 {
	if w.mant == 0 {
		return math.Inf(-1)
	}
	return math.Log(w.mant) + float64(w.exp)*math.Ln2
}

// IsZero reports whether the weight is exactly zero.
func (w Weight) IsZero() bool {
	return w.mant == 0
}

func (w Weight) String() string {
	return fmt.Sprintf("%gx2^%d", w.mant, w.exp)
}
