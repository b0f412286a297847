// Package testutil provides shared test infrastructure for the walker engine:
// scripted random sources and float assertions used across sim/, sim/mover/,
// sim/observable/ and sim/cluster/ tests.
package testutil

import (
	"math"
	"testing"
)

// ScriptedSource is a random source that replays fixed sequences.
// Intn returns the next scripted integer (which must lie in [0, n)) and
// Float64 the next scripted real. It fails the test when a sequence runs dry
// or a scripted integer is out of range.
type ScriptedSource struct {
	t      testing.TB
	Ints   []int
	Floats []float64
}

// NewScriptedSource creates a ScriptedSource bound to t.
func NewScriptedSource(t testing.TB, ints []int, floats []float64) *ScriptedSource {
	return &ScriptedSource{t: t, Ints: ints, Floats: floats}
}

// Intn implements sim.RandomSource.
func (s *ScriptedSource) Intn(n int) int {
	s.t.Helper()
	if len(s.Ints) == 0 {
		s.t.Fatalf("ScriptedSource: Intn(%d) called with no scripted integers left", n)
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v < 0 || v >= n {
		s.t.Fatalf("ScriptedSource: scripted integer %d outside [0, %d)", v, n)
	}
	return v
}

// Float64 implements sim.RandomSource.
func (s *ScriptedSource) Float64() float64 {
	s.t.Helper()
	if len(s.Floats) == 0 {
		s.t.Fatal("ScriptedSource: Float64 called with no scripted reals left")
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}

// Drained reports whether every scripted value has been consumed.
func (s *ScriptedSource) Drained() bool {
	return len(s.Ints) == 0 && len(s.Floats) == 0
}

// ConstantSource returns the same values on every draw.
type ConstantSource struct {
	Int   int
	Float float64
}

// Intn implements sim.RandomSource. The constant is reduced modulo n.
func (c ConstantSource) Intn(n int) int { return c.Int % n }

// Float64 implements sim.RandomSource.
func (c ConstantSource) Float64() float64 { return c.Float }

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
