package sim

import "errors"

// Sentinel error kinds. Callers wrap them with fmt.Errorf("...: %w", ...) and
// test with errors.Is. Every one of them is fatal for the rank that hits it;
// a rejected move is never reported as an error.
var (
	// ErrConfiguration covers a missing or malformed run file and a dimension mismatch.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownStrategy is returned for an unrecognized mover or observable kind.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrPopulationCollapse is returned when branching would leave no live walkers.
	ErrPopulationCollapse = errors.New("population collapse")

	// ErrNumericAnomaly is returned when a weight update produces a non-finite or negative weight.
	ErrNumericAnomaly = errors.New("numeric anomaly")
)
