package cluster_test

// Blank import triggers sim/mover's init(), which registers NewMoverFunc.
// This allows package cluster's internal test files to build runners
// without importing sim/mover from non-test code.
import _ "github.com/dmc-sim/dmc-sim/sim/mover"
