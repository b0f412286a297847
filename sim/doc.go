// Package sim provides the walker engine for population-controlled Monte Carlo
// of the open-boundary exclusion process.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - walker_state.go: occupancy map, weight and per-step displacement of one trajectory
//   - walker.go: a state plus its random source and local observables, stepped by a Mover
//   - population.go: the per-rank walker collection and weight-proportional branching
//
// # Architecture
//
// The sim package defines interfaces and bridge types; implementations live in
// sub-packages:
//   - sim/mover/: the exclusion-process transition rule and reweighting policies
//   - sim/observable/: accumulated statistics and the global observable Set
//   - sim/cluster/: coordinator and worker ranks, communicator, fleet orchestration
//   - sim/report/: CSV reports written by the coordinator
//   - sim/trace/: branching and merge decision records
//
// Sub-packages register their implementations via init() functions that set
// package-level factory variables (NewMoverFunc, NewObservableFunc).
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Mover: initialize a state and apply one elementary transition
//   - Observable: accumulate from a state, merge into a global counterpart, summarize
//   - RandomSource: the uniform variates every stochastic decision draws
package sim
