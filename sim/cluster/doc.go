// Package cluster runs the walker engine across ranks: rank 0 coordinates and
// holds no walkers, ranks 1..N each own a private walker population.
//
// Ranks only meet through a Communicator (a barrier and a reduction); walkers
// never migrate between ranks. NewLocalFleet connects ranks running as
// goroutines of one process, and FleetSimulator wires a whole run together.
package cluster
