// Package trace provides decision-trace recording for population-control analysis.
// This package has no dependencies on sim/ or sim/cluster/; it stores pure data types.
package trace

// BranchRecord captures a single population-control event on one worker rank.
type BranchRecord struct {
	Rank                int
	Tick                int64 // production tick at which branching ran
	Before              int
	Survivors           int
	Culled              int
	Cloned              int
	Dominant            int     // walkers above the max-weight threshold
	MaxNormalizedWeight float64 // largest weight relative to the rank's mean
}

// MergeRecord captures one block reduction at the coordinator.
type MergeRecord struct {
	Block        int
	Contributors int // worker ranks folded
	TotalWalkers int
	Culled       int // culls reported by all workers during the block
	Cloned       int
}
