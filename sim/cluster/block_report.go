package cluster

import (
	"fmt"

	"github.com/dmc-sim/dmc-sim/sim/observable"
)

// BlockReport is what a worker contributes to the reduction at the end of a
// block, and what the coordinator holds after folding every contribution.
type BlockReport struct {
	Rank         int
	Block        int
	Contributors int // worker reports folded in (1 for a worker's own report)
	Walkers      int
	Ticks        int64
	Moves        int64
	Accepted     int64
	BranchEvents int
	Culled       int
	Cloned       int
	Stats        *observable.Set
}

// Merge folds other into r. Both must describe the same block.
func (r *BlockReport) Merge(other *BlockReport) error {
	if other.Block != r.Block {
		return fmt.Errorf("%w: reducing block %d, got block %d from rank %d",
			ErrBlockMismatch, r.Block, other.Block, other.Rank)
	}
	r.Contributors += other.Contributors
	r.Walkers += other.Walkers
	if other.Ticks > r.Ticks {
		r.Ticks = other.Ticks
	}
	r.Moves += other.Moves
	r.Accepted += other.Accepted
	r.BranchEvents += other.BranchEvents
	r.Culled += other.Culled
	r.Cloned += other.Cloned
	if other.Stats == nil {
		return nil
	}
	if r.Stats == nil {
		r.Stats = other.Stats.Clone()
		return nil
	}
	return r.Stats.Merge(other.Stats)
}

// AcceptanceRate returns Accepted/Moves, or 0 before any move.
func (r *BlockReport) AcceptanceRate() float64 {
	if r.Moves == 0 {
		return 0
	}
	return float64(r.Accepted) / float64(r.Moves)
}
