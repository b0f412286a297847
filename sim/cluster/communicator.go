package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// CoordinatorRank is the rank of the process that holds no walkers and
// receives every reduction.
const CoordinatorRank = 0

// ErrBlockMismatch is returned when a reduction receives a contribution for a
// block other than the one being reduced.
var ErrBlockMismatch = errors.New("block index mismatch")

// Communicator provides the collective operations ranks synchronise through.
type Communicator interface {
	Rank() int
	Size() int
	// Barrier blocks until every rank has reached it or ctx is done.
	Barrier(ctx context.Context) error
	// Reduce contributes report to the reduction for report.Block. At the
	// coordinator it returns report with every worker's contribution folded
	// in, in rank order; at workers it returns nil. Reduce is a rendezvous:
	// no rank leaves it before every rank has entered it.
	Reduce(ctx context.Context, report *BlockReport) (*BlockReport, error)
}

// hub is the state shared by the communicators of one local fleet.
type hub struct {
	size  int
	inbox chan *BlockReport

	mu      sync.Mutex
	arrived int
	release chan struct{}
}

// NewLocalFleet returns size in-process communicators, one per rank, meant to
// be driven by one goroutine each. Panics if size < 2.
func NewLocalFleet(size int) []Communicator {
	if size < 2 {
		panic(fmt.Sprintf("NewLocalFleet: need a coordinator and at least one worker, got size %d", size))
	}
	h := &hub{
		size:    size,
		inbox:   make(chan *BlockReport, 2*size),
		release: make(chan struct{}),
	}
	comms := make([]Communicator, size)
	for rank := range comms {
		comms[rank] = &localComm{rank: rank, hub: h}
	}
	return comms
}

type localComm struct {
	rank int
	hub  *hub
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.hub.size }

func (c *localComm) Barrier(ctx context.Context) error {
	h := c.hub
	h.mu.Lock()
	gen := h.release
	h.arrived++
	if h.arrived == h.size {
		h.arrived = 0
		h.release = make(chan struct{})
		close(gen)
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	select {
	case <-gen:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reduce sends a worker's report before the barrier; the coordinator drains
// the inbox after it. Reports of block N are all queued before barrier N
// opens, and the inbox is FIFO, so the coordinator's drain never sees a
// report of block N+1 ahead of one of block N.
func (c *localComm) Reduce(ctx context.Context, report *BlockReport) (*BlockReport, error) {
	if report == nil {
		return nil, errors.New("reduce: nil report")
	}
	if c.rank != CoordinatorRank {
		select {
		case c.hub.inbox <- report:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return nil, c.Barrier(ctx)
	}

	if err := c.Barrier(ctx); err != nil {
		return nil, err
	}
	contributions := make([]*BlockReport, 0, c.hub.size-1)
	for len(contributions) < c.hub.size-1 {
		select {
		case r := <-c.hub.inbox:
			contributions = append(contributions, r)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	sort.Slice(contributions, func(i, j int) bool { return contributions[i].Rank < contributions[j].Rank })
	for _, r := range contributions {
		if err := report.Merge(r); err != nil {
			return nil, fmt.Errorf("reducing rank %d: %w", r.Rank, err)
		}
	}
	return report, nil
}
