package cluster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmc-sim/dmc-sim/sim"
	"github.com/dmc-sim/dmc-sim/sim/observable"
	"github.com/dmc-sim/dmc-sim/sim/report"
	simtrace "github.com/dmc-sim/dmc-sim/sim/trace"
)

// Coordinator is the rank that holds no walkers. Each block it receives every
// worker's contribution, folds it into the run totals and reports it.
//
// Thread-safety: NOT thread-safe. Run from the coordinator's own goroutine;
// read Totals and Blocks only after Run returns.
type Coordinator struct {
	comm   Communicator
	cfg    RankConfig
	params *sim.RunParameters
	log    *logrus.Entry
	output *report.OutputManager
	phase  Phase

	totals *observable.Set
	blocks []*BlockReport
	hasRun bool
}

// NewCoordinator creates the coordinator. output may be nil.
func NewCoordinator(comm Communicator, cfg RankConfig, output *report.OutputManager) (*Coordinator, error) {
	if comm.Rank() != CoordinatorRank {
		return nil, fmt.Errorf("%w: coordinator must be rank %d, got %d", sim.ErrConfiguration, CoordinatorRank, comm.Rank())
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	totals, err := observable.NewSet(cfg.meta(CoordinatorRank), cfg.Params)
	if err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Coordinator{
		comm:   comm,
		cfg:    cfg,
		params: cfg.Params,
		log:    log.WithField("rank", CoordinatorRank),
		output: output,
		totals: totals,
	}, nil
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase { return c.phase }

// Totals returns the observables accumulated over every block.
func (c *Coordinator) Totals() *observable.Set { return c.totals }

// Blocks returns the merged report of every completed block.
func (c *Coordinator) Blocks() []*BlockReport { return c.blocks }

func (c *Coordinator) enter(p Phase) {
	c.log.WithField("from", c.phase).Infof("phase %s", p)
	c.phase = p
}

// Run executes the coordinator's side of the run. Panics if called more than once.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.hasRun {
		panic("Coordinator.Run() called more than once")
	}
	c.hasRun = true
	if err := c.run(ctx); err != nil {
		c.log.WithField("phase", c.phase).Errorf("coordinator failed: %v", err)
		return fmt.Errorf("coordinator: %w", err)
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context) error {
	c.enter(PhaseInitializing)
	c.logConfiguration()
	if err := c.output.WriteConfig(c.params); err != nil {
		return err
	}

	for b := 0; b < c.params.Steps.Bins; b++ {
		c.enter(PhaseMergingStats)
		if err := c.reduceBlock(ctx, b); err != nil {
			return err
		}
	}
	if err := c.output.WriteTotals(c.totals.Summaries()); err != nil {
		return err
	}
	c.logSummaries("totals", c.totals.Summaries())

	c.enter(PhaseFinalizing)
	if err := c.comm.Barrier(ctx); err != nil {
		return fmt.Errorf("final barrier: %w", err)
	}
	c.enter(PhaseTerminated)
	return nil
}

func (c *Coordinator) reduceBlock(ctx context.Context, b int) error {
	ctx, span := tracer.Start(ctx, "Coordinator.ReduceBlock", trace.WithAttributes(attribute.Int("block", b)))
	defer span.End()

	empty := c.totals.Clone()
	empty.Reset()
	base := &BlockReport{Rank: CoordinatorRank, Block: b, Stats: empty}

	start := time.Now()
	merged, err := c.comm.Reduce(ctx, base)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("reducing block %d: %w", b, err)
	}
	c.cfg.Metrics.ObserveMerge(time.Since(start))

	if merged.Contributors != c.cfg.Workers {
		return fmt.Errorf("block %d: %d contributions for %d workers", b, merged.Contributors, c.cfg.Workers)
	}
	if err := c.totals.Merge(merged.Stats); err != nil {
		return fmt.Errorf("folding block %d into totals: %w", b, err)
	}
	c.blocks = append(c.blocks, merged)
	c.cfg.Trace.RecordMerge(simtrace.MergeRecord{
		Block:        b,
		Contributors: merged.Contributors,
		TotalWalkers: merged.Walkers,
		Culled:       merged.Culled,
		Cloned:       merged.Cloned,
	})

	summaries := merged.Stats.Summaries()
	c.log.WithField("block", b).Infof("block %d/%d: %d walkers, %d moves, acceptance %.4f, %d branch events, %d culled, %d cloned",
		b+1, c.params.Steps.Bins, merged.Walkers, merged.Moves, merged.AcceptanceRate(),
		merged.BranchEvents, merged.Culled, merged.Cloned)
	c.logSummaries(fmt.Sprintf("block %d", b), summaries)
	return c.output.WriteBlock(b, summaries)
}

func (c *Coordinator) logSummaries(label string, summaries []observable.Summary) {
	for _, s := range summaries {
		parts := make([]string, len(s.Stats))
		for i, st := range s.Stats {
			parts[i] = fmt.Sprintf("%s=%g", st.Key, st.Value)
		}
		c.log.Infof("%s %s (%s): %s", label, s.Name, s.Kind, strings.Join(parts, " "))
	}
}

func (c *Coordinator) logConfiguration() {
	p := c.params
	rates := p.TransitionRates()
	c.log.Infof("lattice L=%d dimension=%d, %d workers x %d walkers = %d walkers",
		p.Lattice.Length, p.Lattice.Dimension, c.cfg.Workers, p.Walkers, p.TotalWalkers(c.cfg.Workers))
	c.log.Infof("steps: equilibration=%d production=%d bins=%d branch_every=%d",
		p.Steps.Equilibration, p.Steps.Production, p.Steps.Bins, p.Steps.BranchEvery)
	c.log.Infof("beta=%g lmc=%g rmc=%g dt=%g, base seed %d", p.Beta, rates.LMC, rates.RMC, p.DT(), int64(c.cfg.Key))
	c.log.Infof("rates: left_remove=%g right_remove=%g left_move=%g left_insert=%g right_insert=%g",
		p.Rates.LeftRemove, p.Rates.RightRemove, p.Rates.LeftMove, p.Rates.LeftInsert, p.Rates.RightInsert)
	c.log.Infof("mover %s, reweighting %q (bias %g), branching min=%g max=%g",
		p.Mover, p.Reweighting.Kind, p.Reweighting.Bias, p.Branching.MinWeight, p.Branching.MaxWeight)
}
