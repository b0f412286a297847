package cluster

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmc-sim/dmc-sim/sim"
	"github.com/dmc-sim/dmc-sim/sim/observable"
	simtrace "github.com/dmc-sim/dmc-sim/sim/trace"
)

var tracer = otel.Tracer("dmc-sim.cluster")

// RankConfig is what every rank needs besides its communicator.
type RankConfig struct {
	Params  *sim.RunParameters
	Key     sim.SimulationKey
	Workers int
	Log     *logrus.Entry
	Metrics *Metrics
	Trace   *simtrace.SimulationTrace
}

func (c RankConfig) meta(rank int) sim.ObservableMeta {
	return sim.ObservableMeta{
		Rank:         rank,
		TotalProcs:   c.Workers + 1,
		TotalWalkers: c.Params.TotalWalkers(c.Workers),
		L:            c.Params.Lattice.Length,
		DT:           c.Params.DT(),
	}
}

// Runner drives the walker population of one worker rank through
// equilibration, production with periodic branching, block reductions and
// the closing barrier.
//
// Thread-safety: NOT thread-safe. Run from the rank's own goroutine.
type Runner struct {
	comm   Communicator
	cfg    RankConfig
	params *sim.RunParameters
	rank   int
	log    *logrus.Entry
	phase  Phase

	rng    *rand.Rand
	mover  sim.Mover
	pop    *sim.Population
	global *observable.Set
	tick   int64 // production ticks completed, counted from 1
	hasRun bool

	block BlockReport // counters of the block in progress
}

// NewRunner validates the rank's configuration and builds its mover.
// Walkers are created by Run.
func NewRunner(comm Communicator, cfg RankConfig) (*Runner, error) {
	if comm.Rank() == CoordinatorRank {
		return nil, fmt.Errorf("%w: rank %d is the coordinator and holds no walkers", sim.ErrConfiguration, comm.Rank())
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	mover, err := sim.NewMover(cfg.Params)
	if err != nil {
		return nil, err
	}
	global, err := observable.NewSet(cfg.meta(comm.Rank()), cfg.Params)
	if err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{
		comm:   comm,
		cfg:    cfg,
		params: cfg.Params,
		rank:   comm.Rank(),
		log:    log.WithField("rank", comm.Rank()),
		mover:  mover,
		global: global,
	}, nil
}

// Phase returns the current phase.
func (r *Runner) Phase() Phase { return r.phase }

// Population returns the walker population (nil before Run).
func (r *Runner) Population() *sim.Population { return r.pop }

func (r *Runner) enter(p Phase) {
	level := logrus.InfoLevel
	if p == PhaseBranching || (p == PhaseProducing && r.phase == PhaseBranching) {
		level = logrus.DebugLevel
	}
	r.log.WithFields(logrus.Fields{"from": r.phase, "tick": r.tick}).Logf(level, "phase %s", p)
	r.phase = p
}

// Run executes the rank's whole run. Panics if called more than once.
// Any error is fatal for the rank and is logged before it is returned.
func (r *Runner) Run(ctx context.Context) error {
	if r.hasRun {
		panic("Runner.Run() called more than once")
	}
	r.hasRun = true
	if err := r.run(ctx); err != nil {
		r.log.WithField("phase", r.phase).Errorf("rank failed: %v", err)
		return fmt.Errorf("rank %d: %w", r.rank, err)
	}
	return nil
}

func (r *Runner) run(ctx context.Context) error {
	r.enter(PhaseInitializing)
	if err := r.initialize(); err != nil {
		return err
	}

	r.enter(PhaseEquilibrating)
	if err := r.equilibrate(ctx); err != nil {
		return err
	}

	for b := 0; b < r.params.Steps.Bins; b++ {
		r.enter(PhaseProducing)
		if err := r.produce(ctx, b); err != nil {
			return err
		}
		r.enter(PhaseMergingStats)
		if err := r.mergeStats(ctx, b); err != nil {
			return err
		}
	}

	r.enter(PhaseFinalizing)
	if err := r.comm.Barrier(ctx); err != nil {
		return fmt.Errorf("final barrier: %w", err)
	}
	r.enter(PhaseTerminated)
	return nil
}

// initialize builds walkerCount walkers with global ids (rank-1)*walkerCount+w,
// all drawing from one rank RNG seeded with seed+rank.
func (r *Runner) initialize() error {
	seed := r.cfg.Key.RankSeed(r.rank)
	r.rng = r.cfg.Key.ForRank(r.rank)
	r.log.Infof("seed %d (base %d)", seed, int64(r.cfg.Key))

	n := r.params.Walkers
	walkers := make([]*sim.Walker, n)
	for w := 0; w < n; w++ {
		id := (r.rank-1)*n + w
		obs, err := sim.NewObservables(r.params)
		if err != nil {
			return err
		}
		walkers[w] = sim.NewWalker(id, sim.NewWalkerState(sim.CanonicalWeight, id), r.rng, obs)
		if err := walkers[w].Initialize(r.mover); err != nil {
			return err
		}
	}
	r.pop = sim.NewPopulation(walkers)
	r.cfg.Metrics.SetPopulation(r.rank, r.pop.Len())

	for _, o := range r.global.Items {
		r.log.Infof("observable %q (%s)", o.Name(), o.Kind())
	}
	r.log.Infof("%d walkers, %d initial particles each", n, r.params.InitialParticleCount())
	return nil
}

// equilibrate advances every walker without measuring, then resets weights.
func (r *Runner) equilibrate(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Runner.Equilibrate", trace.WithAttributes(
		attribute.Int("rank", r.rank),
		attribute.Int64("steps", r.params.Steps.Equilibration),
	))
	defer span.End()

	var moves, accepted int64
	for s := int64(0); s < r.params.Steps.Equilibration; s++ {
		for _, w := range r.pop.Walkers() {
			if err := w.Step(r.mover); err != nil {
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			moves++
			if w.State.Accepted {
				accepted++
			}
		}
	}
	r.pop.ResetWeights()
	r.cfg.Metrics.ObserveMoves(r.rank, moves, accepted)
	return nil
}

// produce runs the ticks of block b, measuring every walker every tick and
// branching every branch_every ticks.
func (r *Runner) produce(ctx context.Context, b int) error {
	ticks := r.params.BlockTicks(b)
	r.block = BlockReport{Rank: r.rank, Block: b, Contributors: 1, Walkers: r.pop.Len(), Ticks: ticks}

	var moves, accepted int64
	for t := int64(0); t < ticks; t++ {
		r.tick++
		for _, w := range r.pop.Walkers() {
			if err := w.Step(r.mover); err != nil {
				return err
			}
			moves++
			if w.State.Accepted {
				accepted++
			}
			w.Measure()
		}
		if r.tick%r.params.Steps.BranchEvery == 0 {
			r.enter(PhaseBranching)
			if err := r.branch(ctx); err != nil {
				return err
			}
			r.enter(PhaseProducing)
		}
	}
	r.block.Moves = moves
	r.block.Accepted = accepted
	r.cfg.Metrics.ObserveMoves(r.rank, moves, accepted)
	return nil
}

func (r *Runner) branch(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Runner.Branch", trace.WithAttributes(
		attribute.Int("rank", r.rank),
		attribute.Int64("tick", r.tick),
	))
	defer span.End()

	res, err := r.pop.Branch(r.rng, r.params.Branching)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("branching at tick %d: %w", r.tick, err)
	}
	span.SetAttributes(attribute.Int("culled", res.Culled), attribute.Int("cloned", res.Cloned))

	if res.Dominant > 0 {
		r.log.Warnf("tick %d: %d walker(s) above max weight %g (largest normalised weight %g)",
			r.tick, res.Dominant, r.params.Branching.MaxWeight, res.MaxNormalizedWeight)
	}
	r.block.BranchEvents++
	r.block.Culled += res.Culled
	r.block.Cloned += res.Cloned
	r.cfg.Metrics.ObserveBranch(r.rank, res)
	r.cfg.Trace.RecordBranch(simtrace.BranchRecord{
		Rank:                r.rank,
		Tick:                r.tick,
		Before:              res.Before,
		Survivors:           res.Survivors,
		Culled:              res.Culled,
		Cloned:              res.Cloned,
		Dominant:            res.Dominant,
		MaxNormalizedWeight: res.MaxNormalizedWeight,
	})
	return nil
}

// mergeStats folds local observables into the rank's set, resets them and
// contributes the block to the reduction.
func (r *Runner) mergeStats(ctx context.Context, b int) error {
	ctx, span := tracer.Start(ctx, "Runner.MergeStats", trace.WithAttributes(
		attribute.Int("rank", r.rank),
		attribute.Int("block", b),
	))
	defer span.End()

	for _, w := range r.pop.Walkers() {
		if err := r.global.Fold(w.Observables); err != nil {
			return fmt.Errorf("folding walker %d: %w", w.ID, err)
		}
		w.ResetObservables()
	}
	report := r.block
	report.Stats = r.global.Clone()
	r.global.Reset()

	r.log.WithField("block", b).Debugf("block done: %d moves, %.4f accepted, %d branch events, %d culled, %d cloned",
		report.Moves, report.AcceptanceRate(), report.BranchEvents, report.Culled, report.Cloned)

	if _, err := r.comm.Reduce(ctx, &report); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("reducing block %d: %w", b, err)
	}
	return nil
}
