package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dmc-sim/dmc-sim/sim"
	"github.com/dmc-sim/dmc-sim/sim/observable"
	"github.com/dmc-sim/dmc-sim/sim/report"
	simtrace "github.com/dmc-sim/dmc-sim/sim/trace"
)

// FleetConfig configures a FleetSimulator.
type FleetConfig struct {
	Params     *sim.RunParameters
	Workers    int
	TraceLevel simtrace.TraceLevel
	Registerer prometheus.Registerer // nil: metrics are kept but not exported
}

// FleetSimulator runs a coordinator and Workers worker ranks as goroutines
// connected by an in-process communicator.
type FleetSimulator struct {
	config  FleetConfig
	runID   string
	key     sim.SimulationKey
	metrics *Metrics
	trace   *simtrace.SimulationTrace

	coordinator *Coordinator
	runners     []*Runner
	hasRun      bool
}

// NewFleetSimulator validates the configuration and resolves the base seed.
// Configuration errors are returned before any rank exists.
func NewFleetSimulator(config FleetConfig) (*FleetSimulator, error) {
	if config.Params == nil {
		return nil, fmt.Errorf("%w: no run parameters", sim.ErrConfiguration)
	}
	if config.Workers < 1 {
		return nil, fmt.Errorf("%w: need at least one worker, got %d", sim.ErrConfiguration, config.Workers)
	}
	if !simtrace.IsValidTraceLevel(string(config.TraceLevel)) {
		return nil, fmt.Errorf("%w: unknown trace level %q", sim.ErrConfiguration, config.TraceLevel)
	}
	if err := config.Params.Validate(); err != nil {
		return nil, err
	}
	return &FleetSimulator{
		config:  config,
		runID:   uuid.NewString(),
		key:     sim.NewSimulationKey(config.Params.Seed),
		metrics: NewMetrics(config.Registerer),
		trace:   simtrace.NewSimulationTrace(simtrace.TraceConfig{Level: config.TraceLevel}),
	}, nil
}

// RunID returns the identifier stamped on logs and reports.
func (f *FleetSimulator) RunID() string { return f.runID }

// Key returns the resolved base seed.
func (f *FleetSimulator) Key() sim.SimulationKey { return f.key }

// Metrics returns the run's Prometheus collectors.
func (f *FleetSimulator) Metrics() *Metrics { return f.metrics }

// Run builds every rank, then runs them concurrently until all finish or one
// fails; a failure cancels the others. Panics if called more than once.
func (f *FleetSimulator) Run(ctx context.Context) (err error) {
	if f.hasRun {
		panic("FleetSimulator.Run() called more than once")
	}
	f.hasRun = true

	params := f.config.Params
	comms := NewLocalFleet(f.config.Workers + 1)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			err = errors.Join(err, c.Close())
		}
	}()
	rankConfig := func(rank int) (RankConfig, error) {
		logger, closer, err := OpenRankLog(params.LogFile, rank)
		if err != nil {
			return RankConfig{}, err
		}
		closers = append(closers, closer)
		return RankConfig{
			Params:  params,
			Key:     f.key,
			Workers: f.config.Workers,
			Log:     logger.WithField("run", f.runID),
			Metrics: f.metrics,
			Trace:   f.trace,
		}, nil
	}

	output, err := report.NewOutputManager(params.OutputDir, f.runID)
	if err != nil {
		return err
	}
	closers = append(closers, output)

	cc, err := rankConfig(CoordinatorRank)
	if err != nil {
		return err
	}
	if f.coordinator, err = NewCoordinator(comms[CoordinatorRank], cc, output); err != nil {
		return err
	}
	for rank := 1; rank <= f.config.Workers; rank++ {
		rc, err := rankConfig(rank)
		if err != nil {
			return err
		}
		r, err := NewRunner(comms[rank], rc)
		if err != nil {
			return err
		}
		f.runners = append(f.runners, r)
	}

	logrus.Infof("run %s: coordinator + %d workers, base seed %d", f.runID, f.config.Workers, int64(f.key))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.coordinator.Run(gctx) })
	for _, r := range f.runners {
		g.Go(func() error { return r.Run(gctx) })
	}
	return g.Wait()
}

// Totals returns the coordinator's accumulated observables.
// Panics if called before Run().
func (f *FleetSimulator) Totals() *observable.Set {
	if !f.hasRun || f.coordinator == nil {
		panic("FleetSimulator.Totals() called before Run()")
	}
	return f.coordinator.Totals()
}

// Blocks returns the coordinator's merged block reports.
// Panics if called before Run().
func (f *FleetSimulator) Blocks() []*BlockReport {
	if !f.hasRun || f.coordinator == nil {
		panic("FleetSimulator.Blocks() called before Run()")
	}
	return f.coordinator.Blocks()
}

// Runners returns the worker ranks in rank order.
func (f *FleetSimulator) Runners() []*Runner { return f.runners }

// Coordinator returns the coordinator rank (nil before Run).
func (f *FleetSimulator) Coordinator() *Coordinator { return f.coordinator }

// TraceSummary summarises the branching and merge records of the run.
func (f *FleetSimulator) TraceSummary() *simtrace.TraceSummary {
	return simtrace.Summarize(f.trace)
}
