package cluster

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmc-sim/dmc-sim/sim"
)

// Metrics holds the Prometheus collectors of a fleet run. All methods are
// safe for concurrent use and no-ops on a nil *Metrics.
type Metrics struct {
	moves         *prometheus.CounterVec
	accepted      *prometheus.CounterVec
	branchEvents  *prometheus.CounterVec
	clones        *prometheus.CounterVec
	culls         *prometheus.CounterVec
	dominant      *prometheus.CounterVec
	population    *prometheus.GaugeVec
	mergeDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		moves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmc_moves_total",
			Help: "Moves attempted, by worker rank",
		}, []string{"rank"}),
		accepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmc_moves_accepted_total",
			Help: "Moves that changed the occupancy, by worker rank",
		}, []string{"rank"}),
		branchEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmc_branch_events_total",
			Help: "Population-control events, by worker rank",
		}, []string{"rank"}),
		clones: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmc_walkers_cloned_total",
			Help: "Extra walker copies created by branching, by worker rank",
		}, []string{"rank"}),
		culls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmc_walkers_culled_total",
			Help: "Walkers removed by branching, by worker rank",
		}, []string{"rank"}),
		dominant: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmc_dominant_walkers_total",
			Help: "Walkers whose normalised weight exceeded max_weight at branching, by worker rank",
		}, []string{"rank"}),
		population: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dmc_population",
			Help: "Walkers held, by worker rank",
		}, []string{"rank"}),
		mergeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dmc_block_merge_duration_seconds",
			Help:    "Time the coordinator spent in each block reduction",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}),
	}
}

// ObserveMoves adds a batch of moves made on rank.
func (m *Metrics) ObserveMoves(rank int, moves, accepted int64) {
	if m == nil {
		return
	}
	r := strconv.Itoa(rank)
	m.moves.WithLabelValues(r).Add(float64(moves))
	m.accepted.WithLabelValues(r).Add(float64(accepted))
}

// ObserveBranch records one branching event on rank.
func (m *Metrics) ObserveBranch(rank int, res sim.BranchResult) {
	if m == nil {
		return
	}
	r := strconv.Itoa(rank)
	m.branchEvents.WithLabelValues(r).Inc()
	m.clones.WithLabelValues(r).Add(float64(res.Cloned))
	m.culls.WithLabelValues(r).Add(float64(res.Culled))
	m.dominant.WithLabelValues(r).Add(float64(res.Dominant))
	m.population.WithLabelValues(r).Set(float64(res.After))
}

// SetPopulation records the walker count held by rank.
func (m *Metrics) SetPopulation(rank, n int) {
	if m == nil {
		return
	}
	m.population.WithLabelValues(strconv.Itoa(rank)).Set(float64(n))
}

// ObserveMerge records the duration of one block reduction.
func (m *Metrics) ObserveMerge(d time.Duration) {
	if m == nil {
		return
	}
	m.mergeDuration.Observe(d.Seconds())
}
