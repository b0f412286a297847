package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dmc-sim/dmc-sim/sim"
	"github.com/dmc-sim/dmc-sim/sim/cluster"
	_ "github.com/dmc-sim/dmc-sim/sim/mover"
	"github.com/dmc-sim/dmc-sim/sim/observable"
	"github.com/dmc-sim/dmc-sim/sim/trace"
)

var (
	configPath  string  // Run file (YAML)
	beta        float64 // Inverse temperature override
	seed        int64   // Base seed override (-1 = wall clock)
	workers     int     // Number of worker ranks
	logLevel    string  // Log verbosity level
	logFile     string  // Per-rank log file template override
	outputDir   string  // CSV report directory override
	metricsAddr string  // Prometheus listen address; empty disables
	traceLevel  string  // Branching trace level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "dmc-sim",
	Short: "Population-controlled Monte Carlo of the open-boundary exclusion process",
}

// runCmd executes a fleet run using the run file plus CLI overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation with a coordinator and worker ranks",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if err := runSimulation(cmd, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// runSimulation resolves the run, serves metrics if asked and runs the fleet.
// The metrics server is shut down before it returns, on failure too.
func runSimulation(cmd *cobra.Command, out io.Writer) error {
	params, err := resolveParams(cmd)
	if err != nil {
		return err
	}
	if !trace.IsValidTraceLevel(traceLevel) {
		return fmt.Errorf("%w: unknown trace level %q; valid: none, branching", sim.ErrConfiguration, traceLevel)
	}

	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		srv := serveMetrics(metricsAddr, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logrus.Warnf("metrics endpoint shutdown: %v", err)
			}
		}()
	}

	fleet, err := newFleet(params, reg)
	if err != nil {
		return err
	}
	startTime := time.Now()
	if err := fleet.Run(context.Background()); err != nil {
		return fmt.Errorf("run %s failed: %w", fleet.RunID(), err)
	}

	printTotals(out, fleet.RunID(), fleet.Totals().Summaries())
	if traceLevel == string(trace.TraceLevelBranching) {
		printTraceSummary(out, fleet.TraceSummary())
	}
	logrus.Infof("Simulation complete in %v.", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// validateCmd loads and validates a run file and prints the resolved configuration
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a run file and print the resolved configuration",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		params, err := resolveParams(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := printConfig(os.Stdout, params, workers); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// resolveParams loads the run file and applies the flags the user set.
// Flags left at their defaults never override the file.
func resolveParams(cmd *cobra.Command) (*sim.RunParameters, error) {
	if configPath == "" {
		return nil, fmt.Errorf("%w: --config is required", sim.ErrConfiguration)
	}
	params, err := sim.LoadRunParameters(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("beta") {
		logrus.Infof("beta overridden on the command line: %g -> %g", params.Beta, beta)
		params.Beta = beta
	}
	if cmd.Flags().Changed("seed") {
		params.Seed = seed
	}
	if cmd.Flags().Changed("log-file") {
		params.LogFile = logFile
	}
	if cmd.Flags().Changed("output-dir") {
		params.OutputDir = outputDir
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, fmt.Errorf("%w: --workers must be >= 1, got %d", sim.ErrConfiguration, workers)
	}
	return params, nil
}

func newFleet(params *sim.RunParameters, reg *prometheus.Registry) (*cluster.FleetSimulator, error) {
	config := cluster.FleetConfig{
		Params:     params,
		Workers:    workers,
		TraceLevel: trace.TraceLevel(traceLevel),
	}
	if reg != nil {
		config.Registerer = reg
	}
	return cluster.NewFleetSimulator(config)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics endpoint %s: %v", addr, err)
		}
	}()
	logrus.Infof("Serving metrics on http://%s/metrics", addr)
	return srv
}

func printTotals(w io.Writer, runID string, summaries []observable.Summary) {
	fmt.Fprintf(w, "=== Totals (run %s) ===\n", runID)
	for _, s := range summaries {
		fmt.Fprintf(w, "%s (%s)\n", s.Name, s.Kind)
		for _, st := range s.Stats {
			fmt.Fprintf(w, "  %-24s %g\n", st.Key, st.Value)
		}
	}
}

func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Branching ===")
	fmt.Fprintf(w, "  events                   %d\n", s.BranchEvents)
	fmt.Fprintf(w, "  culled                   %d\n", s.TotalCulled)
	fmt.Fprintf(w, "  cloned                   %d\n", s.TotalCloned)
	fmt.Fprintf(w, "  dominant events          %d\n", s.DominantEvents)
	fmt.Fprintf(w, "  mean survivor ratio      %g\n", s.MeanSurvivorRatio)
	fmt.Fprintf(w, "  max normalised weight    %g\n", s.MaxNormalizedWeight)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addRunFileFlags registers the flags shared by every command that reads a run file.
func addRunFileFlags(c *cobra.Command) {
	c.Flags().StringVar(&configPath, "config", "", "Run file (YAML)")
	c.Flags().Float64Var(&beta, "beta", 0, "Inverse temperature; overrides the run file when set")
	c.Flags().Int64Var(&seed, "seed", sim.WallClockSeed, "Base seed; overrides the run file when set (-1 = wall clock)")
	c.Flags().IntVar(&workers, "workers", 2, "Number of worker ranks")
	c.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().StringVar(&logFile, "log-file", "", "Per-rank log file template; rank r writes <template>_<r>")
	c.Flags().StringVar(&outputDir, "output-dir", "", "Directory for CSV reports")
}

// init sets up CLI flags and subcommands
func init() {
	addRunFileFlags(runCmd)
	addRunFileFlags(validateCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Branching trace level (none, branching)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
