package cmd

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dmc-sim/dmc-sim/sim"
)

// printConfig writes the resolved run parameters and the values derived from them.
func printConfig(w io.Writer, params *sim.RunParameters, workers int) error {
	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	rates := params.TransitionRates()
	fmt.Fprintln(w, "=== Run configuration ===")
	fmt.Fprint(w, string(data))
	fmt.Fprintln(w, "=== Derived ===")
	fmt.Fprintf(w, "lmc: %g\n", rates.LMC)
	fmt.Fprintf(w, "rmc: %g\n", rates.RMC)
	fmt.Fprintf(w, "dt: %g\n", params.DT())
	fmt.Fprintf(w, "initial_particles: %d\n", params.InitialParticleCount())
	fmt.Fprintf(w, "workers: %d\n", workers)
	fmt.Fprintf(w, "total_walkers: %d\n", params.TotalWalkers(workers))
	return nil
}
