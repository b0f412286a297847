package cluster

// Phase is a state of the per-rank run state machine.
type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseEquilibrating
	PhaseProducing
	PhaseBranching
	PhaseMergingStats
	PhaseFinalizing
	PhaseTerminated
)

var phaseNames = [...]string{
	PhaseInitializing:  "initializing",
	PhaseEquilibrating: "equilibrating",
	PhaseProducing:     "producing",
	PhaseBranching:     "branching",
	PhaseMergingStats:  "merging-stats",
	PhaseFinalizing:    "finalizing",
	PhaseTerminated:    "terminated",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
