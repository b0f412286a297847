package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	BranchEvents        int
	DominantEvents      int // events with at least one walker above the max-weight threshold
	TotalCulled         int
	TotalCloned         int
	MeanSurvivorRatio   float64 // mean of Survivors/Before over events
	MaxNormalizedWeight float64
	BlocksMerged        int
	CulledByRank        map[int]int // rank → walkers culled
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		CulledByRank: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	branches := st.Branches()
	summary.BranchEvents = len(branches)
	if len(branches) > 0 {
		totalRatio := 0.0
		for _, b := range branches {
			summary.TotalCulled += b.Culled
			summary.TotalCloned += b.Cloned
			summary.CulledByRank[b.Rank] += b.Culled
			if b.Dominant > 0 {
				summary.DominantEvents++
			}
			if b.Before > 0 {
				totalRatio += float64(b.Survivors) / float64(b.Before)
			}
			if b.MaxNormalizedWeight > summary.MaxNormalizedWeight {
				summary.MaxNormalizedWeight = b.MaxNormalizedWeight
			}
		}
		summary.MeanSurvivorRatio = totalRatio / float64(len(branches))
	}

	summary.BlocksMerged = len(st.Merges())

	return summary
}
