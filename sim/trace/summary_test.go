package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelBranching})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.BranchEvents != 0 || summary.BlocksMerged != 0 {
		t.Errorf("expected no events, got %+v", summary)
	}
	if summary.TotalCulled != 0 || summary.TotalCloned != 0 {
		t.Error("expected 0 culled and cloned")
	}
	if summary.MeanSurvivorRatio != 0 || summary.MaxNormalizedWeight != 0 {
		t.Error("expected 0 ratio values")
	}
	if len(summary.CulledByRank) != 0 {
		t.Error("expected empty per-rank culls")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.BranchEvents != 0 || summary.CulledByRank == nil {
		t.Errorf("unexpected summary for nil trace: %+v", summary)
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN branching records from two ranks and one merge
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelBranching})
	st.RecordBranch(BranchRecord{Rank: 1, Before: 4, Survivors: 3, Culled: 1, Cloned: 1, MaxNormalizedWeight: 2})
	st.RecordBranch(BranchRecord{Rank: 2, Before: 4, Survivors: 4, MaxNormalizedWeight: 1})
	st.RecordBranch(BranchRecord{Rank: 1, Before: 4, Survivors: 1, Culled: 3, Cloned: 3, Dominant: 1, MaxNormalizedWeight: 4})
	st.RecordMerge(MergeRecord{Block: 0, Contributors: 2})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	if summary.BranchEvents != 3 {
		t.Errorf("expected 3 branch events, got %d", summary.BranchEvents)
	}
	if summary.TotalCulled != 4 || summary.TotalCloned != 4 {
		t.Errorf("expected 4 culled and 4 cloned, got %d and %d", summary.TotalCulled, summary.TotalCloned)
	}
	if summary.DominantEvents != 1 {
		t.Errorf("expected 1 dominant event, got %d", summary.DominantEvents)
	}
	if summary.CulledByRank[1] != 4 || summary.CulledByRank[2] != 0 {
		t.Errorf("unexpected per-rank culls %v", summary.CulledByRank)
	}
	if summary.MaxNormalizedWeight != 4 {
		t.Errorf("expected max normalised weight 4, got %g", summary.MaxNormalizedWeight)
	}
	if summary.BlocksMerged != 1 {
		t.Errorf("expected 1 merged block, got %d", summary.BlocksMerged)
	}
}

func TestSummarize_SurvivorRatio_MeanOverEvents(t *testing.T) {
	// GIVEN survivor ratios 0.75, 1 and 0.25
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelBranching})
	st.RecordBranch(BranchRecord{Before: 4, Survivors: 3})
	st.RecordBranch(BranchRecord{Before: 4, Survivors: 4})
	st.RecordBranch(BranchRecord{Before: 4, Survivors: 1})

	// WHEN summarized
	summary := Summarize(st)

	// THEN the mean ratio is 2/3
	expected := 2.0 / 3.0
	if summary.MeanSurvivorRatio < expected-1e-9 || summary.MeanSurvivorRatio > expected+1e-9 {
		t.Errorf("expected mean survivor ratio ~%.4f, got %.4f", expected, summary.MeanSurvivorRatio)
	}
}
