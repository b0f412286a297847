package trace

import "sync"

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelBranching captures every branching event and block merge.
	TraceLevelBranching TraceLevel = "branching"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelBranching: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a fleet run.
// Safe for concurrent use by every rank; a nil trace discards records.
type SimulationTrace struct {
	Config TraceConfig

	mu       sync.Mutex
	branches []BranchRecord
	merges   []MergeRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
// Returns nil when config.Level disables tracing.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	if config.Level == "" || config.Level == TraceLevelNone {
		return nil
	}
	return &SimulationTrace{
		Config:   config,
		branches: make([]BranchRecord, 0),
		merges:   make([]MergeRecord, 0),
	}
}

// RecordBranch appends a branching record.
func (st *SimulationTrace) RecordBranch(record BranchRecord) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.branches = append(st.branches, record)
}

// RecordMerge appends a block merge record.
func (st *SimulationTrace) RecordMerge(record MergeRecord) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.merges = append(st.merges, record)
}

// Branches returns a copy of the branching records in recording order.
func (st *SimulationTrace) Branches() []BranchRecord {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]BranchRecord(nil), st.branches...)
}

// Merges returns a copy of the merge records in recording order.
func (st *SimulationTrace) Merges() []MergeRecord {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]MergeRecord(nil), st.merges...)
}
