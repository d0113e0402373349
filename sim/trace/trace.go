package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every eviction and prediction fallback.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords bounds each record list; the oldest records are dropped
	// once it is reached. 0 means unbounded.
	MaxRecords int
}

// SimulationTrace collects decision records for one engine.
type SimulationTrace struct {
	Config      TraceConfig
	Evictions   []EvictionRecord
	Predictions []PredictionRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		Evictions:   make([]EvictionRecord, 0),
		Predictions: make([]PredictionRecord, 0),
	}
}

// Enabled reports whether records should be collected.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordEviction appends an eviction decision record.
func (st *SimulationTrace) RecordEviction(record EvictionRecord) {
	st.Evictions = append(st.Evictions, record)
	if n := st.Config.MaxRecords; n > 0 && len(st.Evictions) > n {
		st.Evictions = st.Evictions[len(st.Evictions)-n:]
	}
}

// RecordPrediction appends a prediction fallback record.
func (st *SimulationTrace) RecordPrediction(record PredictionRecord) {
	st.Predictions = append(st.Predictions, record)
	if n := st.Config.MaxRecords; n > 0 && len(st.Predictions) > n {
		st.Predictions = st.Predictions[len(st.Predictions)-n:]
	}
}
