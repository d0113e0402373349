package trace

import (
	"testing"
)

func TestSimulationTrace_RecordEviction_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN an eviction record is recorded
	st.RecordEviction(EvictionRecord{
		Clock:    7,
		Incoming: "P1-9",
		Slot:     2,
		Victim:   "P1-3",
		Policy:   "lru",
		Fallback: "no-predictor",
	})

	// THEN the trace contains one eviction record with correct data
	if len(st.Evictions) != 1 {
		t.Fatalf("expected 1 eviction, got %d", len(st.Evictions))
	}
	if st.Evictions[0].Victim != "P1-3" {
		t.Errorf("expected victim P1-3, got %s", st.Evictions[0].Victim)
	}
	if st.Evictions[0].Slot != 2 {
		t.Errorf("expected slot 2, got %d", st.Evictions[0].Slot)
	}
}

func TestSimulationTrace_RecordPrediction_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a prediction fallback is recorded
	st.RecordPrediction(PredictionRecord{Clock: 1, Fallback: "not-fitted"})

	// THEN the trace contains it
	if len(st.Predictions) != 1 {
		t.Fatalf("expected 1 prediction record, got %d", len(st.Predictions))
	}
	if st.Predictions[0].Fallback != "not-fitted" {
		t.Errorf("expected not-fitted, got %s", st.Predictions[0].Fallback)
	}
}

func TestSimulationTrace_MaxRecords_DropsOldest(t *testing.T) {
	// GIVEN a trace bounded to 2 records
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions, MaxRecords: 2})

	// WHEN three evictions are recorded
	for i := int64(1); i <= 3; i++ {
		st.RecordEviction(EvictionRecord{Clock: i, Policy: "lru"})
	}

	// THEN only the newest two remain, in order
	if len(st.Evictions) != 2 {
		t.Fatalf("expected 2 evictions, got %d", len(st.Evictions))
	}
	if st.Evictions[0].Clock != 2 || st.Evictions[1].Clock != 3 {
		t.Errorf("expected clocks [2 3], got [%d %d]", st.Evictions[0].Clock, st.Evictions[1].Clock)
	}
}

func TestSimulationTrace_Enabled(t *testing.T) {
	var nilTrace *SimulationTrace
	if nilTrace.Enabled() {
		t.Error("nil trace must not be enabled")
	}
	if NewSimulationTrace(TraceConfig{Level: TraceLevelNone}).Enabled() {
		t.Error("level none must not be enabled")
	}
	if !NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions}).Enabled() {
		t.Error("level decisions must be enabled")
	}
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"decisions", true},
		{"", true}, // empty defaults to none
		{"detailed", false},
		{"foobar", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}
