package sim

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxAccumulated is the number of sequences kept across training calls.
const MaxAccumulated = 10

// SessionRecord describes one Submit call.
type SessionRecord struct {
	ID             string `json:"id"`
	WorkloadType   string `json:"workloadType"`
	SequencesCount int    `json:"sequencesCount"`
	TypeChanged    bool   `json:"typeChanged"`
	ForcedReset    bool   `json:"forcedReset"`
}

// AccumulatorState is a point-in-time copy of the accumulator.
type AccumulatorState struct {
	AccumulatedSequences [][]Page        `json:"accumulatedSequences"`
	CurrentWorkloadType  *string         `json:"currentWorkloadType"`
	TotalSamples         int             `json:"totalSamples"`
	TrainingHistory      []SessionRecord `json:"trainingHistory"`
}

// SubmitResult is returned by Submit.
type SubmitResult struct {
	// Sequences is the full accumulated window to train every family on.
	Sequences     [][]Page `json:"-"`
	SequencesUsed int      `json:"sequencesUsed"`
	TypeChanged   bool     `json:"typeChanged"`
	WorkloadType  string   `json:"workloadType"`
	TotalSamples  int      `json:"totalSamples"`
}

// TrainingAccumulator keeps a bounded window of training sequences drawn
// from one workload type. A change of workload type empties the window.
//
// States: Empty -> Accumulating(type) -> Accumulating(type) ... -> Empty.
//
// Thread-safety: NOT thread-safe; sim/fleet serializes access.
type TrainingAccumulator struct {
	maxSequences int
	sequences    [][]Page
	workloadType *string
	totalSamples int
	history      []SessionRecord
}

// NewTrainingAccumulator creates an empty accumulator holding at most
// maxSequences sequences (MaxAccumulated when <= 0).
func NewTrainingAccumulator(maxSequences int) *TrainingAccumulator {
	if maxSequences <= 0 {
		maxSequences = MaxAccumulated
	}
	return &TrainingAccumulator{maxSequences: maxSequences}
}

// Submit folds sequences into the window and returns what to train on.
//
// TotalSamples grows by the length of the first submitted sequence only.
// This is a sample-count heuristic kept for parity with the reference
// service, not an exact count.
func (a *TrainingAccumulator) Submit(sequences [][]Page, workloadType string, forceReset bool) (SubmitResult, error) {
	if len(sequences) == 0 {
		return SubmitResult{}, InvalidRequest("submit training", "no training sequences provided")
	}

	typeChanged := false
	if a.workloadType != nil && *a.workloadType != workloadType {
		logrus.Infof("[accumulator] workload type changed: %s -> %s, clearing %d sequences",
			*a.workloadType, workloadType, len(a.sequences))
		a.clearWindow()
		typeChanged = true
	}
	if forceReset {
		logrus.Infof("[accumulator] forced reset, clearing %d sequences", len(a.sequences))
		a.clearWindow()
	}

	wt := workloadType
	a.workloadType = &wt
	a.sequences = append(a.sequences, CopySequences(sequences)...)
	a.totalSamples += len(sequences[0])

	if len(a.sequences) > a.maxSequences {
		a.sequences = append([][]Page(nil), a.sequences[len(a.sequences)-a.maxSequences:]...)
		logrus.Infof("[accumulator] trimmed to last %d sequences", a.maxSequences)
	}

	a.history = append(a.history, SessionRecord{
		ID:             uuid.NewString(),
		WorkloadType:   workloadType,
		SequencesCount: len(a.sequences),
		TypeChanged:    typeChanged,
		ForcedReset:    forceReset,
	})

	return SubmitResult{
		Sequences:     CopySequences(a.sequences),
		SequencesUsed: len(a.sequences),
		TypeChanged:   typeChanged,
		WorkloadType:  workloadType,
		TotalSamples:  a.totalSamples,
	}, nil
}

func (a *TrainingAccumulator) clearWindow() {
	a.sequences = nil
	a.totalSamples = 0
}

// Reset returns the accumulator to Empty, including its session history.
func (a *TrainingAccumulator) Reset() {
	a.clearWindow()
	a.workloadType = nil
	a.history = nil
}

// Len returns the number of accumulated sequences.
func (a *TrainingAccumulator) Len() int { return len(a.sequences) }

// State returns a deep copy of the accumulator.
func (a *TrainingAccumulator) State() AccumulatorState {
	st := AccumulatorState{
		AccumulatedSequences: CopySequences(a.sequences),
		TotalSamples:         a.totalSamples,
		TrainingHistory:      append([]SessionRecord(nil), a.history...),
	}
	if a.workloadType != nil {
		wt := *a.workloadType
		st.CurrentWorkloadType = &wt
	}
	return st
}
