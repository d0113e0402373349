package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pagesim/sim/trace"
)

func trainedSnapshot(t *testing.T, family string) *Snapshot {
	t.Helper()
	p, err := NewPredictor(family, DefaultPredictorConfig())
	require.NoError(t, err)
	_, err = p.Fit([][]Page{pages(1, 2, 3)})
	require.NoError(t, err)
	snap, err := p.ExportState()
	require.NoError(t, err)
	return snap
}

func TestHarness_TrainedAndUntrainedFamilies(t *testing.T) {
	// GIVEN a snapshot for family A only
	h := NewHarness([]string{fakeFamilyA, fakeFamilyB}, DefaultPredictorConfig(), DefaultEngineConfig())
	snaps := map[string]*Snapshot{fakeFamilyA: trainedSnapshot(t, fakeFamilyA)}

	// WHEN a sequence is compared
	results, err := h.Compare(context.Background(), pages(1, 2, 3, 1, 4, 1), 2, snaps)

	// THEN both families report, in order, with identical access counts
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, fakeFamilyA, results[0].Family)
	assert.True(t, results[0].Trained)
	assert.Empty(t, results[0].Note)
	assert.Equal(t, fakeFamilyB, results[1].Family)
	assert.False(t, results[1].Trained)
	assert.Equal(t, "no trained snapshot", results[1].Note)
	for _, r := range results {
		assert.Equal(t, int64(6), r.Stats.PageHits+r.Stats.PageFaults)
		assert.InDelta(t, r.Stats.HitRatio, r.Evaluation.Recall, 1e-9)
	}
}

func TestHarness_MalformedSnapshotRunsUntrained(t *testing.T) {
	h := NewHarness([]string{fakeFamilyA}, DefaultPredictorConfig(), DefaultEngineConfig())
	bad, err := NewSnapshot(fakeFamilyA, 1, CodecNone, fakeState{})
	require.NoError(t, err)

	results, err := h.Compare(context.Background(), pages(1, 2, 3), 2, map[string]*Snapshot{fakeFamilyA: bad})

	require.NoError(t, err)
	assert.False(t, results[0].Trained)
	assert.Contains(t, results[0].Note, "snapshot rejected")
	assert.False(t, results[0].ModelStats.Fitted)
}

func TestHarness_WrongFamilySnapshotRejected(t *testing.T) {
	h := NewHarness([]string{fakeFamilyB}, DefaultPredictorConfig(), DefaultEngineConfig())
	snaps := map[string]*Snapshot{fakeFamilyB: trainedSnapshot(t, fakeFamilyA)}

	results, err := h.Compare(context.Background(), pages(1, 2), 2, snaps)

	require.NoError(t, err)
	assert.False(t, results[0].Trained)
	assert.Contains(t, results[0].Note, "does not match")
}

func TestHarness_MatchesStandaloneEngine(t *testing.T) {
	// GIVEN an untrained family, the comparison is plain LRU
	seq := pages(1, 2, 3, 1, 2, 4, 1, 5, 2, 3)
	h := NewHarness([]string{fakeFamilyA}, DefaultPredictorConfig(), DefaultEngineConfig())
	results, err := h.Compare(context.Background(), seq, 3, nil)
	require.NoError(t, err)

	e := NewEngine(EngineConfig{FrameCount: 3}, nil)
	for _, p := range seq {
		_, err := e.AccessPage(p)
		require.NoError(t, err)
	}
	assert.Equal(t, e.Counters(), results[0].Stats.Counters)
}

func TestHarness_TraceSummaryWhenEnabled(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Trace = trace.TraceConfig{Level: trace.TraceLevelDecisions}
	h := NewHarness([]string{fakeFamilyA}, DefaultPredictorConfig(), cfg)

	results, err := h.Compare(context.Background(), pages(1, 2, 3, 4), 2, nil)

	require.NoError(t, err)
	require.NotNil(t, results[0].Trace)
	assert.Equal(t, 2, results[0].Trace.TotalEvictions)
	assert.Equal(t, 2, results[0].Trace.FallbackCounts[string(FallbackNotFitted)])
}

func TestHarness_RejectsBadInput(t *testing.T) {
	h := NewHarness([]string{fakeFamilyA}, DefaultPredictorConfig(), DefaultEngineConfig())
	_, err := h.Compare(context.Background(), nil, 2, nil)
	assert.Equal(t, KindInvalidRequest, KindOf(err))

	_, err = NewHarness(nil, DefaultPredictorConfig(), DefaultEngineConfig()).Compare(context.Background(), pages(1), 2, nil)
	assert.Equal(t, KindInvalidRequest, KindOf(err))

	_, err = NewHarness([]string{"no-such-family"}, DefaultPredictorConfig(), DefaultEngineConfig()).Compare(context.Background(), pages(1), 2, nil)
	assert.Equal(t, KindInvalidRequest, KindOf(err))
}

func TestHarness_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := NewHarness([]string{fakeFamilyA, fakeFamilyB}, DefaultPredictorConfig(), DefaultEngineConfig())
	_, err := h.Compare(ctx, pages(1, 2, 3), 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
