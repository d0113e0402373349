package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pagesim/sim/internal/testutil"
)

// TestEngine_GoldenDataset_LRU replays every golden reference string through
// an engine without a predictor and checks the exact LRU outcome.
func TestEngine_GoldenDataset_LRU(t *testing.T) {
	dataset := testutil.LoadGoldenDataset(t)
	require.NotEmpty(t, dataset.Tests)

	for _, tc := range dataset.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			e := NewEngine(EngineConfig{FrameCount: tc.FrameCount}, nil)
			for _, n := range tc.Sequence {
				_, err := e.Access("", n)
				require.NoError(t, err)
			}

			stats := e.Stats()
			assert.Equal(t, tc.Metrics.PageHits, stats.PageHits, "page_hits")
			assert.Equal(t, tc.Metrics.PageFaults, stats.PageFaults, "page_faults")
			testutil.AssertFloat64Equal(t, "hit_ratio", tc.Metrics.HitRatio, stats.HitRatio, 1e-5)
		})
	}
}

// TestHarness_GoldenDataset_UntrainedMatchesLRU checks that an untrained
// family in a comparison run evicts exactly like LRU.
func TestHarness_GoldenDataset_UntrainedMatchesLRU(t *testing.T) {
	dataset := testutil.LoadGoldenDataset(t)
	h := NewHarness([]string{fakeFamilyA, fakeFamilyB}, DefaultPredictorConfig(), DefaultEngineConfig())

	for _, tc := range dataset.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			seq := make([]Page, len(tc.Sequence))
			for i, n := range tc.Sequence {
				seq[i] = NewPage("", n)
			}
			results, err := h.Compare(context.Background(), seq, tc.FrameCount, nil)

			require.NoError(t, err)
			for _, r := range results {
				assert.Equal(t, tc.Metrics.PageHits, r.Stats.PageHits, r.Family)
				assert.Equal(t, tc.Metrics.PageFaults, r.Evaluation.PageFaults, r.Family)
			}
		})
	}
}
