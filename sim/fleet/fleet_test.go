package fleet

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pagesim/sim"
	"github.com/inference-sim/pagesim/sim/internal/testutil"
	"github.com/inference-sim/pagesim/sim/predict"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func loop(period, n int) []sim.Page {
	out := make([]sim.Page, n)
	for i := range out {
		out[i] = sim.NewPage("", i%period+1)
	}
	return out
}

func newFleet(t *testing.T) *Fleet {
	t.Helper()
	f, err := New(DefaultConfig())
	require.NoError(t, err)
	return f
}

type recorder struct {
	accesses map[string]int
	trains   map[string]int
	resets   map[string]int
}

func newRecorder() *recorder {
	return &recorder{accesses: map[string]int{}, trains: map[string]int{}, resets: map[string]int{}}
}

func (r *recorder) ObserveAccess(family string, _ sim.AccessResult, _ sim.Stats) { r.accesses[family]++ }
func (r *recorder) ObserveTrain(family string, _ sim.TrainingMetrics, _ error)  { r.trains[family]++ }
func (r *recorder) ObserveReset(family string)                                   { r.resets[family]++ }

func TestNew_DefaultsToRegisteredFamilies(t *testing.T) {
	f := newFleet(t)
	assert.Equal(t, []string{predict.FamilyMarkov, predict.FamilyNGram, predict.FamilySequence}, f.Families())
	assert.Equal(t, sim.DefaultFrameCount, f.FrameCount())
}

func TestNew_RejectsUnknownOrDuplicateFamily(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Families = []string{"random_forest"}
	_, err := New(cfg)
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))

	cfg.Families = []string{predict.FamilyMarkov, predict.FamilyMarkov}
	_, err = New(cfg)
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))
}

func TestTrain_SingleFamily(t *testing.T) {
	f := newFleet(t)
	res, err := f.Train(predict.FamilyMarkov, [][]sim.Page{loop(4, 40)})

	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	require.NotNil(t, res.Metrics)
	assert.True(t, res.ModelStats.Fitted)

	ms, err := f.ModelStats(predict.FamilyNGram)
	require.NoError(t, err)
	assert.False(t, ms.Fitted, "other families are untouched")
	assert.Zero(t, f.Stats().Cumulative.TotalSamples, "direct training bypasses the accumulator")
}

func TestTrain_Errors(t *testing.T) {
	f := newFleet(t)
	_, err := f.Train("xgboost", [][]sim.Page{loop(4, 40)})
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))

	_, err = f.Train(predict.FamilyMarkov, nil)
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))

	res, err := f.Train(predict.FamilySequence, [][]sim.Page{loop(4, 3)})
	assert.ErrorIs(t, err, sim.ErrInsufficientData)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "predictor_unavailable", res.Kind)
}

func TestTrainAll_PartialFailureStillSucceeds(t *testing.T) {
	// GIVEN sequences long enough for markov and ngram but not for sequence (window 5)
	f := newFleet(t)
	rec := newRecorder()
	f.SetObserver(rec)

	out, err := f.TrainAll([][]sim.Page{loop(3, 5)}, "loop", false)

	require.NoError(t, err)
	assert.Equal(t, "success", out.Results[predict.FamilyMarkov].Status)
	assert.Equal(t, "success", out.Results[predict.FamilyNGram].Status)
	assert.Equal(t, "error", out.Results[predict.FamilySequence].Status)
	assert.Equal(t, 1, out.Cumulative.AccumulatedSequences)
	assert.Equal(t, 5, out.Cumulative.TotalSamples)
	assert.Equal(t, 1, rec.trains[predict.FamilySequence])
}

func TestTrainAll_AccumulatesAndAutoResets(t *testing.T) {
	f := newFleet(t)
	_, err := f.TrainAll([][]sim.Page{loop(4, 20), loop(4, 20)}, "loop", false)
	require.NoError(t, err)
	out, err := f.TrainAll([][]sim.Page{loop(4, 20)}, "loop", false)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Cumulative.AccumulatedSequences)

	out, err = f.TrainAll([][]sim.Page{loop(7, 30)}, "random", false)
	require.NoError(t, err)
	assert.True(t, out.Cumulative.TypeChanged)
	assert.True(t, out.Cumulative.AutoReset)
	assert.Equal(t, 1, out.Cumulative.AccumulatedSequences)

	_, err = f.TrainAll(nil, "random", false)
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))
}

func TestTrainAll_DefaultWorkloadType(t *testing.T) {
	f := newFleet(t)
	out, err := f.TrainAll([][]sim.Page{loop(4, 20)}, "", false)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkloadType, out.Cumulative.WorkloadType)
}

func TestAccess_SingleAndAll(t *testing.T) {
	f := newFleet(t)
	rec := newRecorder()
	f.SetObserver(rec)

	rep, err := f.Access(predict.FamilyNGram, sim.NewPage("", 1))
	require.NoError(t, err)
	assert.True(t, rep.Result.PageFault)
	assert.Equal(t, int64(1), rep.Stats.PageFaults)

	all, err := f.AccessAll(sim.NewPage("", 1))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[predict.FamilyNGram].Result.Hit)
	assert.True(t, all[predict.FamilyMarkov].Result.PageFault)
	assert.Equal(t, 2, rec.accesses[predict.FamilyNGram])

	_, err = f.Access("lstm", sim.NewPage("", 1))
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))
}

func TestStats_ReportsFamiliesAndAccumulator(t *testing.T) {
	f := newFleet(t)
	_, err := f.TrainAll([][]sim.Page{loop(4, 40)}, "loop", false)
	require.NoError(t, err)
	_, err = f.AccessAll(sim.NewPage("", 2))
	require.NoError(t, err)

	st := f.Stats()
	require.Len(t, st.Families, 3)
	ng := st.Families[predict.FamilyNGram]
	assert.True(t, ng.Trained)
	assert.Equal(t, 4, ng.FrameCount)
	assert.Len(t, ng.Frames, 4)
	assert.Equal(t, int64(1), ng.PageFaults)
	require.NotNil(t, st.Cumulative.CurrentWorkloadType)
	assert.Equal(t, "loop", *st.Cumulative.CurrentWorkloadType)
	assert.Equal(t, 40, st.Cumulative.TotalSamples)

	d, err := f.FamilyStats(predict.FamilyNGram)
	require.NoError(t, err)
	assert.Equal(t, predict.FamilyNGram, d.ModelDetails.Family)
	assert.Nil(t, d.Trace)
}

func TestReset_ClearsEverything(t *testing.T) {
	f := newFleet(t)
	_, err := f.TrainAll([][]sim.Page{loop(4, 40)}, "loop", false)
	require.NoError(t, err)
	_, err = f.AccessAll(sim.NewPage("", 1))
	require.NoError(t, err)

	n, err := f.Reset(6)
	require.NoError(t, err)

	assert.Equal(t, 6, n)
	assert.Equal(t, 6, f.FrameCount())
	st := f.Stats()
	for _, fs := range st.Families {
		assert.False(t, fs.Trained)
		assert.Equal(t, 6, fs.FrameCount)
		assert.Zero(t, fs.PageFaults)
	}
	assert.Empty(t, st.Cumulative.AccumulatedSequences)
	assert.Nil(t, st.Cumulative.CurrentWorkloadType)
}

func TestConfigure_KeepsAccumulator(t *testing.T) {
	f := newFleet(t)
	_, err := f.TrainAll([][]sim.Page{loop(4, 40)}, "loop", false)
	require.NoError(t, err)

	n, err := f.Configure(0)
	require.NoError(t, err)

	assert.Equal(t, sim.DefaultFrameCount, n)
	st := f.Stats()
	assert.False(t, st.Families[predict.FamilyMarkov].Trained)
	assert.Len(t, st.Cumulative.AccumulatedSequences, 1)
}

func TestResetFamily_OnlyTouchesOne(t *testing.T) {
	f := newFleet(t)
	rec := newRecorder()
	f.SetObserver(rec)
	_, err := f.TrainAll([][]sim.Page{loop(4, 40)}, "loop", false)
	require.NoError(t, err)

	n, err := f.ResetFamily(predict.FamilyMarkov, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	st := f.Stats()
	assert.False(t, st.Families[predict.FamilyMarkov].Trained)
	assert.Equal(t, 2, st.Families[predict.FamilyMarkov].FrameCount)
	assert.True(t, st.Families[predict.FamilyNGram].Trained)
	assert.Equal(t, 1, rec.resets[predict.FamilyMarkov])
	assert.Zero(t, rec.resets[predict.FamilyNGram])

	_, err = f.ResetFamily("nope", 2)
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))
}

func TestExportImport_RoundTrip(t *testing.T) {
	// GIVEN a trained fleet with one family that cannot fit
	src := newFleet(t)
	_, err := src.TrainAll([][]sim.Page{loop(4, 40)}, "loop", false)
	require.NoError(t, err)
	_, err = src.ResetFamily(predict.FamilySequence, 4)
	require.NoError(t, err)

	snaps, err := src.Export()
	require.NoError(t, err)
	assert.Len(t, snaps, 2, "unfitted families are not exported")

	// WHEN imported into a fresh fleet
	dst := newFleet(t)
	snaps["lstm"] = snaps[predict.FamilyMarkov]
	res, err := dst.Import(snaps)

	// THEN known families are trained, unknown ones ignored
	require.NoError(t, err)
	assert.Equal(t, []string{predict.FamilyMarkov, predict.FamilyNGram}, res.Imported)
	assert.Equal(t, []string{"lstm"}, res.Ignored)
	ms, err := dst.ModelStats(predict.FamilyMarkov)
	require.NoError(t, err)
	assert.True(t, ms.Fitted)
}

func TestImport_AllOrNothing(t *testing.T) {
	src := newFleet(t)
	_, err := src.TrainAll([][]sim.Page{loop(4, 40)}, "loop", false)
	require.NoError(t, err)
	snaps, err := src.Export()
	require.NoError(t, err)

	// a markov snapshot filed under ngram is rejected
	snaps[predict.FamilyNGram] = snaps[predict.FamilyMarkov]
	dst := newFleet(t)
	_, err = dst.Import(snaps)

	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))
	ms, err := dst.ModelStats(predict.FamilyMarkov)
	require.NoError(t, err)
	assert.False(t, ms.Fitted)

	_, err = dst.Import(nil)
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))
}

func TestCompare_UsesTrainedStateWithoutTouchingLiveEngines(t *testing.T) {
	// GIVEN markov trained on a 5-loop and the other families untrained
	f := newFleet(t)
	_, err := f.Train(predict.FamilyMarkov, [][]sim.Page{loop(5, 50)})
	require.NoError(t, err)

	// WHEN comparing on the loop
	results, err := f.Compare(context.Background(), loop(5, 40), 4)

	// THEN the trained family beats LRU and live engines saw no accesses
	require.NoError(t, err)
	require.Len(t, results, 3)
	byFamily := map[string]sim.ComparisonResult{}
	for _, r := range results {
		byFamily[r.Family] = r
	}
	assert.True(t, byFamily[predict.FamilyMarkov].Trained)
	assert.False(t, byFamily[predict.FamilyNGram].Trained)
	assert.Greater(t, byFamily[predict.FamilyMarkov].Stats.PageHits, byFamily[predict.FamilyNGram].Stats.PageHits)
	for _, fs := range f.Stats().Families {
		assert.Zero(t, fs.CurrentTime)
	}
}

func TestEvaluate_UsesUntrainedFamilies(t *testing.T) {
	f := newFleet(t)
	_, err := f.Train(predict.FamilyMarkov, [][]sim.Page{loop(5, 50)})
	require.NoError(t, err)

	results, err := f.Evaluate(context.Background(), loop(5, 40), 4)

	require.NoError(t, err)
	for _, r := range results {
		assert.False(t, r.Trained)
		assert.Zero(t, r.Stats.PageHits, "pure LRU never hits a 5-loop with 4 frames")
		assert.Zero(t, r.Evaluation.F1Score)
	}

	_, err = f.Evaluate(context.Background(), nil, 4)
	assert.Equal(t, sim.KindInvalidRequest, sim.KindOf(err))
}

func TestEvaluate_GoldenDataset(t *testing.T) {
	// GIVEN fresh families, which all fall back to LRU
	f := newFleet(t)
	dataset := testutil.LoadGoldenDataset(t)

	for _, tc := range dataset.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			seq := make([]sim.Page, len(tc.Sequence))
			for i, n := range tc.Sequence {
				seq[i] = sim.NewPage("", n)
			}

			// WHEN evaluated
			results, err := f.Evaluate(context.Background(), seq, tc.FrameCount)

			// THEN every family reproduces the LRU reference outcome
			require.NoError(t, err)
			require.Len(t, results, 3)
			for _, r := range results {
				assert.Equal(t, tc.Metrics.PageHits, r.Stats.PageHits, r.Family)
				assert.Equal(t, tc.Metrics.PageFaults, r.Stats.PageFaults, r.Family)
				testutil.AssertFloat64Equal(t, r.Family+" hit_ratio", tc.Metrics.HitRatio, r.Evaluation.HitRatio, 1e-5)
			}
		})
	}
}
