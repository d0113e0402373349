// Package predict provides the built-in predictor families. Each family is a
// backoff frequency model over the last N accesses; families differ in
// context length and in whether they score eviction candidates.
package predict

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/pagesim/sim"
)

// snapshotVersion is bumped whenever modelState changes shape.
const snapshotVersion = 1

const (
	testFraction = 0.2
	// minSplitSamples: below this the model is evaluated on its training set.
	minSplitSamples = 10
	cvFolds         = 3
)

// FamilySpec describes a predictor family.
type FamilySpec struct {
	Name        string
	Description string
	Window      int
	// Hybrid families score eviction candidates; others leave eviction to LRU.
	Hybrid bool
}

// countTable maps a context key to next-page counts.
type countTable map[string]map[string]int

type sample struct {
	context []string
	target  string
}

// Model is a backoff frequency predictor. It conditions on the longest suffix
// of the context (up to Window pages) that was observed in training.
type Model struct {
	spec    FamilySpec
	cfg     sim.PredictorConfig
	fitted  bool
	vocab   map[string]bool
	counts  countTable
	metrics sim.TrainingMetrics
}

// New creates an untrained model for spec.
func New(spec FamilySpec, cfg sim.PredictorConfig) *Model {
	return &Model{spec: spec, cfg: cfg}
}

func (m *Model) Family() string     { return m.spec.Name }
func (m *Model) ContextWindow() int { return m.spec.Window }
func (m *Model) Fitted() bool       { return m.fitted }

// Fit builds context windows from sequences, holds out a test split and
// reports train/test/cross-validation accuracy. The previous model survives
// a failed fit.
func (m *Model) Fit(sequences [][]sim.Page) (sim.TrainingMetrics, error) {
	samples := buildSamples(sequences, m.spec.Window)
	if len(samples) == 0 {
		return sim.TrainingMetrics{}, &sim.Error{
			Kind: sim.KindPredictorUnavailable,
			Op:   "fit " + m.spec.Name,
			Err:  fmt.Errorf("%w: sequences must be longer than %d accesses", sim.ErrInsufficientData, m.spec.Window),
		}
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(m.cfg.Seed)).ForSubsystem(sim.SubsystemFit)
	shuffled := make([]sample, len(samples))
	for i, j := range rng.Perm(len(samples)) {
		shuffled[i] = samples[j]
	}
	train, test := shuffled, shuffled
	if len(shuffled) >= minSplitSamples {
		nTest := int(math.Ceil(float64(len(shuffled)) * testFraction))
		test, train = shuffled[:nTest], shuffled[nTest:]
	}

	vocab := make(map[string]bool)
	for _, s := range samples {
		for _, k := range s.context {
			vocab[k] = true
		}
		vocab[s.target] = true
	}

	counts := newCountTable(train, m.spec.Window)
	metrics := sim.TrainingMetrics{
		Samples:       len(samples),
		TrainSamples:  len(train),
		TestSamples:   len(test),
		Classes:       len(vocab),
		TrainAccuracy: accuracy(counts, train, m.spec.Window),
		TestAccuracy:  accuracy(counts, test, m.spec.Window),
	}
	if scores := crossValidate(train, m.spec.Window, cvFolds); len(scores) > 0 {
		metrics.CVScoreMean, metrics.CVScoreStd = stat.MeanStdDev(scores, nil)
		if math.IsNaN(metrics.CVScoreStd) {
			metrics.CVScoreStd = 0
		}
	}

	m.vocab, m.counts, m.metrics, m.fitted = vocab, counts, metrics, true
	return metrics, nil
}

// PredictNext returns the most frequent successor of the current context.
func (m *Model) PredictNext(history []sim.Page) (sim.Page, error) {
	ctx, err := m.context(history)
	if err != nil {
		return sim.Page{}, err
	}
	next, ok := predict(m.counts, ctx)
	if !ok {
		return sim.Page{}, fmt.Errorf("%s: %w", m.spec.Name, sim.ErrUnseenContext)
	}
	return sim.ParsePageKey(next)
}

// Score returns P(candidate | context) under the longest observed suffix.
func (m *Model) Score(candidate sim.Page, context []sim.Page) (float64, error) {
	if !m.spec.Hybrid {
		return 0, fmt.Errorf("%s: %w", m.spec.Name, sim.ErrScoringUnsupported)
	}
	ctx, err := m.context(context)
	if err != nil {
		return 0, err
	}
	key := candidate.Key()
	if !m.vocab[key] {
		return 0, fmt.Errorf("%s: candidate %s: %w", m.spec.Name, key, sim.ErrUnseenPage)
	}
	next, total := lookup(m.counts, ctx)
	if total == 0 {
		return 0, nil
	}
	return float64(next[key]) / float64(total), nil
}

// context validates history and returns its trailing window as keys.
func (m *Model) context(history []sim.Page) ([]string, error) {
	if !m.fitted {
		return nil, fmt.Errorf("%s: %w", m.spec.Name, sim.ErrNotFitted)
	}
	if len(history) < m.spec.Window {
		return nil, fmt.Errorf("%s: have %d of %d: %w", m.spec.Name, len(history), m.spec.Window, sim.ErrInsufficientContext)
	}
	ctx := sim.PageKeys(history[len(history)-m.spec.Window:])
	for _, k := range ctx {
		if !m.vocab[k] {
			return nil, fmt.Errorf("%s: %s: %w", m.spec.Name, k, sim.ErrUnseenContext)
		}
	}
	return ctx, nil
}

// modelState is the snapshot payload.
type modelState struct {
	Window  int                 `json:"window"`
	Vocab   []string            `json:"vocab"`
	Counts  countTable          `json:"counts"`
	Metrics sim.TrainingMetrics `json:"metrics"`
}

// ExportState snapshots a fitted model.
func (m *Model) ExportState() (*sim.Snapshot, error) {
	if !m.fitted {
		return nil, fmt.Errorf("export %s: %w", m.spec.Name, sim.ErrNotFitted)
	}
	vocab := make([]string, 0, len(m.vocab))
	for k := range m.vocab {
		vocab = append(vocab, k)
	}
	sort.Strings(vocab)
	return sim.NewSnapshot(m.spec.Name, snapshotVersion, m.cfg.Codec, modelState{
		Window:  m.spec.Window,
		Vocab:   vocab,
		Counts:  m.counts,
		Metrics: m.metrics,
	})
}

// ImportState installs a snapshot. The model is unchanged on error.
func (m *Model) ImportState(s *sim.Snapshot) error {
	var st modelState
	if err := s.Decode(m.spec.Name, snapshotVersion, &st); err != nil {
		return err
	}
	if st.Window != m.spec.Window {
		return fmt.Errorf("%s snapshot has context window %d, want %d", m.spec.Name, st.Window, m.spec.Window)
	}
	if len(st.Vocab) == 0 || len(st.Counts) == 0 {
		return fmt.Errorf("%s snapshot holds no trained model", m.spec.Name)
	}
	vocab := make(map[string]bool, len(st.Vocab))
	for _, k := range st.Vocab {
		if _, err := sim.ParsePageKey(k); err != nil {
			return fmt.Errorf("%s snapshot: %w", m.spec.Name, err)
		}
		vocab[k] = true
	}
	m.vocab, m.counts, m.metrics, m.fitted = vocab, st.Counts, st.Metrics, true
	return nil
}

// Stats describes the model.
func (m *Model) Stats() sim.ModelStats {
	return sim.ModelStats{
		Family:         m.spec.Name,
		Description:    m.spec.Description,
		Fitted:         m.fitted,
		ContextWindow:  m.spec.Window,
		Classes:        len(m.vocab),
		HybridEviction: m.spec.Hybrid,
		TrainAccuracy:  m.metrics.TrainAccuracy,
		TestAccuracy:   m.metrics.TestAccuracy,
		CVScoreMean:    m.metrics.CVScoreMean,
	}
}

func buildSamples(sequences [][]sim.Page, window int) []sample {
	var out []sample
	for _, seq := range sequences {
		keys := sim.PageKeys(seq)
		for i := window; i < len(keys); i++ {
			out = append(out, sample{context: keys[i-window : i], target: keys[i]})
		}
	}
	return out
}

// contextKey encodes a suffix; the length prefix keeps suffixes of different
// lengths apart.
func contextKey(suffix []string) string {
	return strconv.Itoa(len(suffix)) + ":" + strings.Join(suffix, "|")
}

func newCountTable(samples []sample, window int) countTable {
	t := make(countTable)
	for _, s := range samples {
		for k := 0; k <= window && k <= len(s.context); k++ {
			key := contextKey(s.context[len(s.context)-k:])
			next, ok := t[key]
			if !ok {
				next = make(map[string]int)
				t[key] = next
			}
			next[s.target]++
		}
	}
	return t
}

// lookup returns the successor counts under the longest observed suffix.
func lookup(t countTable, ctx []string) (map[string]int, int) {
	for k := len(ctx); k >= 0; k-- {
		next, ok := t[contextKey(ctx[len(ctx)-k:])]
		if !ok || len(next) == 0 {
			continue
		}
		total := 0
		for _, c := range next {
			total += c
		}
		return next, total
	}
	return nil, 0
}

// predict returns the most frequent successor; ties go to the smallest key.
func predict(t countTable, ctx []string) (string, bool) {
	next, total := lookup(t, ctx)
	if total == 0 {
		return "", false
	}
	best, bestCount := "", -1
	for k, c := range next {
		if c > bestCount || (c == bestCount && k < best) {
			best, bestCount = k, c
		}
	}
	return best, true
}

func accuracy(t countTable, samples []sample, window int) float64 {
	if len(samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range samples {
		if got, ok := predict(t, s.context[len(s.context)-window:]); ok && got == s.target {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}

// crossValidate returns per-fold accuracies over contiguous folds, or nil
// when there are fewer samples than folds.
func crossValidate(samples []sample, window, folds int) []float64 {
	if len(samples) < folds {
		return nil
	}
	scores := make([]float64, 0, folds)
	for f := 0; f < folds; f++ {
		lo := f * len(samples) / folds
		hi := (f + 1) * len(samples) / folds
		rest := make([]sample, 0, len(samples)-(hi-lo))
		rest = append(rest, samples[:lo]...)
		rest = append(rest, samples[hi:]...)
		scores = append(scores, accuracy(newCountTable(rest, window), samples[lo:hi], window))
	}
	return scores
}
