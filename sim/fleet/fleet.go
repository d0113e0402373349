// Package fleet holds the long-lived service state: one predictor and engine
// per model family plus the shared training accumulator. Every operation
// runs under a single mutex; comparison runs replay outside it on private
// engines.
package fleet

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pagesim/sim"
	_ "github.com/inference-sim/pagesim/sim/predict" // registers built-in families
	"github.com/inference-sim/pagesim/sim/trace"
)

// DefaultWorkloadType tags training submissions that name no workload type.
const DefaultWorkloadType = "unknown"

// Config configures a Fleet.
type Config struct {
	// Families to serve; empty means every registered family.
	Families []string
	// FrameCount is the initial and default frame count.
	FrameCount     int
	MaxAccumulated int
	Predictor      sim.PredictorConfig
	// Engine is the template for every engine; FrameCount is overridden.
	Engine sim.EngineConfig
}

// DefaultConfig returns a fleet over every registered family with 4 frames.
func DefaultConfig() Config {
	return Config{
		FrameCount:     sim.DefaultFrameCount,
		MaxAccumulated: sim.MaxAccumulated,
		Predictor:      sim.DefaultPredictorConfig(),
		Engine:         sim.DefaultEngineConfig(),
	}
}

// Observer receives fleet events, e.g. to export metrics. Calls are made
// with the fleet lock held and must not call back into the fleet.
type Observer interface {
	ObserveAccess(family string, res sim.AccessResult, stats sim.Stats)
	ObserveTrain(family string, metrics sim.TrainingMetrics, err error)
	ObserveReset(family string)
}

// Fleet is the orchestration context shared by all requests.
type Fleet struct {
	mu            sync.Mutex
	cfg           Config
	defaultFrames int
	families      []string
	engines       map[string]*sim.Engine
	accumulator   *sim.TrainingAccumulator
	observer      Observer
}

// New creates a fleet with untrained predictors and empty engines.
func New(cfg Config) (*Fleet, error) {
	if cfg.FrameCount <= 0 {
		cfg.FrameCount = sim.DefaultFrameCount
	}
	families := append([]string(nil), cfg.Families...)
	if len(families) == 0 {
		families = sim.Families()
	}
	if len(families) == 0 {
		return nil, sim.InvalidRequest("new fleet", "no model families registered")
	}
	seen := make(map[string]bool, len(families))
	for _, name := range families {
		if !sim.IsValidFamily(name) {
			return nil, sim.InvalidRequest("new fleet", "unknown model %q; valid: %v", name, sim.Families())
		}
		if seen[name] {
			return nil, sim.InvalidRequest("new fleet", "model %q listed twice", name)
		}
		seen[name] = true
	}
	sort.Strings(families)
	cfg.Families = families

	f := &Fleet{
		cfg:           cfg,
		defaultFrames: cfg.FrameCount,
		families:      families,
		accumulator:   sim.NewTrainingAccumulator(cfg.MaxAccumulated),
	}
	if err := f.rebuild(cfg.FrameCount); err != nil {
		return nil, err
	}
	return f, nil
}

// SetObserver installs o; nil disables observation.
func (f *Fleet) SetObserver(o Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observer = o
}

// Families returns the served families, sorted.
func (f *Fleet) Families() []string { return append([]string(nil), f.families...) }

// FrameCount returns the frame count of the last fleet-wide reset or configure.
func (f *Fleet) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.FrameCount
}

// DefaultFrameCount returns the frame count used when a request names none.
func (f *Fleet) DefaultFrameCount() int { return f.defaultFrames }

// rebuild replaces every predictor and engine. Caller holds mu.
func (f *Fleet) rebuild(frameCount int) error {
	engines := make(map[string]*sim.Engine, len(f.families))
	for _, name := range f.families {
		e, err := f.newEngine(name, frameCount)
		if err != nil {
			return err
		}
		engines[name] = e
	}
	f.engines = engines
	f.cfg.FrameCount = frameCount
	return nil
}

func (f *Fleet) newEngine(family string, frameCount int) (*sim.Engine, error) {
	p, err := sim.NewPredictor(family, f.cfg.Predictor)
	if err != nil {
		return nil, err
	}
	cfg := f.cfg.Engine
	cfg.FrameCount = frameCount
	return sim.NewEngine(cfg, p), nil
}

// engine returns the family's engine or an InvalidRequest. Caller holds mu.
func (f *Fleet) engine(op, family string) (*sim.Engine, error) {
	e, ok := f.engines[family]
	if !ok {
		return nil, sim.InvalidRequest(op, "unknown model %q; valid: %v", family, f.families)
	}
	return e, nil
}

// frameCountOrDefault maps non-positive counts to the configured default.
func (f *Fleet) frameCountOrDefault(frameCount int) int {
	if frameCount <= 0 {
		return f.defaultFrames
	}
	return frameCount
}

// TrainResult is the outcome of fitting one family.
type TrainResult struct {
	Family     string               `json:"family"`
	Status     string               `json:"status"`
	Metrics    *sim.TrainingMetrics `json:"metrics,omitempty"`
	ModelStats sim.ModelStats       `json:"modelStats"`
	Error      string               `json:"error,omitempty"`
	Kind       string               `json:"kind,omitempty"`
}

// Train fits one family directly on sequences, bypassing the accumulator.
func (f *Fleet) Train(family string, sequences [][]sim.Page) (TrainResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, err := f.engine("train", family)
	if err != nil {
		return TrainResult{}, err
	}
	if len(sequences) == 0 {
		return TrainResult{}, sim.InvalidRequest("train", "no training sequences provided")
	}
	return f.fit(family, e.Predictor(), sequences)
}

// fit trains p and reports the outcome. Caller holds mu.
func (f *Fleet) fit(family string, p sim.Predictor, sequences [][]sim.Page) (TrainResult, error) {
	metrics, err := p.Fit(sequences)
	if f.observer != nil {
		f.observer.ObserveTrain(family, metrics, err)
	}
	res := TrainResult{Family: family, ModelStats: p.Stats()}
	if err != nil {
		logrus.Warnf("[%s] training failed: %v", family, err)
		res.Status, res.Error, res.Kind = "error", err.Error(), sim.KindOf(err).String()
		return res, err
	}
	logrus.Infof("[%s] trained on %d samples: train=%.3f test=%.3f cv=%.3f",
		family, metrics.Samples, metrics.TrainAccuracy, metrics.TestAccuracy, metrics.CVScoreMean)
	res.Status, res.Metrics = "success", &metrics
	return res, nil
}

// CumulativeInfo describes the accumulator after a training call.
type CumulativeInfo struct {
	WorkloadType         string `json:"workloadType"`
	AccumulatedSequences int    `json:"accumulatedSequences"`
	TotalSamples         int    `json:"totalSamples"`
	TypeChanged          bool   `json:"typeChanged"`
	AutoReset            bool   `json:"autoReset"`
}

// TrainAllResult is the outcome of TrainAll.
type TrainAllResult struct {
	Results    map[string]TrainResult `json:"results"`
	Cumulative CumulativeInfo         `json:"cumulativeInfo"`
}

// TrainAll folds sequences into the accumulator and refits every family on
// the accumulated window. A family whose fit fails keeps its previous model
// and reports the error; the call itself still succeeds.
func (f *Fleet) TrainAll(sequences [][]sim.Page, workloadType string, forceReset bool) (TrainAllResult, error) {
	if workloadType == "" {
		workloadType = DefaultWorkloadType
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, err := f.accumulator.Submit(sequences, workloadType, forceReset)
	if err != nil {
		return TrainAllResult{}, err
	}
	logrus.Infof("[accumulator] training %d families on %d accumulated sequences", len(f.families), sub.SequencesUsed)

	out := TrainAllResult{
		Results: make(map[string]TrainResult, len(f.families)),
		Cumulative: CumulativeInfo{
			WorkloadType:         sub.WorkloadType,
			AccumulatedSequences: sub.SequencesUsed,
			TotalSamples:         sub.TotalSamples,
			TypeChanged:          sub.TypeChanged,
			AutoReset:            sub.TypeChanged,
		},
	}
	for _, name := range f.families {
		out.Results[name], _ = f.fit(name, f.engines[name].Predictor(), sub.Sequences)
	}
	return out, nil
}

// AccessReport is one family's view of an access.
type AccessReport struct {
	Family string           `json:"model"`
	Result sim.AccessResult `json:"result"`
	Stats  sim.Stats        `json:"stats"`
}

// Access sends one access to the family's engine.
func (f *Fleet) Access(family string, page sim.Page) (AccessReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, err := f.engine("access", family)
	if err != nil {
		return AccessReport{}, err
	}
	return f.access(family, e, page)
}

// AccessAll sends the same access to every family's engine.
func (f *Fleet) AccessAll(page sim.Page) (map[string]AccessReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]AccessReport, len(f.families))
	for _, name := range f.families {
		rep, err := f.access(name, f.engines[name], page)
		if err != nil {
			return nil, err
		}
		out[name] = rep
	}
	return out, nil
}

func (f *Fleet) access(family string, e *sim.Engine, page sim.Page) (AccessReport, error) {
	res, err := e.AccessPage(page)
	if err != nil {
		return AccessReport{}, err
	}
	stats := e.Stats()
	if f.observer != nil {
		f.observer.ObserveAccess(family, res, stats)
	}
	return AccessReport{Family: family, Result: res, Stats: stats}, nil
}

// FamilyStats summarizes one family for the stats listing.
type FamilyStats struct {
	sim.Stats
	FrameCount   int         `json:"frameCount"`
	Frames       []*sim.Page `json:"frames"`
	Trained      bool        `json:"trained"`
	Accuracy     float64     `json:"accuracy"`
	TestAccuracy float64     `json:"testAccuracy"`
	Classes      int         `json:"classes"`
}

// Overview is the state of the whole fleet.
type Overview struct {
	Families   map[string]FamilyStats `json:"families"`
	Cumulative sim.AccumulatorState   `json:"cumulative"`
}

// Stats reports every family plus the accumulator.
func (f *Fleet) Stats() Overview {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := Overview{
		Families:   make(map[string]FamilyStats, len(f.families)),
		Cumulative: f.accumulator.State(),
	}
	for _, name := range f.families {
		e := f.engines[name]
		ms := e.Predictor().Stats()
		frames := make([]*sim.Page, 0, e.FrameCount())
		for _, slot := range e.Frames() {
			frames = append(frames, slot.Page)
		}
		out.Families[name] = FamilyStats{
			Stats:        e.Stats(),
			FrameCount:   e.FrameCount(),
			Frames:       frames,
			Trained:      ms.Fitted,
			Accuracy:     ms.TrainAccuracy,
			TestAccuracy: ms.TestAccuracy,
			Classes:      ms.Classes,
		}
	}
	return out
}

// FamilyDetail is the detailed view of one family.
type FamilyDetail struct {
	Family       string              `json:"model"`
	Stats        sim.Stats           `json:"stats"`
	Frames       []sim.FrameSlot     `json:"frames"`
	Prediction   *sim.Page           `json:"prediction"`
	ModelDetails sim.ModelStats      `json:"modelDetails"`
	Trace        *trace.TraceSummary `json:"trace,omitempty"`
}

// FamilyStats returns the detailed view of one family.
func (f *Fleet) FamilyStats(family string) (FamilyDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, err := f.engine("stats", family)
	if err != nil {
		return FamilyDetail{}, err
	}
	d := FamilyDetail{
		Family:       family,
		Stats:        e.Stats(),
		Frames:       e.Frames(),
		Prediction:   e.LastPrediction(),
		ModelDetails: e.Predictor().Stats(),
	}
	if e.Trace().Enabled() {
		d.Trace = trace.Summarize(e.Trace())
	}
	return d, nil
}

// ModelStats describes the family's predictor.
func (f *Fleet) ModelStats(family string) (sim.ModelStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, err := f.engine("predict", family)
	if err != nil {
		return sim.ModelStats{}, err
	}
	return e.Predictor().Stats(), nil
}

// Reset replaces every predictor and engine and clears the accumulator.
// Non-positive frame counts use the configured default.
func (f *Fleet) Reset(frameCount int) (int, error) {
	frameCount = f.frameCountOrDefault(frameCount)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.rebuild(frameCount); err != nil {
		return 0, err
	}
	f.accumulator.Reset()
	logrus.Infof("[fleet] reset %d families with %d frames; accumulated data cleared", len(f.families), frameCount)
	f.notifyReset(f.families...)
	return frameCount, nil
}

// ResetFamily replaces one family's predictor and engine.
func (f *Fleet) ResetFamily(family string, frameCount int) (int, error) {
	frameCount = f.frameCountOrDefault(frameCount)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.engine("reset", family); err != nil {
		return 0, err
	}
	e, err := f.newEngine(family, frameCount)
	if err != nil {
		return 0, err
	}
	f.engines[family] = e
	logrus.Infof("[%s] reset with %d frames", family, frameCount)
	f.notifyReset(family)
	return frameCount, nil
}

// Configure reinitializes predictors and engines with a new frame count.
// The accumulator is kept.
func (f *Fleet) Configure(frameCount int) (int, error) {
	frameCount = f.frameCountOrDefault(frameCount)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.rebuild(frameCount); err != nil {
		return 0, err
	}
	logrus.Infof("[fleet] configured %d frames", frameCount)
	f.notifyReset(f.families...)
	return frameCount, nil
}

func (f *Fleet) notifyReset(families ...string) {
	if f.observer == nil {
		return
	}
	for _, name := range families {
		f.observer.ObserveReset(name)
	}
}

// Export snapshots every fitted family. Unfitted families are omitted.
func (f *Fleet) Export() (map[string]*sim.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.export()
}

func (f *Fleet) export() (map[string]*sim.Snapshot, error) {
	out := make(map[string]*sim.Snapshot)
	for _, name := range f.families {
		p := f.engines[name].Predictor()
		if !p.Fitted() {
			continue
		}
		snap, err := p.ExportState()
		if err != nil {
			return nil, err
		}
		out[name] = snap
	}
	return out, nil
}

// ImportResult lists which snapshots were installed.
type ImportResult struct {
	Imported []string `json:"imported"`
	Ignored  []string `json:"ignored,omitempty"`
}

// Import installs snapshots into fresh predictors bound to the existing
// engines. Either every known family's snapshot is installed or none is.
// Snapshots for unknown families are ignored.
func (f *Fleet) Import(snapshots map[string]*sim.Snapshot) (ImportResult, error) {
	if len(snapshots) == 0 {
		return ImportResult{}, sim.InvalidRequest("import", "no snapshots provided")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	staged := make(map[string]sim.Predictor, len(snapshots))
	var res ImportResult
	names := make([]string, 0, len(snapshots))
	for name := range snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := f.engines[name]; !ok {
			res.Ignored = append(res.Ignored, name)
			continue
		}
		p, err := sim.NewPredictor(name, f.cfg.Predictor)
		if err != nil {
			return ImportResult{}, err
		}
		if err := p.ImportState(snapshots[name]); err != nil {
			return ImportResult{}, sim.InvalidRequest("import", "%s: %v", name, err)
		}
		staged[name] = p
		res.Imported = append(res.Imported, name)
	}
	for name, p := range staged {
		f.engines[name].Bind(p)
	}
	return res, nil
}

// Compare replays sequence through a private engine per family, using
// the trained state of each live predictor. Live engines are not touched.
func (f *Fleet) Compare(ctx context.Context, sequence []sim.Page, frameCount int) ([]sim.ComparisonResult, error) {
	f.mu.Lock()
	snaps, err := f.export()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.harness().Compare(ctx, sequence, f.frameCountOrDefault(frameCount), snaps)
}

// Evaluate replays sequence through fresh, untrained families.
func (f *Fleet) Evaluate(ctx context.Context, sequence []sim.Page, frameCount int) ([]sim.ComparisonResult, error) {
	return f.harness().Compare(ctx, sequence, f.frameCountOrDefault(frameCount), nil)
}

func (f *Fleet) harness() *sim.Harness {
	return sim.NewHarness(f.families, f.cfg.Predictor, f.cfg.Engine)
}
