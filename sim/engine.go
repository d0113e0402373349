package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pagesim/sim/trace"
)

// DefaultHistoryLimit bounds the access history kept as prediction context.
const DefaultHistoryLimit = 1000

// EngineConfig configures a replacement engine.
type EngineConfig struct {
	FrameCount   int
	HistoryLimit int
	Trace        trace.TraceConfig
}

// DefaultEngineConfig returns a 4-frame engine with tracing off.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FrameCount:   DefaultFrameCount,
		HistoryLimit: DefaultHistoryLimit,
		Trace:        trace.TraceConfig{Level: trace.TraceLevelNone},
	}
}

// AccessResult describes the outcome of one page access.
type AccessResult struct {
	Hit        bool            `json:"hit"`
	PageFault  bool            `json:"pageFault"`
	Page       Page            `json:"page"`
	Frame      int             `json:"frame"`
	Replaced   *Page           `json:"replaced"`
	Frames     []*Page         `json:"frames"`
	Prediction *Page           `json:"prediction"`
	Victim     *VictimDecision `json:"victim,omitempty"`
}

// Engine simulates one frame table driven by an optional predictor.
// It owns its frame table, counters and prediction state exclusively.
//
// Thread-safety: NOT thread-safe. Callers sharing an engine must serialize
// access (see sim/fleet).
type Engine struct {
	cfg            EngineConfig
	frames         *FrameTable
	counters       Counters
	history        []Page
	lastPrediction *Page
	predictor      Predictor
	trace          *trace.SimulationTrace
}

// NewEngine creates an engine with an empty frame table. p may be nil, in
// which case victims are always chosen by LRU and no predictions are made.
func NewEngine(cfg EngineConfig, p Predictor) *Engine {
	if cfg.FrameCount <= 0 {
		cfg.FrameCount = DefaultFrameCount
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	e := &Engine{cfg: cfg, predictor: p}
	e.clear()
	return e
}

func (e *Engine) clear() {
	e.frames = NewFrameTable(e.cfg.FrameCount)
	e.counters = Counters{}
	e.history = make([]Page, 0, 64)
	e.lastPrediction = nil
	e.trace = trace.NewSimulationTrace(e.cfg.Trace)
}

// Bind attaches a predictor without touching frames or counters.
func (e *Engine) Bind(p Predictor) { e.predictor = p }

// Predictor returns the bound predictor, or nil.
func (e *Engine) Predictor() Predictor { return e.predictor }

// FrameCount returns the number of frames.
func (e *Engine) FrameCount() int { return e.frames.Len() }

// Frames returns a copy of the frame table.
func (e *Engine) Frames() []FrameSlot { return e.frames.Snapshot() }

// Counters returns the raw counters.
func (e *Engine) Counters() Counters { return e.counters }

// Stats returns counters and derived ratios.
func (e *Engine) Stats() Stats { return e.counters.Stats() }

// Trace returns the decision trace; it is empty unless tracing is enabled.
func (e *Engine) Trace() *trace.SimulationTrace { return e.trace }

// LastPrediction returns the prediction to be checked on the next access.
func (e *Engine) LastPrediction() *Page {
	if e.lastPrediction == nil {
		return nil
	}
	p := *e.lastPrediction
	return &p
}

// Reset discards frames, counters, history and prediction state. The bound
// predictor is kept; it is not engine state.
func (e *Engine) Reset(frameCount int) {
	e.cfg.FrameCount = frameCount
	if e.cfg.FrameCount <= 0 {
		e.cfg.FrameCount = DefaultFrameCount
	}
	e.clear()
}

// Access is AccessPage for a (processID, pageNumber) pair.
func (e *Engine) Access(processID string, number int) (AccessResult, error) {
	return e.AccessPage(NewPage(processID, number))
}

// AccessPage processes one access synchronously.
//
// The prediction made on the previous access is scored against page before
// anything else happens, so accuracy is one-step-ahead and independent of
// the hit/fault outcome.
func (e *Engine) AccessPage(page Page) (AccessResult, error) {
	e.counters.CurrentTime++
	now := e.counters.CurrentTime

	if e.lastPrediction != nil {
		e.counters.TotalPredictions++
		if *e.lastPrediction == page {
			e.counters.CorrectPredictions++
		}
	}

	e.appendHistory(page)
	e.lastPrediction = e.predictNext(now)

	result := AccessResult{Page: page, Prediction: e.LastPrediction()}

	if idx, ok := e.frames.FindByPage(page); ok {
		e.counters.PageHits++
		e.frames.Touch(idx, now)
		result.Hit = true
		result.Frame = idx
		result.Frames = e.frames.Pages()
		return result, nil
	}

	e.counters.PageFaults++
	result.PageFault = true
	target, ok := e.frames.FirstEmpty()
	if !ok {
		decision := selectVictim(e.frames, e.predictor, e.history, now)
		target = decision.Slot
		replaced := e.frames.Slot(target).Page
		result.Replaced = replaced
		result.Victim = &decision
		e.recordEviction(now, page, replaced, decision)
	}
	e.frames.Load(target, page, now)
	result.Frame = target

	if err := e.frames.Validate(); err != nil {
		logrus.Errorf("frame table corrupted at t=%d, hard reset: %v", now, err)
		e.Reset(e.cfg.FrameCount)
		return AccessResult{}, err
	}
	result.Frames = e.frames.Pages()
	return result, nil
}

func (e *Engine) appendHistory(page Page) {
	limit := e.cfg.HistoryLimit
	if e.predictor != nil && e.predictor.ContextWindow() > limit {
		limit = e.predictor.ContextWindow()
	}
	e.history = append(e.history, page)
	if len(e.history) > limit {
		e.history = append(e.history[:0], e.history[len(e.history)-limit:]...)
	}
}

// predictNext asks the predictor for the next access. Every failure degrades
// to no prediction; the reason is traced.
func (e *Engine) predictNext(now int64) *Page {
	if e.predictor == nil {
		return nil
	}
	next, err := e.predictor.PredictNext(e.history)
	if err != nil {
		reason := fallbackFor(err)
		if KindOf(err) == KindPredictorTransient {
			reason = FallbackUnseenContext
		}
		logrus.Debugf("[%s] no prediction at t=%d: %v", e.predictor.Family(), now, err)
		if e.trace.Enabled() {
			e.trace.RecordPrediction(trace.PredictionRecord{Clock: now, Fallback: string(reason)})
		}
		return nil
	}
	return &next
}

func (e *Engine) recordEviction(now int64, incoming Page, victim *Page, d VictimDecision) {
	if d.Fallback != FallbackNone && e.predictor != nil {
		logrus.Debugf("[%s] LRU fallback at t=%d: %s", e.predictor.Family(), now, d.Fallback)
	}
	if !e.trace.Enabled() {
		return
	}
	rec := trace.EvictionRecord{
		Clock:      now,
		Incoming:   incoming.Key(),
		Slot:       d.Slot,
		Policy:     string(d.Policy),
		Fallback:   string(d.Fallback),
		Candidates: d.Candidates,
	}
	if victim != nil {
		rec.Victim = victim.Key()
	}
	e.trace.RecordEviction(rec)
}
