package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/pagesim/sim/trace"
)

// ComparisonResult is one family's outcome in a comparison run.
type ComparisonResult struct {
	Family     string              `json:"family"`
	Trained    bool                `json:"trained"`
	Stats      Stats               `json:"stats"`
	Evaluation Evaluation          `json:"evaluation"`
	ModelStats ModelStats          `json:"modelStats"`
	Note       string              `json:"note,omitempty"`
	Trace      *trace.TraceSummary `json:"trace,omitempty"`
}

// Harness replays one access sequence through an isolated engine per family.
// Engines and predictors built by the harness are private to a single
// Compare call; nothing leaks back to the caller's long-lived state.
type Harness struct {
	families  []string
	predictor PredictorConfig
	engine    EngineConfig
}

// NewHarness creates a harness over the given families. engine is the
// template for every ephemeral engine; its FrameCount is overridden per call.
func NewHarness(families []string, predictor PredictorConfig, engine EngineConfig) *Harness {
	return &Harness{
		families:  append([]string(nil), families...),
		predictor: predictor,
		engine:    engine,
	}
}

// Compare runs sequence through a fresh engine per family. A family with a
// snapshot gets a fresh predictor that imports it; a family whose snapshot is
// absent or malformed runs untrained, so its victims fall back to LRU.
// Results follow the order of the families given to NewHarness.
func (h *Harness) Compare(ctx context.Context, sequence []Page, frameCount int, snapshots map[string]*Snapshot) ([]ComparisonResult, error) {
	if len(sequence) == 0 {
		return nil, InvalidRequest("compare", "no access sequence provided")
	}
	if len(h.families) == 0 {
		return nil, InvalidRequest("compare", "no model families configured")
	}

	type run struct {
		engine  *Engine
		note    string
		trained bool
	}
	runs := make([]run, len(h.families))
	for i, family := range h.families {
		p, err := NewPredictor(family, h.predictor)
		if err != nil {
			return nil, err
		}
		r := run{}
		if snap, ok := snapshots[family]; ok && snap != nil {
			if err := p.ImportState(snap); err != nil {
				logrus.Warnf("[compare] %s snapshot rejected, running untrained: %v", family, err)
				r.note = fmt.Sprintf("snapshot rejected: %v", err)
				if p, err = NewPredictor(family, h.predictor); err != nil {
					return nil, err
				}
			} else {
				r.trained = p.Fitted()
			}
		} else {
			r.note = "no trained snapshot"
		}
		cfg := h.engine
		cfg.FrameCount = frameCount
		r.engine = NewEngine(cfg, p)
		runs[i] = r
	}

	results := make([]ComparisonResult, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range runs {
		g.Go(func() error {
			e := runs[i].engine
			for _, page := range sequence {
				if err := gctx.Err(); err != nil {
					return err
				}
				if _, err := e.AccessPage(page); err != nil {
					return fmt.Errorf("%s: %w", h.families[i], err)
				}
			}
			stats := e.Stats()
			res := ComparisonResult{
				Family:     h.families[i],
				Trained:    runs[i].trained,
				Stats:      stats,
				Evaluation: Evaluate(stats),
				ModelStats: e.Predictor().Stats(),
				Note:       runs[i].note,
			}
			if e.Trace().Enabled() {
				res.Trace = trace.Summarize(e.Trace())
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
