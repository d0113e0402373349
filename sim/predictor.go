package sim

import (
	"fmt"
	"sort"
	"sync"
)

// Predictor is the capability every model family implements in full.
// Families lacking a feature return zero values or a sentinel error
// (e.g. ErrScoringUnsupported) instead of omitting the method.
type Predictor interface {
	// Family returns the registered family name.
	Family() string
	// ContextWindow is the number of trailing accesses the model conditions on.
	ContextWindow() int
	// Fitted reports whether the model can serve predictions.
	Fitted() bool
	// Fit trains on sequences. On failure the previous model is kept.
	Fit(sequences [][]Page) (TrainingMetrics, error)
	// PredictNext returns the most likely next access given history.
	PredictNext(history []Page) (Page, error)
	// Score returns a probability in [0,1] that candidate is the next access.
	Score(candidate Page, context []Page) (float64, error)
	// ExportState produces an opaque snapshot of the trained model.
	ExportState() (*Snapshot, error)
	// ImportState replaces the model with a snapshot produced by ExportState.
	ImportState(s *Snapshot) error
	// Stats describes the model.
	Stats() ModelStats
}

// TrainingMetrics summarizes one Fit call.
type TrainingMetrics struct {
	Samples       int     `json:"samples"`
	TrainSamples  int     `json:"trainSamples"`
	TestSamples   int     `json:"testSamples"`
	Classes       int     `json:"classes"`
	TrainAccuracy float64 `json:"trainAccuracy"`
	TestAccuracy  float64 `json:"testAccuracy"`
	CVScoreMean   float64 `json:"cvScoreMean"`
	CVScoreStd    float64 `json:"cvScoreStd"`
}

// ModelStats describes a predictor independent of any engine.
type ModelStats struct {
	Family         string  `json:"family"`
	Description    string  `json:"description"`
	Fitted         bool    `json:"fitted"`
	ContextWindow  int     `json:"contextWindow"`
	Classes        int     `json:"classes"`
	HybridEviction bool    `json:"hybridEviction"`
	TrainAccuracy  float64 `json:"trainAccuracy"`
	TestAccuracy   float64 `json:"testAccuracy"`
	CVScoreMean    float64 `json:"cvScoreMean"`
}

// PredictorConfig carries construction parameters shared by all families.
type PredictorConfig struct {
	Seed  int64
	Codec Codec
}

// DefaultPredictorConfig matches the reference service settings.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{Seed: 42, Codec: CodecSnappy}
}

// PredictorFactory builds an untrained predictor.
type PredictorFactory func(cfg PredictorConfig) Predictor

var (
	registryMu sync.RWMutex
	registry   = map[string]PredictorFactory{}
)

// RegisterFamily makes a predictor family available by name. Sub-packages
// call it from init(). Registering the same name twice panics.
func RegisterFamily(name string, factory PredictorFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("predictor family %q registered twice", name))
	}
	registry[name] = factory
}

// IsValidFamily returns true if name is a registered family.
func IsValidFamily(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Families returns sorted registered family names.
func Families() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPredictor constructs an untrained predictor of the named family.
func NewPredictor(name string, cfg PredictorConfig) (Predictor, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, InvalidRequest("new predictor", "unknown model %q; valid: %v", name, Families())
	}
	return factory(cfg), nil
}
