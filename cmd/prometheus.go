package cmd

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/pagesim/sim"
)

// serviceMetrics exports fleet activity per model family. It implements
// fleet.Observer.
type serviceMetrics struct {
	registry     *prometheus.Registry
	accesses     *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	hitRatio     *prometheus.GaugeVec
	accuracy     *prometheus.GaugeVec
	trainings    *prometheus.CounterVec
	testAccuracy *prometheus.GaugeVec
	trained      *prometheus.GaugeVec
	resets       *prometheus.CounterVec
}

func newServiceMetrics() *serviceMetrics {
	m := &serviceMetrics{
		registry: prometheus.NewRegistry(),
		accesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagesim_page_accesses_total",
			Help: "Page accesses by model and outcome (hit, fault)",
		}, []string{"model", "outcome"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagesim_evictions_total",
			Help: "Evictions by model and victim policy",
		}, []string{"model", "policy"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagesim_eviction_fallbacks_total",
			Help: "Evictions that fell back to LRU, by reason",
		}, []string{"model", "reason"}),
		hitRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagesim_hit_ratio",
			Help: "Hits over accesses since the last reset",
		}, []string{"model"}),
		accuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagesim_prediction_accuracy_percent",
			Help: "One-step-ahead prediction accuracy since the last reset",
		}, []string{"model"}),
		trainings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagesim_training_runs_total",
			Help: "Fit calls by model and status (success, error)",
		}, []string{"model", "status"}),
		testAccuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagesim_model_test_accuracy",
			Help: "Held-out accuracy of the last successful fit",
		}, []string{"model"}),
		trained: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagesim_model_trained",
			Help: "Whether the model is fitted (0=no, 1=yes)",
		}, []string{"model"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagesim_resets_total",
			Help: "Engine and predictor resets by model",
		}, []string{"model"}),
	}
	m.registry.MustRegister(
		m.accesses,
		m.evictions,
		m.fallbacks,
		m.hitRatio,
		m.accuracy,
		m.trainings,
		m.testAccuracy,
		m.trained,
		m.resets,
	)
	return m
}

func (m *serviceMetrics) ObserveAccess(family string, res sim.AccessResult, stats sim.Stats) {
	outcome := "fault"
	if res.Hit {
		outcome = "hit"
	}
	m.accesses.WithLabelValues(family, outcome).Inc()
	if v := res.Victim; v != nil {
		m.evictions.WithLabelValues(family, string(v.Policy)).Inc()
		if v.Fallback != sim.FallbackNone {
			m.fallbacks.WithLabelValues(family, string(v.Fallback)).Inc()
		}
	}
	m.hitRatio.WithLabelValues(family).Set(stats.HitRatio)
	m.accuracy.WithLabelValues(family).Set(stats.PredictionAccuracy)
}

func (m *serviceMetrics) ObserveTrain(family string, metrics sim.TrainingMetrics, err error) {
	if err != nil {
		m.trainings.WithLabelValues(family, "error").Inc()
		return
	}
	m.trainings.WithLabelValues(family, "success").Inc()
	m.testAccuracy.WithLabelValues(family).Set(metrics.TestAccuracy)
	m.trained.WithLabelValues(family).Set(1)
}

func (m *serviceMetrics) ObserveReset(family string) {
	m.resets.WithLabelValues(family).Inc()
	m.hitRatio.WithLabelValues(family).Set(0)
	m.accuracy.WithLabelValues(family).Set(0)
	m.testAccuracy.WithLabelValues(family).Set(0)
	m.trained.WithLabelValues(family).Set(0)
}

func (m *serviceMetrics) observeImport(families []string) {
	for _, name := range families {
		m.trained.WithLabelValues(name).Set(1)
	}
}
