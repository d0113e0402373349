// register.go wires the built-in families into sim's family registry. This
// init() runs when any package imports sim/predict; sim/ owns the Predictor
// interface and cannot import its implementations.
package predict

import "github.com/inference-sim/pagesim/sim"

// Built-in family names.
const (
	FamilyNGram    = "ngram"
	FamilyMarkov   = "markov"
	FamilySequence = "sequence"
)

// BuiltinFamilies lists the specs registered by this package.
var BuiltinFamilies = []FamilySpec{
	{Name: FamilyNGram, Description: "backoff n-gram frequency model over the last 3 accesses", Window: 3, Hybrid: true},
	{Name: FamilyMarkov, Description: "first-order Markov transition model", Window: 1, Hybrid: true},
	{Name: FamilySequence, Description: "5-access sequence model; prediction only, LRU eviction", Window: 5, Hybrid: false},
}

func init() {
	for _, spec := range BuiltinFamilies {
		sim.RegisterFamily(spec.Name, func(cfg sim.PredictorConfig) sim.Predictor {
			return New(spec, cfg)
		})
	}
}
