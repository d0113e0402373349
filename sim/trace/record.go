// Package trace provides eviction-decision recording for replacement analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// CandidateScore captures one occupied slot considered during ML-hybrid
// victim selection.
type CandidateScore struct {
	Slot        int     `json:"slot"`
	Page        string  `json:"page"`
	Probability float64 `json:"probability"`
	Recency     float64 `json:"recency"`
	Score       float64 `json:"score"`
	Transient   bool    `json:"transient,omitempty"` // probability defaulted to 0 after a per-candidate failure
}

// EvictionRecord captures a single victim-selection decision.
type EvictionRecord struct {
	Clock      int64            `json:"clock"`
	Incoming   string           `json:"incoming"`
	Slot       int              `json:"slot"`
	Victim     string           `json:"victim"`
	Policy     string           `json:"policy"`             // "lru" or "ml-hybrid"
	Fallback   string           `json:"fallback,omitempty"` // why LRU was used instead of ml-hybrid
	Candidates []CandidateScore `json:"candidates,omitempty"`
}

// PredictionRecord captures a prediction that could not be made.
type PredictionRecord struct {
	Clock    int64  `json:"clock"`
	Fallback string `json:"fallback"`
}
