package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvictions      int            `json:"totalEvictions"`
	HybridEvictions     int            `json:"hybridEvictions"`
	LRUEvictions        int            `json:"lruEvictions"`
	FallbackCounts      map[string]int `json:"fallbackCounts"`      // reason → evictions that fell back to LRU
	PredictionFallbacks map[string]int `json:"predictionFallbacks"` // reason → predictions skipped
	MeanCandidates      float64        `json:"meanCandidates"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		FallbackCounts:      make(map[string]int),
		PredictionFallbacks: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvictions = len(st.Evictions)
	totalCandidates := 0
	for _, e := range st.Evictions {
		if e.Policy == "ml-hybrid" {
			summary.HybridEvictions++
		} else {
			summary.LRUEvictions++
		}
		if e.Fallback != "" {
			summary.FallbackCounts[e.Fallback]++
		}
		totalCandidates += len(e.Candidates)
	}
	if summary.HybridEvictions > 0 {
		summary.MeanCandidates = float64(totalCandidates) / float64(summary.HybridEvictions)
	}

	for _, p := range st.Predictions {
		summary.PredictionFallbacks[p.Fallback]++
	}
	return summary
}
