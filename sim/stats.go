package sim

// Counters are the raw simulation counters of one engine. They only grow
// until the engine is reset.
type Counters struct {
	PageFaults         int64 `json:"pageFaults"`
	PageHits           int64 `json:"pageHits"`
	CorrectPredictions int64 `json:"correctPredictions"`
	TotalPredictions   int64 `json:"totalPredictions"`
	CurrentTime        int64 `json:"currentTime"`
}

// Stats is the reporting view of Counters.
type Stats struct {
	Counters
	// HitRatio is hits/(hits+faults), in [0,1]; 0 before any access.
	HitRatio float64 `json:"hitRatio"`
	// PredictionAccuracy is correct/total*100; 0 before any prediction is checked.
	PredictionAccuracy float64 `json:"predictionAccuracy"`
}

// Stats derives ratios from the counters.
func (c Counters) Stats() Stats {
	s := Stats{Counters: c}
	if total := c.PageHits + c.PageFaults; total > 0 {
		s.HitRatio = float64(c.PageHits) / float64(total)
	}
	if c.TotalPredictions > 0 {
		s.PredictionAccuracy = float64(c.CorrectPredictions) / float64(c.TotalPredictions) * 100
	}
	return s
}

// Evaluation is the classification-style summary reported by comparisons.
// Precision (and Accuracy) is the one-step-ahead prediction hit rate; Recall
// is the page hit ratio. All values are fractions in [0,1].
type Evaluation struct {
	Accuracy   float64 `json:"accuracy"`
	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`
	F1Score    float64 `json:"f1Score"`
	HitRatio   float64 `json:"hitRatio"`
	PageFaults int64   `json:"pageFaults"`
}

// Evaluate computes the Evaluation for a set of stats.
func Evaluate(s Stats) Evaluation {
	precision := 0.0
	if s.TotalPredictions > 0 {
		precision = float64(s.CorrectPredictions) / float64(s.TotalPredictions)
	}
	recall := s.HitRatio
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return Evaluation{
		Accuracy:   precision,
		Precision:  precision,
		Recall:     recall,
		F1Score:    f1,
		HitRatio:   recall,
		PageFaults: s.PageFaults,
	}
}
