package sim

import (
	"errors"
	"math"

	"github.com/inference-sim/pagesim/sim/trace"
)

// RecencyWeight scales the staleness penalty in ML-hybrid scoring.
const RecencyWeight = 0.3

// VictimPolicy names the rule that picked a victim.
type VictimPolicy string

const (
	PolicyLRU    VictimPolicy = "lru"
	PolicyHybrid VictimPolicy = "ml-hybrid"
)

// Fallback explains why a predictor-backed decision was not made.
type Fallback string

const (
	FallbackNone                Fallback = ""
	FallbackNoPredictor         Fallback = "no-predictor"
	FallbackNotFitted           Fallback = "not-fitted"
	FallbackInsufficientContext Fallback = "insufficient-context"
	FallbackUnseenContext       Fallback = "unseen-context"
	FallbackScoringUnsupported  Fallback = "scoring-unsupported"
	FallbackPredictorError      Fallback = "predictor-error"
)

// fallbackFor maps a model-level predictor error to its fallback reason.
func fallbackFor(err error) Fallback {
	switch {
	case errors.Is(err, ErrNotFitted):
		return FallbackNotFitted
	case errors.Is(err, ErrInsufficientContext):
		return FallbackInsufficientContext
	case errors.Is(err, ErrUnseenContext):
		return FallbackUnseenContext
	case errors.Is(err, ErrScoringUnsupported):
		return FallbackScoringUnsupported
	default:
		return FallbackPredictorError
	}
}

// VictimDecision records how a victim slot was chosen.
type VictimDecision struct {
	Slot       int                    `json:"slot"`
	Policy     VictimPolicy           `json:"policy"`
	Fallback   Fallback               `json:"fallback,omitempty"`
	Candidates []trace.CandidateScore `json:"candidates,omitempty"`
}

// selectLRU returns the occupied slot with the smallest LastAccess.
// Ties go to the lowest index.
func selectLRU(ft *FrameTable) int {
	victim := -1
	var oldest int64 = math.MaxInt64
	for i := range ft.slots {
		if ft.slots[i].Page == nil {
			continue
		}
		if ft.slots[i].LastAccess < oldest {
			oldest = ft.slots[i].LastAccess
			victim = i
		}
	}
	return victim
}

func lruDecision(ft *FrameTable, reason Fallback) VictimDecision {
	return VictimDecision{Slot: selectLRU(ft), Policy: PolicyLRU, Fallback: reason}
}

// selectVictim picks the slot to evict from a full table.
//
// With a fitted predictor each occupied slot is scored as
// p(page) - RecencyWeight*(now-lastAccess)/max(1,now) and the minimum is
// evicted, ties to the lowest index. A per-candidate (transient) failure
// scores that candidate with p = 0; a model-level failure abandons the
// hybrid decision and uses LRU.
func selectVictim(ft *FrameTable, p Predictor, history []Page, now int64) VictimDecision {
	if p == nil {
		return lruDecision(ft, FallbackNoPredictor)
	}
	if !p.Fitted() {
		return lruDecision(ft, FallbackNotFitted)
	}

	denom := float64(now)
	if denom < 1 {
		denom = 1
	}
	best := -1
	bestScore := math.Inf(1)
	candidates := make([]trace.CandidateScore, 0, len(ft.slots))
	for i := range ft.slots {
		slot := ft.slots[i]
		if slot.Page == nil {
			continue
		}
		transient := false
		prob, err := p.Score(*slot.Page, history)
		if err != nil {
			if KindOf(err) != KindPredictorTransient {
				return lruDecision(ft, fallbackFor(err))
			}
			prob, transient = 0, true
		}
		if math.IsNaN(prob) {
			prob, transient = 0, true
		}
		prob = math.Max(0, math.Min(1, prob))
		recency := float64(now-slot.LastAccess) / denom
		score := prob - RecencyWeight*recency
		candidates = append(candidates, trace.CandidateScore{
			Slot:        i,
			Page:        slot.Page.Key(),
			Probability: prob,
			Recency:     recency,
			Score:       score,
			Transient:   transient,
		})
		if score < bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return lruDecision(ft, FallbackPredictorError)
	}
	return VictimDecision{Slot: best, Policy: PolicyHybrid, Candidates: candidates}
}
