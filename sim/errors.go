package sim

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the engine, accumulator and harness.
type ErrorKind int

const (
	// KindUnknown is any error that carries no classification.
	KindUnknown ErrorKind = iota
	// KindInvalidRequest: unknown model family, empty input, missing field.
	// The operation is not attempted.
	KindInvalidRequest
	// KindPredictorUnavailable: predictor not fitted, fit failed, or it cannot
	// serve the call at all. Recovered with a deterministic fallback.
	KindPredictorUnavailable
	// KindPredictorTransient: a single candidate or context could not be
	// encoded. Recovered per candidate.
	KindPredictorTransient
	// KindStateCorruption: frame table invariant violated. Forces a hard reset.
	KindStateCorruption
)

var kindNames = map[ErrorKind]string{
	KindUnknown:              "internal",
	KindInvalidRequest:       "invalid_request",
	KindPredictorUnavailable: "predictor_unavailable",
	KindPredictorTransient:   "predictor_transient",
	KindStateCorruption:      "state_corruption",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Predictor sentinel errors. Implementations wrap these so callers can
// branch on them with errors.Is.
var (
	ErrNotFitted           = errors.New("predictor not fitted")
	ErrInsufficientContext = errors.New("insufficient history for context window")
	ErrUnseenContext       = errors.New("context contains pages unseen during training")
	ErrScoringUnsupported  = errors.New("predictor does not score eviction candidates")
	ErrInsufficientData    = errors.New("insufficient training data")
	ErrUnseenPage          = errors.New("page unseen during training")
)

// Error is a classified error with the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidRequest builds a KindInvalidRequest error.
func InvalidRequest(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidRequest, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies err. Structured errors report their own kind; bare
// predictor sentinels are mapped to unavailable or transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrUnseenPage):
		return KindPredictorTransient
	case errors.Is(err, ErrNotFitted),
		errors.Is(err, ErrInsufficientContext),
		errors.Is(err, ErrUnseenContext),
		errors.Is(err, ErrScoringUnsupported),
		errors.Is(err, ErrInsufficientData):
		return KindPredictorUnavailable
	}
	return KindUnknown
}
