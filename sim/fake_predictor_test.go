package sim

import "fmt"

// fakePredictor is a scriptable Predictor for engine and harness tests.
type fakePredictor struct {
	family   string
	window   int
	fitted   bool
	next     *Page
	nextErr  error
	scores   map[Page]float64
	scoreErr map[Page]error
	modelErr error
	imported int
}

func (f *fakePredictor) Family() string     { return f.family }
func (f *fakePredictor) ContextWindow() int { return f.window }
func (f *fakePredictor) Fitted() bool       { return f.fitted }

func (f *fakePredictor) Fit(sequences [][]Page) (TrainingMetrics, error) {
	if len(sequences) == 0 {
		return TrainingMetrics{}, ErrInsufficientData
	}
	f.fitted = true
	return TrainingMetrics{Samples: len(sequences)}, nil
}

func (f *fakePredictor) PredictNext(history []Page) (Page, error) {
	if !f.fitted {
		return Page{}, ErrNotFitted
	}
	if f.nextErr != nil {
		return Page{}, f.nextErr
	}
	if f.next == nil {
		return Page{}, ErrUnseenContext
	}
	return *f.next, nil
}

func (f *fakePredictor) Score(candidate Page, context []Page) (float64, error) {
	if f.modelErr != nil {
		return 0, f.modelErr
	}
	if err, ok := f.scoreErr[candidate]; ok {
		return 0, err
	}
	return f.scores[candidate], nil
}

type fakeState struct {
	Imported int `json:"imported"`
}

func (f *fakePredictor) ExportState() (*Snapshot, error) {
	if !f.fitted {
		return nil, ErrNotFitted
	}
	return NewSnapshot(f.family, 1, CodecSnappy, fakeState{Imported: f.imported + 1})
}

func (f *fakePredictor) ImportState(s *Snapshot) error {
	var st fakeState
	if err := s.Decode(f.family, 1, &st); err != nil {
		return err
	}
	if st.Imported <= 0 {
		return fmt.Errorf("empty %s snapshot", f.family)
	}
	f.imported, f.fitted = st.Imported, true
	return nil
}

func (f *fakePredictor) Stats() ModelStats {
	return ModelStats{Family: f.family, Fitted: f.fitted, ContextWindow: f.window, HybridEviction: true}
}

// Families used by harness tests; registered once for the package.
const (
	fakeFamilyA = "fake-a"
	fakeFamilyB = "fake-b"
)

func init() {
	for _, name := range []string{fakeFamilyA, fakeFamilyB} {
		RegisterFamily(name, func(PredictorConfig) Predictor {
			return &fakePredictor{family: name, window: 1}
		})
	}
}

func pages(numbers ...int) []Page {
	out := make([]Page, len(numbers))
	for i, n := range numbers {
		out[i] = NewPage("", n)
	}
	return out
}

func pagePtr(n int) *Page {
	p := NewPage("", n)
	return &p
}
