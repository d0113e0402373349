package workload

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/pagesim/sim"
)

// pageGenerator draws one sequence of page numbers in [0, PageRange).
type pageGenerator func(s *WorkloadSpec, rng *rand.Rand) []int

var generators = map[string]pageGenerator{
	TypeSequential: generateSequential,
	TypeRandom:     generateRandom,
	TypeLocality:   generateLocality,
	TypeLoop:       generateLoop,
	TypeWorkingSet: generateWorkingSet,
}

// Generate produces spec.NumSequences access sequences. Sequence i draws from
// its own RNG partition, so it does not depend on how many sequences follow.
func Generate(spec *WorkloadSpec) ([][]sim.Page, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(spec.Seed))
	gen := generators[spec.Type]
	out := make([][]sim.Page, spec.NumSequences)
	for i := range out {
		numbers := gen(spec, rng.ForSubsystem(sim.SubsystemSequence(i)))
		seq := make([]sim.Page, len(numbers))
		for j, n := range numbers {
			seq[j] = sim.NewPage(spec.ProcessID, n)
		}
		out[i] = seq
	}
	return out, nil
}

func generateSequential(s *WorkloadSpec, rng *rand.Rand) []int {
	start := rng.Intn(s.PageRange)
	out := make([]int, s.SequenceLength)
	for j := range out {
		out[j] = (start + j) % s.PageRange
	}
	return out
}

func generateRandom(s *WorkloadSpec, rng *rand.Rand) []int {
	out := make([]int, s.SequenceLength)
	for j := range out {
		out[j] = rng.Intn(s.PageRange)
	}
	return out
}

// generateLocality concentrates accesses on a contiguous hot region.
func generateLocality(s *WorkloadSpec, rng *rand.Rand) []int {
	hot := int(s.param("hot_fraction") * float64(s.PageRange))
	if hot < 1 {
		hot = 1
	}
	base := rng.Intn(s.PageRange - hot + 1)
	hotProb := s.param("hot_probability")
	out := make([]int, s.SequenceLength)
	for j := range out {
		if rng.Float64() < hotProb {
			out[j] = base + rng.Intn(hot)
		} else {
			out[j] = rng.Intn(s.PageRange)
		}
	}
	return out
}

func generateLoop(s *WorkloadSpec, rng *rand.Rand) []int {
	size := int(s.param("loop_size"))
	base := rng.Intn(s.PageRange - size + 1)
	out := make([]int, s.SequenceLength)
	for j := range out {
		out[j] = base + j%size
	}
	return out
}

// generateWorkingSet moves a fixed-size working set every phase_length accesses.
func generateWorkingSet(s *WorkloadSpec, rng *rand.Rand) []int {
	size := int(s.param("set_size"))
	phase := int(s.param("phase_length"))
	out := make([]int, s.SequenceLength)
	base := 0
	for j := range out {
		if j%phase == 0 {
			base = rng.Intn(s.PageRange - size + 1)
		}
		out[j] = base + rng.Intn(size)
	}
	return out
}

// SequenceFile is the on-disk form of generated sequences.
type SequenceFile struct {
	WorkloadType string       `yaml:"workload_type"`
	Seed         int64        `yaml:"seed"`
	Sequences    [][]sim.Page `yaml:"sequences"`
}

// WriteSequenceFile encodes f as YAML.
func WriteSequenceFile(w io.Writer, f *SequenceFile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("writing sequence file: %w", err)
	}
	return enc.Close()
}

// LoadSequenceFile strictly decodes a sequence file written by WriteSequenceFile.
func LoadSequenceFile(path string) (*SequenceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sequence file: %w", err)
	}
	var f SequenceFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing sequence file: %w", err)
	}
	for i := range f.Sequences {
		for j := range f.Sequences[i] {
			if f.Sequences[i][j].ProcessID == "" {
				f.Sequences[i][j].ProcessID = sim.DefaultProcessID
			}
		}
	}
	return &f, nil
}
