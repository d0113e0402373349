// Package workload generates synthetic page-access sequences for training
// and comparison runs.
package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Workload types. They double as the accumulator's workload type tag.
const (
	TypeSequential = "sequential"
	TypeRandom     = "random"
	TypeLocality   = "locality"
	TypeLoop       = "loop"
	TypeWorkingSet = "working-set"
)

// WorkloadSpec is the top-level workload configuration.
// Loaded from YAML via LoadWorkloadSpec(path).
type WorkloadSpec struct {
	Version        string             `yaml:"version"`
	Seed           int64              `yaml:"seed"`
	Type           string             `yaml:"type"`
	ProcessID      string             `yaml:"process_id,omitempty"`
	NumSequences   int                `yaml:"num_sequences"`
	SequenceLength int                `yaml:"sequence_length"`
	PageRange      int                `yaml:"page_range"`
	Params         map[string]float64 `yaml:"params,omitempty"`
}

// Valid value registries.
var (
	validTypes = map[string]bool{
		TypeSequential: true, TypeRandom: true, TypeLocality: true, TypeLoop: true, TypeWorkingSet: true,
	}
	// validParams lists the params each type reads, with their defaults.
	validParams = map[string]map[string]float64{
		TypeSequential: {},
		TypeRandom:     {},
		TypeLocality:   {"hot_fraction": 0.2, "hot_probability": 0.8},
		TypeLoop:       {"loop_size": 5},
		TypeWorkingSet: {"set_size": 4, "phase_length": 20},
	}
)

// IsValidType reports whether name is a known workload type.
func IsValidType(name string) bool { return validTypes[name] }

// ValidTypes returns the known workload types, sorted.
func ValidTypes() []string {
	names := make([]string, 0, len(validTypes))
	for name := range validTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadWorkloadSpec reads and parses a YAML workload specification file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadWorkloadSpec(path string) (*WorkloadSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload spec: %w", err)
	}
	return ParseWorkloadSpec(data)
}

// ParseWorkloadSpec strictly decodes a YAML workload spec.
func ParseWorkloadSpec(data []byte) (*WorkloadSpec, error) {
	var spec WorkloadSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing workload spec: %w", err)
	}
	if spec.Version == "" {
		spec.Version = "1"
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid.
func (s *WorkloadSpec) Validate() error {
	if !validTypes[s.Type] {
		return fmt.Errorf("unknown workload type %q; valid: %v", s.Type, ValidTypes())
	}
	if s.NumSequences <= 0 {
		return fmt.Errorf("num_sequences must be positive, got %d", s.NumSequences)
	}
	if s.SequenceLength <= 0 {
		return fmt.Errorf("sequence_length must be positive, got %d", s.SequenceLength)
	}
	if s.PageRange <= 0 {
		return fmt.Errorf("page_range must be positive, got %d", s.PageRange)
	}
	known := validParams[s.Type]
	for name, val := range s.Params {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("params.%s is not used by %s workloads", name, s.Type)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("params.%s must be a finite number, got %f", name, val)
		}
	}
	switch s.Type {
	case TypeLocality:
		if f := s.param("hot_fraction"); f <= 0 || f > 1 {
			return fmt.Errorf("params.hot_fraction must be in (0, 1], got %f", f)
		}
		if p := s.param("hot_probability"); p < 0 || p > 1 {
			return fmt.Errorf("params.hot_probability must be in [0, 1], got %f", p)
		}
	case TypeLoop:
		if err := s.validateSize("loop_size"); err != nil {
			return err
		}
	case TypeWorkingSet:
		if err := s.validateSize("set_size"); err != nil {
			return err
		}
		if n := s.param("phase_length"); n < 1 {
			return fmt.Errorf("params.phase_length must be >= 1, got %f", n)
		}
	}
	return nil
}

// validateSize checks an integral param lies in [1, page_range].
func (s *WorkloadSpec) validateSize(name string) error {
	v := s.param(name)
	if v < 1 || v > float64(s.PageRange) || v != math.Trunc(v) {
		return fmt.Errorf("params.%s must be an integer in [1, %d], got %f", name, s.PageRange, v)
	}
	return nil
}

// param returns the named param or its type default.
func (s *WorkloadSpec) param(name string) float64 {
	if v, ok := s.Params[name]; ok {
		return v
	}
	return validParams[s.Type][name]
}
