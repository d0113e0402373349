package workload

import "sort"

// Built-in scenario presets, one per workload type.
// Each returns a valid WorkloadSpec ready for use with Generate.

// ScenarioSequential scans a 50-page range in order.
func ScenarioSequential(seed int64) *WorkloadSpec {
	return &WorkloadSpec{Version: "1", Seed: seed, Type: TypeSequential,
		NumSequences: 5, SequenceLength: 100, PageRange: 50}
}

// ScenarioRandom draws uniformly from 20 pages.
func ScenarioRandom(seed int64) *WorkloadSpec {
	return &WorkloadSpec{Version: "1", Seed: seed, Type: TypeRandom,
		NumSequences: 5, SequenceLength: 100, PageRange: 20}
}

// ScenarioLocality sends 80% of accesses to a 20% hot region.
func ScenarioLocality(seed int64) *WorkloadSpec {
	return &WorkloadSpec{Version: "1", Seed: seed, Type: TypeLocality,
		NumSequences: 5, SequenceLength: 100, PageRange: 30,
		Params: map[string]float64{"hot_fraction": 0.2, "hot_probability": 0.8}}
}

// ScenarioLoop cycles over 5 pages, one more than the default frame count.
func ScenarioLoop(seed int64) *WorkloadSpec {
	return &WorkloadSpec{Version: "1", Seed: seed, Type: TypeLoop,
		NumSequences: 5, SequenceLength: 100, PageRange: 20,
		Params: map[string]float64{"loop_size": 5}}
}

// ScenarioWorkingSet shifts a 4-page working set every 20 accesses.
func ScenarioWorkingSet(seed int64) *WorkloadSpec {
	return &WorkloadSpec{Version: "1", Seed: seed, Type: TypeWorkingSet,
		NumSequences: 5, SequenceLength: 100, PageRange: 40,
		Params: map[string]float64{"set_size": 4, "phase_length": 20}}
}

var presets = map[string]func(seed int64) *WorkloadSpec{
	TypeSequential: ScenarioSequential,
	TypeRandom:     ScenarioRandom,
	TypeLocality:   ScenarioLocality,
	TypeLoop:       ScenarioLoop,
	TypeWorkingSet: ScenarioWorkingSet,
}

// Preset returns the built-in scenario for a workload type.
func Preset(workloadType string, seed int64) (*WorkloadSpec, bool) {
	fn, ok := presets[workloadType]
	if !ok {
		return nil, false
	}
	return fn(seed), true
}

// PresetNames returns the preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
