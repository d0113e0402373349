package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pagesim/sim/fleet"
	"github.com/inference-sim/pagesim/sim/predict"
	"github.com/inference-sim/pagesim/sim/workload"
)

func TestSplitTraining(t *testing.T) {
	tests := []struct {
		n        int
		fraction float64
		want     int
	}{
		{0, 0.8, 0},
		{1, 0.8, 1},
		{2, 0.8, 1},
		{5, 0.8, 4},
		{5, 1, 4},
		{5, 0.1, 1},
		{10, 0.5, 5},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, splitTraining(tc.n, tc.fraction), "n=%d fraction=%g", tc.n, tc.fraction)
	}
}

func TestResolveWorkloadSpec(t *testing.T) {
	spec, err := resolveWorkloadSpec("", workload.TypeLocality, 9)
	require.NoError(t, err)
	assert.Equal(t, workload.TypeLocality, spec.Type)
	assert.Equal(t, int64(9), spec.Seed)

	_, err = resolveWorkloadSpec("", "zipf", 9)
	assert.ErrorContains(t, err, "unknown preset")
}

func TestGenerateSequenceFile_FromPreset(t *testing.T) {
	spec, err := resolveWorkloadSpec("", workload.TypeLoop, 42)
	require.NoError(t, err)
	file, err := generateSequenceFile(spec)

	require.NoError(t, err)
	assert.Equal(t, workload.TypeLoop, file.WorkloadType)
	assert.Equal(t, int64(42), file.Seed)
	assert.Len(t, file.Sequences, spec.NumSequences)
}

func TestRunExperiment_Loop(t *testing.T) {
	// GIVEN a 5-page cycle, which defeats LRU with 4 frames
	file := &workload.SequenceFile{WorkloadType: workload.TypeLoop, Seed: 42}
	for range 5 {
		file.Sequences = append(file.Sequences, loopSequence(5, 100))
	}
	f, err := fleet.New(fleet.DefaultConfig())
	require.NoError(t, err)

	// WHEN training on the leading sequences and comparing on the last
	report, err := runExperiment(context.Background(), f, file, 0.8)

	// THEN every family was trained and the scoring families beat LRU
	require.NoError(t, err)
	assert.Equal(t, 4, report.TrainSequences)
	assert.Equal(t, 100, report.TestLength)
	assert.Equal(t, 4, report.FrameCount)
	require.Len(t, report.Results, 3)
	for _, r := range report.Results {
		assert.True(t, r.Trained, r.Family)
		if r.Family == predict.FamilySequence {
			assert.Zero(t, r.Stats.PageHits)
		} else {
			assert.Positive(t, r.Stats.PageHits, r.Family)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, workload.TypeLoop, decoded["workloadType"])
}

func TestRunExperiment_Rejects(t *testing.T) {
	f, err := fleet.New(fleet.DefaultConfig())
	require.NoError(t, err)

	_, err = runExperiment(context.Background(), f, &workload.SequenceFile{}, 0.8)
	assert.Error(t, err)

	_, err = runExperiment(context.Background(), f, &workload.SequenceFile{}, 0)
	assert.ErrorContains(t, err, "train fraction")
}
