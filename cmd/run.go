package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/pagesim/sim"
	"github.com/inference-sim/pagesim/sim/fleet"
	"github.com/inference-sim/pagesim/sim/workload"
)

var (
	workloadPath  string   // YAML workload spec
	sequencePath  string   // YAML sequence file from `pagesim generate`
	presetName    string   // Built-in scenario
	seed          int64    // Workload seed
	runFrames     int      // Frame count
	trainFraction float64  // Share of sequences used for training
	runModels     []string // Families to compare
)

// runReport is the JSON document printed by `pagesim run`.
type runReport struct {
	WorkloadType   string                 `json:"workloadType"`
	Seed           int64                  `json:"seed"`
	FrameCount     int                    `json:"frameCount"`
	TrainSequences int                    `json:"trainSequences"`
	TestLength     int                    `json:"testLength"`
	Training       fleet.TrainAllResult   `json:"training"`
	Results        []sim.ComparisonResult `json:"results"`
}

// runCmd trains every family on generated sequences and compares them
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Train every model family on a workload and compare them against LRU",
	Run: func(cmd *cobra.Command, args []string) {
		file, err := loadRunSequences()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		cfg := fleet.DefaultConfig()
		cfg.Families = runModels
		if runFrames > 0 {
			cfg.FrameCount = runFrames
		}
		f, err := fleet.New(cfg)
		if err != nil {
			logrus.Fatalf("Failed to build fleet: %v", err)
		}
		report, err := runExperiment(cmd.Context(), f, file, trainFraction)
		if err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		if err := writeReport(os.Stdout, report); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// loadRunSequences resolves --sequences, --workload or --preset, in that order.
func loadRunSequences() (*workload.SequenceFile, error) {
	if sequencePath != "" {
		return workload.LoadSequenceFile(sequencePath)
	}
	spec, err := resolveWorkloadSpec(workloadPath, presetName, seed)
	if err != nil {
		return nil, err
	}
	return generateSequenceFile(spec)
}

// resolveWorkloadSpec loads path when set, otherwise the named preset.
func resolveWorkloadSpec(path, preset string, seed int64) (*workload.WorkloadSpec, error) {
	if path != "" {
		return workload.LoadWorkloadSpec(path)
	}
	spec, ok := workload.Preset(preset, seed)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q; valid: %v", preset, workload.PresetNames())
	}
	return spec, nil
}

func generateSequenceFile(spec *workload.WorkloadSpec) (*workload.SequenceFile, error) {
	seqs, err := workload.Generate(spec)
	if err != nil {
		return nil, err
	}
	return &workload.SequenceFile{WorkloadType: spec.Type, Seed: spec.Seed, Sequences: seqs}, nil
}

// splitTraining returns how many leading sequences to train on. The last
// sequence is always held out for the comparison unless it is the only one.
func splitTraining(n int, fraction float64) int {
	if n <= 1 {
		return n
	}
	k := int(math.Floor(float64(n) * fraction))
	return max(1, min(k, n-1))
}

// runExperiment trains f on the leading sequences of file and compares every
// family on the last sequence.
func runExperiment(ctx context.Context, f *fleet.Fleet, file *workload.SequenceFile, fraction float64) (*runReport, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("train fraction must be in (0, 1], got %g", fraction)
	}
	if len(file.Sequences) == 0 {
		return nil, fmt.Errorf("workload produced no sequences")
	}
	k := splitTraining(len(file.Sequences), fraction)
	test := file.Sequences[len(file.Sequences)-1]

	training, err := f.TrainAll(file.Sequences[:k], file.WorkloadType, true)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	logrus.Infof("Trained %d families on %d sequences (%s)", len(training.Results), k, file.WorkloadType)

	results, err := f.Compare(ctx, test, 0)
	if err != nil {
		return nil, fmt.Errorf("comparing: %w", err)
	}
	return &runReport{
		WorkloadType:   file.WorkloadType,
		Seed:           file.Seed,
		FrameCount:     f.DefaultFrameCount(),
		TrainSequences: k,
		TestLength:     len(test),
		Training:       training,
		Results:        results,
	}, nil
}

func writeReport(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&workloadPath, "workload", "", "Path to YAML workload spec")
	runCmd.Flags().StringVar(&sequencePath, "sequences", "", "Path to YAML sequence file (overrides --workload)")
	runCmd.Flags().StringVar(&presetName, "preset", workload.TypeLoop, "Built-in scenario when no file is given")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the built-in scenario")
	runCmd.Flags().IntVar(&runFrames, "frames", sim.DefaultFrameCount, "Physical frame count")
	runCmd.Flags().Float64Var(&trainFraction, "train-fraction", 0.8, "Share of sequences used for training")
	runCmd.Flags().StringSliceVar(&runModels, "models", nil, "Model families to compare (default all registered)")

	rootCmd.AddCommand(runCmd)
}
