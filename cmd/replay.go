package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/pagesim/sim/workload"
)

var (
	serverURL     string
	replayPath    string
	replayFrames  int
	replayNoTrain bool
)

// replayReport is the JSON document printed by `pagesim replay`.
type replayReport struct {
	Server         string        `json:"server"`
	WorkloadType   string        `json:"workloadType"`
	TrainSequences int           `json:"trainSequences"`
	Summary        ReplaySummary `json:"summary"`
}

// replayCmd streams a sequence file through a running server
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Train a running pagesim server on a sequence file and replay its last sequence",
	Run: func(cmd *cobra.Command, args []string) {
		if replayPath == "" {
			logrus.Fatalf("--sequences is required")
		}
		file, err := workload.LoadSequenceFile(replayPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		report, err := replay(cmd.Context(), NewClient(serverURL), file, replayFrames, !replayNoTrain)
		if err != nil {
			logrus.Fatalf("Replay failed: %v", err)
		}
		report.Server = serverURL
		if err := writeReport(os.Stdout, report); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// replay resets the server, optionally trains it on every sequence but the
// last, then sends the last sequence one access at a time.
func replay(ctx context.Context, c *Client, file *workload.SequenceFile, frameCount int, train bool) (*replayReport, error) {
	if len(file.Sequences) == 0 {
		return nil, fmt.Errorf("sequence file has no sequences")
	}
	if err := c.Reset(ctx, frameCount); err != nil {
		return nil, fmt.Errorf("resetting server: %w", err)
	}
	report := &replayReport{WorkloadType: file.WorkloadType}
	test := file.Sequences[len(file.Sequences)-1]
	if train {
		k := splitTraining(len(file.Sequences), 1)
		res, err := c.TrainAll(ctx, file.Sequences[:k], file.WorkloadType, true)
		if err != nil {
			return nil, fmt.Errorf("training server: %w", err)
		}
		report.TrainSequences = k
		logrus.Infof("Server trained %d families on %d sequences", len(res.Results), k)
	}

	rec := &Recorder{}
	for i, page := range test {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec.Record(c.Access(ctx, i, page))
	}
	report.Summary = rec.Summary()
	return report, nil
}

func init() {
	replayCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of a running pagesim server")
	replayCmd.Flags().StringVar(&replayPath, "sequences", "", "Path to YAML sequence file")
	replayCmd.Flags().IntVar(&replayFrames, "frames", 0, "Frame count to reset the server to (default server's configured)")
	replayCmd.Flags().BoolVar(&replayNoTrain, "no-train", false, "Replay against untrained models")

	rootCmd.AddCommand(replayCmd)
}
