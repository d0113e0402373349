package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/pagesim/sim/workload"
)

var (
	genWorkloadPath string
	genType         string
	genSeed         int64
)

// generateCmd writes generated access sequences as YAML
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate page access sequences and write them to stdout as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := resolveWorkloadSpec(genWorkloadPath, genType, genSeed)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		file, err := generateSequenceFile(spec)
		if err != nil {
			logrus.Fatalf("Generation failed: %v", err)
		}
		if err := workload.WriteSequenceFile(os.Stdout, file); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Generated %d %s sequences", len(file.Sequences), file.WorkloadType)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genWorkloadPath, "workload", "", "Path to YAML workload spec (overrides --type)")
	generateCmd.Flags().StringVar(&genType, "type", workload.TypeLoop, "Workload type: sequential, random, locality, loop, working-set")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 42, "Workload seed")

	rootCmd.AddCommand(generateCmd)
}
