package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/zephyr/powgate/business/core/gate"
	"github.com/zephyr/powgate/foundation/pow"
)

var budget time.Duration

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure the local hashrate and print the expected solve times.",
	Run:   benchRun,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().DurationVarP(&budget, "budget", "b", pow.DefaultBenchmarkBudget, "How long to hash for.")
}

func benchRun(cmd *cobra.Command, args []string) {
	rate, err := pow.Benchmark(context.Background(), budget, pow.DefaultBenchmarkBatch)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Hashrate:", pow.FormatRate(rate))
	newConsole(cmd.OutOrStdout()).Estimates(pow.Estimates(rate, gate.DefaultTiers))
}
