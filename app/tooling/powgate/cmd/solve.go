package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zephyr/powgate/foundation/pow"
)

var solveCmd = &cobra.Command{
	Use:   "solve <challenge> <difficulty>",
	Short: "Solve a puzzle locally without talking to the gate.",
	Args:  cobra.ExactArgs(2),
	Run:   solveRun,
}

func init() {
	rootCmd.AddCommand(solveCmd)
}

func solveRun(cmd *cobra.Command, args []string) {
	difficulty, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatalf("difficulty %q: %s", args[1], err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	con := newConsole(cmd.OutOrStdout())

	progress := make(chan pow.Progress, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			con.Progress(p)
		}
	}()

	sol, err := pow.NewSolver(pow.SolverConfig{}).Solve(ctx, args[0], difficulty, progress)
	<-done
	if err != nil {
		log.Fatal(err)
	}

	sol.Challenge = args[0]
	con.Solved(sol)
	fmt.Println("Hash:", sol.Hash)
}
