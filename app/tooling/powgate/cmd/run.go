package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	difficulty int
	useTUI     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pass the gate, solving a challenge when there is no valid session.",
	Run:   runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVarP(&difficulty, "difficulty", "d", 5, "Difficulty to request.")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "Pick the difficulty interactively.")
}

func runRun(cmd *cobra.Command, args []string) {
	log.SetFlags(0)

	if code := runFlow(cmd); code != 0 {
		os.Exit(code)
	}
}

// runFlow passes the gate and returns the process exit code. Exiting is left
// to the caller so the logger is synced and the signal context released.
func runFlow(cmd *cobra.Command) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	zlog, err := newLogger()
	if err != nil {
		log.Print(err)
		return 1
	}
	defer zlog.Sync()

	if useTUI {
		if err := runTUI(ctx, zlog); err != nil {
			log.Print(err)
			return 1
		}
		return 0
	}

	con := newConsole(cmd.OutOrStdout())

	flow, err := newFlow(zlog, con)
	if err != nil {
		log.Print(err)
		return 1
	}

	granted, err := flow.Start(ctx)
	if err != nil {
		log.Print(err)
		return 1
	}
	if granted {
		return 0
	}

	outcome, err := flow.Run(ctx, difficulty)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Access", outcome.Result)
	return 0
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session credential.",
	Run:   logoutRun,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func logoutRun(cmd *cobra.Command, args []string) {
	store, err := newStore()
	if err != nil {
		log.Fatal(err)
	}

	if err := store.Clear(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Credential removed:", credentialPath)
}
