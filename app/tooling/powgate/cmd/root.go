// Package cmd contains the gate client app.
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zephyr/powgate/business/core/credential"
	"github.com/zephyr/powgate/business/core/gate"
	"github.com/zephyr/powgate/business/core/gateclient"
	"github.com/zephyr/powgate/foundation/logger"
	"go.uber.org/zap"
)

var (
	url            string
	credentialPath string
	timeout        time.Duration
	verbose        bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:5000", "Url of the gate.")
	rootCmd.PersistentFlags().StringVarP(&credentialPath, "credential", "c", "zgate/credential.json", "Path to the stored session credential.")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", gateclient.DefaultTimeout, "Timeout for each request to the gate.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write flow logs to stderr.")
}

var rootCmd = &cobra.Command{
	Use:   "powgate",
	Short: "Proof of work gate client",
}

// Execute runs the command selected on the command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// =============================================================================

func newLogger() (*zap.SugaredLogger, error) {
	if !verbose {
		return zap.NewNop().Sugar(), nil
	}
	return logger.New("POWGATE", "stderr")
}

func newStore() (*credential.File, error) {
	return credential.NewFile(credentialPath)
}

func newFlow(log *zap.SugaredLogger, presenter gate.Presenter) (*gate.Flow, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}

	client, err := gateclient.New(gateclient.Config{
		BaseURL: url,
		Timeout: timeout,
		Store:   store,
	})
	if err != nil {
		return nil, err
	}

	flow := gate.NewFlow(gate.Config{
		Log:       log,
		API:       client,
		Store:     store,
		Presenter: presenter,
	})

	return flow, nil
}
