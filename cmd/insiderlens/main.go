// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 3:05:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/app"
	"github.com/ternarybob/insiderlens/internal/common"
)

var (
	// Command-line flags
	configFiles []string // later files override earlier ones
	logLevel    string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "insiderlens",
	Short:         "Insider-signal stock analysis worker",
	Long:          `InsiderLens queues tickers, scores them against the insider trading rubric and notifies subscribers of high scores.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	rootCmd.AddCommand(
		workerCmd,
		enqueueCmd,
		cancelCmd,
		statsCmd,
		jobsCmd,
		showCmd,
		rubricCmd,
		keysCmd,
		subscribeCmd,
		subscribersCmd,
		notificationsCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence: config files, env, flags, logger
func loadConfig() error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("insiderlens.toml"); err == nil {
			configFiles = append(configFiles, "insiderlens.toml")
		} else if _, err := os.Stat("deployments/local/insiderlens.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/insiderlens.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}

	logger = common.InitLogger(config)
	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Configuration loaded")
	return nil
}

// openStorage opens the database for the administrative commands
func openStorage() (*app.App, error) {
	application, err := app.OpenStorage(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return application, nil
}
