package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/insiderlens/internal/app"
	"github.com/ternarybob/insiderlens/internal/common"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the analysis worker until interrupted",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	common.LoadVersionFromFile()
	common.PrintBanner(config, logger)

	logDir, err := common.LogDir(config)
	if err == nil {
		common.InstallCrashHandler(logDir)
	}

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}

	logger.Info().
		Str("version", common.GetVersion()).
		Str("storage_path", config.Storage.Badger.Path).
		Msg("Worker ready - Press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received, shutting down")
	return nil
}
