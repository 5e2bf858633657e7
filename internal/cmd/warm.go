package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weathertiles/core/internal/worker"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Pre-populate the cache hierarchy for the configured cache-warming layers",
	RunE:  runWarm,
}

func init() {
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx := context.Background()
	e, err := buildEngine(ctx, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	progress := worker.NewProgress(0, true)
	start := time.Now()
	stats := e.WarmCache(ctx)
	progress.Update(stats.Submitted, stats.Submitted, stats.Failed)

	logger.Info("cache warming complete",
		"submitted", stats.Submitted,
		"failed", stats.Failed,
		"elapsed", time.Since(start))
	return nil
}
