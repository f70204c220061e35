// Package cmd wires the dpr CLI: the visible root "dpr" command driving
// PipelineDriver, and a hidden "__stage" subcommand each stage
// subprocess invokes to do its actual work.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dpr-pipeline/internal/logging"
	"github.com/Aman-CERP/dpr-pipeline/internal/pipeline"
	"github.com/Aman-CERP/dpr-pipeline/pkg/version"
)

var runOpts pipeline.RunOptions

// NewRootCmd builds the dpr root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "dpr",
		Short:   "Daily academic-paper recommendation pipeline",
		Version: version.Version,
		RunE: func(c *cobra.Command, args []string) error {
			return runPipeline(c)
		},
	}

	root.Flags().BoolVar(&runOpts.RunEnrich, "run-enrich", false, "Run the LLM refine stage (off by default to avoid unnecessary provider spend)")
	root.Flags().IntVar(&runOpts.FetchDays, "fetch-days", 1, "Fetch window in days (1-60)")
	root.Flags().BoolVar(&runOpts.FetchIgnoreSeen, "fetch-ignore-seen", false, "Ignore the SeenSet, re-admitting previously seen papers")
	root.Flags().StringVar(&runOpts.EmbeddingDevice, "embedding-device", "cpu", "Device for embedding inference (cpu or gpu)")
	root.Flags().IntVar(&runOpts.EmbeddingBatchSize, "embedding-batch-size", 8, "Embedding mini-batch size")
	root.Flags().StringVar(&runOpts.ConfigDir, "config-dir", ".", "Directory containing dpr.yaml")

	root.AddCommand(newStageCmd())

	return root
}

func runPipeline(c *cobra.Command) error {
	cleanup, err := logging.SetupDefault()
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()

	driver, err := pipeline.New()
	if err != nil {
		return err
	}

	token, err := driver.Run(c.Context(), runOpts)
	if err != nil {
		slog.Error("pipeline run failed", "run_date", token, "error", err)
		return err
	}

	slog.Info("pipeline run complete", "run_date", token)
	return nil
}

// Execute runs the dpr root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}
