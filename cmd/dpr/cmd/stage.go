package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	"github.com/Aman-CERP/dpr-pipeline/internal/config"
	"github.com/Aman-CERP/dpr-pipeline/internal/pipeline"
)

var stageFlags struct {
	configDir          string
	fetchDays          int
	fetchIgnoreSeen    bool
	embeddingDevice    string
	embeddingBatchSize int
}

// newStageCmd builds the hidden "__stage" dispatcher PipelineDriver
// invokes once per stage subprocess. It is not meant for direct
// interactive use; cobra.Command.Hidden keeps it out of --help.
func newStageCmd() *cobra.Command {
	c := &cobra.Command{
		Use:    "__stage <name>",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runStage(c, args[0])
		},
	}

	c.Flags().StringVar(&stageFlags.configDir, "config-dir", ".", "")
	c.Flags().IntVar(&stageFlags.fetchDays, "fetch-days", 1, "")
	c.Flags().BoolVar(&stageFlags.fetchIgnoreSeen, "fetch-ignore-seen", false, "")
	c.Flags().StringVar(&stageFlags.embeddingDevice, "embedding-device", "cpu", "")
	c.Flags().IntVar(&stageFlags.embeddingBatchSize, "embedding-batch-size", 8, "")

	return c
}

type stageContext struct {
	cfg          *config.Config
	runDateToken string
	runID        string
	root         string
}

func loadStageContext() (*stageContext, error) {
	runDateToken := os.Getenv(archive.RunDateEnvVar)
	if runDateToken == "" {
		return nil, fmt.Errorf("%s is not set; stages must be invoked by the driver", archive.RunDateEnvVar)
	}

	cfg, err := config.Load(stageFlags.configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &stageContext{
		cfg:          cfg,
		runDateToken: runDateToken,
		runID:        os.Getenv(pipeline.RunIDEnvVar),
		root:         archive.Root(stageFlags.configDir, runDateToken),
	}, nil
}

func runStage(c *cobra.Command, name string) error {
	sc, err := loadStageContext()
	if err != nil {
		return err
	}

	switch name {
	case "plan":
		return runPlanStage(sc)
	case "fetch":
		return runFetchStage(c, sc)
	case "retrieve":
		return runRetrieveStage(c, sc)
	case "rerank":
		return runRerankStage(c, sc)
	case "refine":
		return runRefineStage(c, sc)
	case "select":
		return runSelectStage(sc)
	default:
		return fmt.Errorf("unknown stage %q", name)
	}
}
