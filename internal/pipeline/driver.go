// Package pipeline implements PipelineDriver: it computes the shared
// run-date token once, publishes it to every stage subprocess, and runs
// the six stages (plan, fetch, retrieve, rerank, refine, select) as
// separate processes of the host binary so a failure in one stage leaves
// every prior stage's archive intact.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
)

// RunIDEnvVar is the environment variable the driver uses to propagate a
// per-run correlation id to every stage subprocess, for tying together
// log lines (and LLM batch traces) scattered across six processes.
const RunIDEnvVar = "DPR_RUN_ID"

// StageName identifies one subprocess invocation of the driver binary.
type StageName string

const (
	StagePlan     StageName = "plan"
	StageFetch    StageName = "fetch"
	StageRetrieve StageName = "retrieve"
	StageRerank   StageName = "rerank"
	StageRefine   StageName = "refine"
	StageSelect   StageName = "select"
)

// Stages is the fixed execution order for a full run.
var Stages = []StageName{StagePlan, StageFetch, StageRetrieve, StageRerank, StageRefine, StageSelect}

// RunOptions carries the driver CLI's flags through to each stage
// subprocess.
type RunOptions struct {
	FetchDays         int
	FetchIgnoreSeen   bool
	EmbeddingDevice   string
	EmbeddingBatchSize int
	RunEnrich         bool
	ConfigDir         string
}

// Driver self-re-execs the host binary once per stage via "<binary>
// __stage <name>", a hidden subcommand cmd/dpr wires to the in-process
// stage implementations. Re-exec (rather than an in-process function
// call per stage) is what gives a stage's panic, OOM, or hang no blast
// radius beyond its own process: the driver observes only an exit code.
type Driver struct {
	binaryPath string
	execCmd    func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New constructs a Driver bound to the currently running executable.
func New() (*Driver, error) {
	bin, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve driver executable: %w", err)
	}
	return &Driver{
		binaryPath: bin,
		execCmd:    exec.CommandContext,
	}, nil
}

// Run executes the stages in order under a shared DPR_RUN_DATE, skipping
// refine unless opts.RunEnrich is set, and stopping at the first non-zero
// exit. It returns the run-date token and the error
// of the first failing stage, if any.
func (d *Driver) Run(ctx context.Context, opts RunOptions) (string, error) {
	end := time.Now().UTC()
	runDateToken := archive.RunDateToken(end, opts.FetchDays)
	runID := uuid.New().String()

	slog.Info("pipeline run starting", "run_id", runID, "run_date", runDateToken)

	for _, stage := range Stages {
		if stage == StageRefine && !opts.RunEnrich {
			continue
		}
		if err := d.runStage(ctx, stage, runDateToken, runID, opts); err != nil {
			return runDateToken, fmt.Errorf("stage %s failed: %w", stage, err)
		}
	}

	return runDateToken, nil
}

func (d *Driver) runStage(ctx context.Context, stage StageName, runDateToken, runID string, opts RunOptions) error {
	args := []string{"__stage", string(stage)}
	if opts.ConfigDir != "" {
		args = append(args, "--config-dir", opts.ConfigDir)
	}
	if stage == StageFetch {
		args = append(args, "--fetch-days", fmt.Sprintf("%d", opts.FetchDays))
		if opts.FetchIgnoreSeen {
			args = append(args, "--fetch-ignore-seen")
		}
	}
	if stage == StageRetrieve {
		if opts.EmbeddingDevice != "" {
			args = append(args, "--embedding-device", opts.EmbeddingDevice)
		}
		if opts.EmbeddingBatchSize > 0 {
			args = append(args, "--embedding-batch-size", fmt.Sprintf("%d", opts.EmbeddingBatchSize))
		}
	}
	if stage == StageSelect {
		// The selector needs the fetch window to choose standard vs.
		// skims mode; it reads no other fetch-stage flag.
		args = append(args, "--fetch-days", fmt.Sprintf("%d", opts.FetchDays))
	}

	cmd := d.execCmd(ctx, d.binaryPath, args...)
	cmd.Env = append(os.Environ(), archive.RunDateEnvVar+"="+runDateToken, RunIDEnvVar+"="+runID)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
