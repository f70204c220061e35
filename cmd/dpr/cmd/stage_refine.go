package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	"github.com/Aman-CERP/dpr-pipeline/internal/llm"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// runRefineStage sends reranked candidates at or above the star threshold
// to the LLM for per-requirement scoring and evidence extraction. It is
// the only stage skipped unless --run-enrich is passed, per spec.md's
// cost-gating of the LLM pass.
func runRefineStage(c *cobra.Command, sc *stageContext) error {
	var reranked []model.ReRanked
	if err := archive.ReadJSON(archive.RerankedPath(sc.root, sc.runDateToken), &reranked); err != nil {
		return fmt.Errorf("read reranked lists: %w", err)
	}

	var plan model.QueryPlan
	if err := archive.ReadJSON(archive.PlanPath(sc.root), &plan); err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	var papers []model.Paper
	if err := archive.ReadJSON(archive.PapersPath(sc.root), &papers); err != nil {
		return fmt.Errorf("read papers: %w", err)
	}
	papersByID := make(map[string]model.Paper, len(papers))
	for _, p := range papers {
		papersByID[p.ID] = p
	}

	provider := llm.NewOpenAIClient(os.Getenv("LLM_BASE_URL"), os.Getenv("LLM_API_KEY"), os.Getenv("LLM_MODEL"), llm.MaxTokensClamp)

	retrieval := sc.cfg.Retrieval
	refiner := llm.New(provider, plan.Requirements, llm.Config{
		ThresholdStars: retrieval.RerankThresholdStars,
		BatchSize:      retrieval.FilterBatchSize,
		MaxChars:       retrieval.FilterMaxChars,
		Concurrency:    retrieval.FilterConcurrency,
		DebugDir:       archive.DebugDir(sc.root),
		RunID:          sc.runID,
	}, nil)

	scores, err := refiner.Run(c.Context(), reranked, papersByID)
	if err != nil {
		return fmt.Errorf("run refiner: %w", err)
	}

	if err := archive.WriteJSON(archive.RefinedPath(sc.root, sc.runDateToken), scores); err != nil {
		return fmt.Errorf("write refined scores: %w", err)
	}

	slog.Info("refine stage complete", "scores", len(scores))
	return nil
}
