package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	"github.com/Aman-CERP/dpr-pipeline/internal/planner"
)

func runPlanStage(sc *stageContext) error {
	plan := planner.Plan(sc.cfg.Subscriptions.IntentProfiles, sc.cfg.Subscriptions.KeywordRecallMode)

	if err := archive.WriteJSON(archive.PlanPath(sc.root), plan); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}

	slog.Info("plan stage complete",
		"bm25_queries", len(plan.BM25Queries),
		"embed_queries", len(plan.EmbedQueries),
		"requirements", len(plan.Requirements),
		"empty", plan.IsEmpty(),
	)
	return nil
}
