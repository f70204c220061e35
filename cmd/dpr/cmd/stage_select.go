package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
	"github.com/Aman-CERP/dpr-pipeline/internal/selector"
)

// runSelectStage partitions the refiner's scores into the final daily set.
// If the refine stage was skipped (no --run-enrich), there is nothing to
// select from and the stage writes an empty selection rather than failing.
func runSelectStage(sc *stageContext) error {
	var scores []model.LLMScore
	refinedPath := archive.RefinedPath(sc.root, sc.runDateToken)
	if _, err := os.Stat(refinedPath); err == nil {
		if err := archive.ReadJSON(refinedPath, &scores); err != nil {
			return fmt.Errorf("read refined scores: %w", err)
		}
	} else {
		slog.Warn("no refined scores found, selecting nothing", "path", refinedPath)
	}

	var reranked []model.ReRanked
	if err := archive.ReadJSON(archive.RerankedPath(sc.root, sc.runDateToken), &reranked); err != nil {
		return fmt.Errorf("read reranked lists: %w", err)
	}

	var papers []model.Paper
	if err := archive.ReadJSON(archive.PapersPath(sc.root), &papers); err != nil {
		return fmt.Errorf("read papers: %w", err)
	}
	papersByID := make(map[string]model.Paper, len(papers))
	for _, p := range papers {
		papersByID[p.ID] = p
	}

	var plan model.QueryPlan
	if err := archive.ReadJSON(archive.PlanPath(sc.root), &plan); err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	requirementsByTag := make(map[string]string, len(plan.Requirements))
	for _, r := range plan.Requirements {
		requirementsByTag[r.Tag] = r.ID
	}

	retrieval := sc.cfg.Retrieval
	cfg := selector.Config{
		SelectN:              retrieval.SelectN,
		TagCapRatio:          retrieval.SelectTagCapRatio,
		SkimsWindowThreshold: retrieval.SkimsWindowThreshold,
		ThresholdStars:       retrieval.RerankThresholdStars,
	}
	mode := selector.Mode(cfg, stageFlags.fetchDays)

	selection := selector.Select(cfg, mode, scores, reranked, papersByID, requirementsByTag)

	if err := archive.WriteJSON(archive.SelectedPath(sc.root, sc.runDateToken), selection); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}

	slog.Info("select stage complete", "mode", mode, "selected", len(selection.Papers))
	return nil
}
