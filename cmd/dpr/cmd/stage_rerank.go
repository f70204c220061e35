package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
	"github.com/Aman-CERP/dpr-pipeline/internal/rerank"
)

func runRerankStage(c *cobra.Command, sc *stageContext) error {
	var fused []model.FusedList
	if err := archive.ReadJSON(archive.FusedPath(sc.root), &fused); err != nil {
		return fmt.Errorf("read fused lists: %w", err)
	}

	var papers []model.Paper
	if err := archive.ReadJSON(archive.PapersPath(sc.root), &papers); err != nil {
		return fmt.Errorf("read papers: %w", err)
	}
	papersByID := make(map[string]model.Paper, len(papers))
	for _, p := range papers {
		papersByID[p.ID] = p
	}

	var reranker rerank.Reranker = rerank.NoOpReranker{}
	if endpoint := os.Getenv("RERANK_BASE_URL"); endpoint != "" && os.Getenv("RERANK_API_KEY") != "" {
		httpReranker := rerank.NewHTTPReranker(endpoint, os.Getenv("RERANK_API_KEY"), os.Getenv("RERANK_MODEL"))
		if httpReranker.Available(c.Context()) {
			reranker = httpReranker
		} else {
			slog.Warn("rerank service unavailable, falling back to no-op reranker", "endpoint", endpoint)
		}
	}

	reranked := make([]model.ReRanked, 0, len(fused))
	for _, fl := range fused {
		r, err := rerank.Run(c.Context(), reranker, fl, papersByID)
		if err != nil {
			slog.Warn("rerank failed for query, skipping", "paper_tag", fl.PaperTag, "query_text", fl.QueryText, "error", err)
			continue
		}
		reranked = append(reranked, r)
	}

	runDateToken := sc.runDateToken
	if err := archive.WriteJSON(archive.RerankedPath(sc.root, runDateToken), reranked); err != nil {
		return fmt.Errorf("write reranked lists: %w", err)
	}

	slog.Info("rerank stage complete", "lists", len(reranked))
	return nil
}
