package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	"github.com/Aman-CERP/dpr-pipeline/internal/bm25"
	"github.com/Aman-CERP/dpr-pipeline/internal/embedding"
	"github.com/Aman-CERP/dpr-pipeline/internal/fetch"
	"github.com/Aman-CERP/dpr-pipeline/internal/fusion"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

func runRetrieveStage(c *cobra.Command, sc *stageContext) error {
	var papers []model.Paper
	if err := archive.ReadJSON(archive.PapersPath(sc.root), &papers); err != nil {
		return fmt.Errorf("read papers: %w", err)
	}

	var plan model.QueryPlan
	if err := archive.ReadJSON(archive.PlanPath(sc.root), &plan); err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	retrieval := sc.cfg.Retrieval

	var embedder embedding.Embedder = embedding.NewStaticEmbedder(64)

	var supabaseClient *fetch.SupabaseClient
	if sc.cfg.Supabase.Enabled {
		supabaseClient = fetch.NewSupabaseClient(sc.cfg.Supabase.URL, sc.cfg.Supabase.AnonKey,
			sc.cfg.Supabase.PapersTable, sc.cfg.Supabase.Schema,
			sc.cfg.Supabase.VectorRPC, sc.cfg.Supabase.BM25RPC, embedder.Dim())
	}

	var bm25Mirror bm25.MirrorSearcher
	if supabaseClient != nil && sc.cfg.Supabase.UseBM25RPC {
		bm25Mirror = supabaseClient
	}
	bm25Retriever := bm25.New(papers, bm25.Params{K1: retrieval.BM25K1, B: retrieval.BM25B},
		retrieval.BM25TopK, sc.cfg.Subscriptions.KeywordRecallMode, retrieval.FilterConcurrency, bm25Mirror)
	sparseLists := bm25Retriever.RetrieveAll(c.Context(), plan.BM25Queries)

	var vectorMirror embedding.MirrorSearcher
	if supabaseClient != nil && sc.cfg.Supabase.UseVectorRPC {
		vectorMirror = supabaseClient
	}
	retriever := embedding.New(embedding.NewCachedEmbedder(embedder, 4096), vectorMirror,
		retrieval.EmbeddingTopK, stageFlags.embeddingBatchSize, 4)

	ids, vectors, err := retriever.EncodeCorpus(c.Context(), papers)
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	idx := embedding.NewIndex(ids, vectors)

	denseLists, err := retriever.RetrieveAll(c.Context(), idx, plan.EmbedQueries)
	if err != nil {
		return fmt.Errorf("retrieve dense lists: %w", err)
	}

	fuser := fusion.New(retrieval.RRFConstant, retrieval.FusionTopM)
	fused := fuser.FuseAll(sparseLists, denseLists)

	if err := archive.WriteJSON(archive.FusedPath(sc.root), fused); err != nil {
		return fmt.Errorf("write fused lists: %w", err)
	}

	slog.Info("retrieve stage complete", "fused_lists", len(fused))
	return nil
}
