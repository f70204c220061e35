package embedding

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// MirrorSearcher is satisfied by a Supabase mirror client exposing the
// match_by_embedding RPC. When configured and its dimension matches the
// local embedder's, the retriever delegates scoring to it instead of
// building a local HNSW index.
type MirrorSearcher interface {
	MatchByEmbedding(ctx context.Context, vector []float32, matchCount int) ([]model.RankEntry, error)
	Dim() int
}

// Retriever runs the dense retrieval stage: encode the corpus once,
// encode each query, and score either locally via HNSW or by delegating
// to a configured mirror RPC.
type Retriever struct {
	embedder    Embedder
	mirror      MirrorSearcher
	topK        int
	batchSize   int
	parallelism int
}

// New constructs a Retriever. mirror may be nil; when non-nil and its
// dimension matches embedder.Dim(), queries delegate to it.
func New(embedder Embedder, mirror MirrorSearcher, topK, batchSize, parallelism int) *Retriever {
	if batchSize <= 0 {
		batchSize = 8
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Retriever{embedder: embedder, mirror: mirror, topK: topK, batchSize: batchSize, parallelism: parallelism}
}

// useMirror reports whether the configured mirror should handle scoring.
func (r *Retriever) useMirror() bool {
	return r.mirror != nil && r.mirror.Dim() == r.embedder.Dim()
}

// EncodeCorpus encodes every paper's embedding text in mini-batches and
// returns paper ids and their unit-normalized vectors in matching order.
func (r *Retriever) EncodeCorpus(ctx context.Context, papers []model.Paper) ([]string, [][]float32, error) {
	ids := make([]string, len(papers))
	texts := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.ID
		texts[i] = p.EmbeddingText()
	}

	vectors, err := r.embedInBatches(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	return ids, vectors, nil
}

func (r *Retriever) embedInBatches(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += r.batchSize {
		end := start + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := r.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// RetrieveAll encodes every query and scores it either against idx (local
// HNSW) or the configured mirror, bounded by r.parallelism. A single
// query's embedding failure is logged and yields an empty RankedList
// rather than failing the whole retrieval, matching the fetcher/BM25
// stages' per-query isolation.
func (r *Retriever) RetrieveAll(ctx context.Context, idx *Index, queries []model.Query) ([]model.RankedList, error) {
	results := make([]model.RankedList, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, r.parallelism)
	var mu sync.Mutex

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			vecs, err := r.embedder.Embed(gctx, []string{q.QueryText})
			if err != nil {
				slog.Warn("embedding_query_failed", slog.String("query_tag", q.PaperTag), slog.String("error", err.Error()))
				mu.Lock()
				results[i] = model.RankedList{QueryIdentity: q.Identity(), PaperTag: q.PaperTag, QueryText: q.QueryText}
				mu.Unlock()
				return nil
			}

			var list model.RankedList
			if r.useMirror() {
				entries, err := r.mirror.MatchByEmbedding(gctx, vecs[0], r.topK)
				if err != nil {
					slog.Warn("embedding_mirror_query_failed", slog.String("query_tag", q.PaperTag), slog.String("error", err.Error()))
					list = model.RankedList{QueryIdentity: q.Identity(), PaperTag: q.PaperTag, QueryText: q.QueryText}
				} else {
					list = model.RankedList{QueryIdentity: q.Identity(), PaperTag: q.PaperTag, QueryText: q.QueryText, Entries: entries}
				}
			} else {
				list = idx.Search(q, vecs[0], r.topK)
			}

			mu.Lock()
			results[i] = list
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
