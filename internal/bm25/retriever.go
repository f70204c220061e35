package bm25

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// MirrorSearcher is satisfied by a Supabase mirror client exposing a
// server-side BM25 RPC. When configured, the retriever delegates scoring
// to it instead of the local in-process index, mirroring the embedding
// package's dense-retrieval mirror delegation.
type MirrorSearcher interface {
	MatchBM25(ctx context.Context, queryText string, matchCount int) ([]model.RankEntry, error)
}

// Retriever runs a per-run BM25 index against the planner's BM25 queries.
type Retriever struct {
	index       *Index
	mirror      MirrorSearcher
	topK        int
	recallMode  model.KeywordRecallMode
	parallelism int
}

// New builds a Retriever over papers, tokenizing the corpus once. mirror
// may be nil, in which case every query is scored against the local index;
// when non-nil, every query is instead delegated to the mirror's BM25 RPC.
func New(papers []model.Paper, params Params, topK int, recallMode model.KeywordRecallMode, parallelism int, mirror MirrorSearcher) *Retriever {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Retriever{
		index:       Build(papers, params),
		mirror:      mirror,
		topK:        topK,
		recallMode:  recallMode,
		parallelism: parallelism,
	}
}

// RetrieveAll runs every query concurrently (bounded by r.parallelism),
// returning one RankedList per query in input order. Local index lookups
// never fail — BM25 scoring has no suspension points and cannot error —
// but a mirror query can; its failure is logged and yields an empty
// RankedList rather than failing the whole retrieval, matching the
// embedding retriever's per-query isolation.
func (r *Retriever) RetrieveAll(ctx context.Context, queries []model.Query) []model.RankedList {
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

			var list model.RankedList
			if r.mirror != nil {
				entries, err := r.mirror.MatchBM25(gctx, q.QueryText, r.topK)
				if err != nil {
					slog.Warn("bm25_mirror_query_failed", slog.String("query_tag", q.PaperTag), slog.String("error", err.Error()))
					list = model.RankedList{QueryIdentity: q.Identity(), PaperTag: q.PaperTag, QueryText: q.QueryText}
				} else {
					list = model.RankedList{QueryIdentity: q.Identity(), PaperTag: q.PaperTag, QueryText: q.QueryText, Entries: entries}
				}
			} else {
				list = r.index.Retrieve(q, r.topK, r.recallMode)
			}

			mu.Lock()
			results[i] = list
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Warn("bm25_retrieve_all_cancelled", slog.String("error", err.Error()))
	}

	return results
}
