package rerank

import (
	"context"
	"sort"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// quantiles gives the cumulative fraction of a query's candidates that
// fall into stars 5 down to 1: top 10%, next 20%, next 30%, next 30%,
// bottom 10%.
var quantiles = []float64{0.10, 0.30, 0.60, 0.90, 1.00}

// starForRank maps a zero-based rank among n candidates to a 1-5 star
// rating using the cumulative quantile boundaries, local to that query.
func starForRank(rank, n int) int {
	if n <= 0 {
		return 1
	}
	frac := float64(rank+1) / float64(n)
	stars := []int{5, 4, 3, 2, 1}
	for i, q := range quantiles {
		if frac <= q+1e-9 {
			return stars[i]
		}
	}
	return 1
}

// Run reranks one query's fused candidates: builds (query_text,
// title+abstract) pairs, scores them with r, sorts descending, and
// assigns a star rating local to this query.
func Run(ctx context.Context, r Reranker, fused model.FusedList, papersByID map[string]model.Paper) (model.ReRanked, error) {
	docs := make([]string, len(fused.Entries))
	ids := make([]string, len(fused.Entries))
	for i, e := range fused.Entries {
		ids[i] = e.PaperID
		if p, ok := papersByID[e.PaperID]; ok {
			docs[i] = p.BM25Text()
		}
	}

	scores, err := r.Rerank(ctx, fused.QueryText, docs)
	if err != nil {
		return model.ReRanked{}, err
	}

	entries := make([]model.ReRankedEntry, len(scores))
	for i, s := range scores {
		entries[i] = model.ReRankedEntry{PaperID: ids[s.Index], CrossScore: s.Score}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CrossScore != entries[j].CrossScore {
			return entries[i].CrossScore > entries[j].CrossScore
		}
		return entries[i].PaperID < entries[j].PaperID
	})

	n := len(entries)
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].StarRating = starForRank(i, n)
	}

	return model.ReRanked{
		QueryIdentity: fused.QueryIdentity,
		PaperTag:      fused.PaperTag,
		QueryText:     fused.QueryText,
		Entries:       entries,
	}, nil
}
