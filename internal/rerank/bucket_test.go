package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

func TestStarForRank_QuantileFractions(t *testing.T) {
	// 100 candidates: top 10 -> 5 stars, next 20 -> 4, next 30 -> 3, next 30 -> 2, bottom 10 -> 1.
	assert.Equal(t, 5, starForRank(0, 100))
	assert.Equal(t, 5, starForRank(9, 100))
	assert.Equal(t, 4, starForRank(10, 100))
	assert.Equal(t, 4, starForRank(29, 100))
	assert.Equal(t, 3, starForRank(30, 100))
	assert.Equal(t, 3, starForRank(59, 100))
	assert.Equal(t, 2, starForRank(60, 100))
	assert.Equal(t, 2, starForRank(89, 100))
	assert.Equal(t, 1, starForRank(90, 100))
	assert.Equal(t, 1, starForRank(99, 100))
}

func TestStarForRank_ZeroCandidates(t *testing.T) {
	assert.Equal(t, 1, starForRank(0, 0))
}

func TestRun_SortsDescendingAndAssignsStars(t *testing.T) {
	fused := model.FusedList{
		PaperTag:  "keyword:SR",
		QueryText: "symbolic regression",
		Entries: []model.FusedEntry{
			{PaperID: "p1"},
			{PaperID: "p2"},
			{PaperID: "p3"},
		},
	}
	papers := map[string]model.Paper{
		"p1": {ID: "p1", Title: "a", Abstract: "a"},
		"p2": {ID: "p2", Title: "b", Abstract: "b"},
		"p3": {ID: "p3", Title: "c", Abstract: "c"},
	}

	// Scores out of input order: lowest index gets lowest score.
	r := fakeReranker{scores: []Result{{Index: 0, Score: 0.1}, {Index: 1, Score: 0.9}, {Index: 2, Score: 0.5}}}

	reranked, err := Run(context.Background(), r, fused, papers)
	require.NoError(t, err)
	require.Len(t, reranked.Entries, 3)
	assert.Equal(t, "p2", reranked.Entries[0].PaperID)
	assert.Equal(t, "p3", reranked.Entries[1].PaperID)
	assert.Equal(t, "p1", reranked.Entries[2].PaperID)
	assert.Equal(t, 1, reranked.Entries[0].Rank)
}

type fakeReranker struct {
	scores []Result
}

func (f fakeReranker) Rerank(_ context.Context, _ string, _ []string) ([]Result, error) {
	return f.scores, nil
}

func (f fakeReranker) Available(_ context.Context) bool { return true }

func TestNoOpReranker_PreservesInputOrder(t *testing.T) {
	r := NoOpReranker{}
	results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Greater(t, results[1].Score, results[2].Score)
}
