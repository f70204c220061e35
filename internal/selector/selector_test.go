package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

func defaultConfig() Config {
	return Config{SelectN: 10, TagCapRatio: 0.4, SkimsWindowThreshold: 11, ThresholdStars: 4}
}

func TestMode_StandardBelowThreshold(t *testing.T) {
	assert.Equal(t, model.SelectionModeStandard, Mode(defaultConfig(), 7))
}

func TestMode_SkimsAtOrAboveThreshold(t *testing.T) {
	assert.Equal(t, model.SelectionModeSkims, Mode(defaultConfig(), 11))
	assert.Equal(t, model.SelectionModeSkims, Mode(defaultConfig(), 30))
}

func papersN(n int) map[string]model.Paper {
	out := make(map[string]model.Paper, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		out[id] = model.Paper{ID: id, Title: id}
	}
	return out
}

// TestSelect_PerTagCap models spec's scenario 6 literally: tag A has 20
// papers scored 9.9..7.0 (step ~0.153), tag B has 5 papers scored
// 9.8..9.4 (step 0.1). Cap = ceil(10*0.4) = 4. The first pass takes 4 from
// each tag (8 total); with 2 slots left to reach N=10, the backfill draws
// from the deferred pool in score order, ignoring the cap. B's 5th paper
// (9.4) outscores A's 5th (9.9-4*0.153≈9.29), so B gets one more; the
// final slot then goes to A's next-highest deferred paper.
func TestSelect_PerTagCap(t *testing.T) {
	cfg := Config{SelectN: 10, TagCapRatio: 0.4, SkimsWindowThreshold: 11, ThresholdStars: 4}

	var scores []model.LLMScore
	tagA := model.ReRanked{PaperTag: "keyword:A"}
	for i := 0; i < 20; i++ {
		id := "a" + string(rune('0'+i/10)) + string(rune('0'+i%10))
		scores = append(scores, model.LLMScore{PaperID: id, Score: 9.9 - float64(i)*(2.9/19)})
		tagA.Entries = append(tagA.Entries, model.ReRankedEntry{PaperID: id, StarRating: 5})
	}
	tagB := model.ReRanked{PaperTag: "keyword:B"}
	for i := 0; i < 5; i++ {
		id := "b" + string(rune('0'+i))
		scores = append(scores, model.LLMScore{PaperID: id, Score: 9.8 - float64(i)*0.1})
		tagB.Entries = append(tagB.Entries, model.ReRankedEntry{PaperID: id, StarRating: 5})
	}

	papers := make(map[string]model.Paper, 25)
	for _, s := range scores {
		papers[s.PaperID] = model.Paper{ID: s.PaperID, Title: s.PaperID}
	}

	sel := Select(cfg, model.SelectionModeStandard, scores, []model.ReRanked{tagA, tagB}, papers, nil)

	require.Len(t, sel.Papers, 10)

	tagCounts := make(map[string]int)
	for _, p := range sel.Papers {
		for _, tag := range p.LLMTags {
			tagCounts[tag]++
		}
	}
	assert.Equal(t, 5, tagCounts["keyword:A"])
	assert.Equal(t, 5, tagCounts["keyword:B"])
}

func TestSelect_SkimsModeRelaxesCapAndExpandsN(t *testing.T) {
	cfg := defaultConfig()

	var scores []model.LLMScore
	reranked := model.ReRanked{PaperTag: "keyword:SR"}
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		scores = append(scores, model.LLMScore{PaperID: id, Score: float64(15 - i)})
		reranked.Entries = append(reranked.Entries, model.ReRankedEntry{PaperID: id, StarRating: 5})
	}

	sel := Select(cfg, model.SelectionModeSkims, scores, []model.ReRanked{reranked}, papersN(26), nil)
	assert.Len(t, sel.Papers, 15)
}

func TestSelect_LLMTagsUnionAcrossQueries(t *testing.T) {
	cfg := defaultConfig()
	scores := []model.LLMScore{{PaperID: "a", Score: 9}}
	reranked := []model.ReRanked{
		{PaperTag: "keyword:SR", Entries: []model.ReRankedEntry{{PaperID: "a", StarRating: 5}}},
		{PaperTag: "query:SR", Entries: []model.ReRankedEntry{{PaperID: "a", StarRating: 4}}},
	}

	sel := Select(cfg, model.SelectionModeStandard, scores, reranked, papersN(1), nil)
	require.Len(t, sel.Papers, 1)
	assert.ElementsMatch(t, []string{"keyword:SR", "query:SR"}, sel.Papers[0].LLMTags)
}

func TestSelect_MatchedRequirementIDPreservedVerbatim(t *testing.T) {
	cfg := defaultConfig()
	scores := []model.LLMScore{{PaperID: "a", Score: 9, MatchedRequirementID: "p1#kw0"}}
	reranked := []model.ReRanked{{PaperTag: "keyword:SR", Entries: []model.ReRankedEntry{{PaperID: "a", StarRating: 5}}}}

	sel := Select(cfg, model.SelectionModeStandard, scores, reranked, papersN(1), nil)
	require.Len(t, sel.Papers, 1)
	assert.Equal(t, "p1#kw0", sel.Papers[0].MatchedRequirementID)
}

func TestSelect_DerivesMatchedRequirementIDWhenAbsent(t *testing.T) {
	cfg := defaultConfig()
	scores := []model.LLMScore{{PaperID: "a", Score: 9}}
	reranked := []model.ReRanked{{PaperTag: "keyword:SR", Entries: []model.ReRankedEntry{{PaperID: "a", StarRating: 5}}}}
	requirementsByTag := map[string]string{"keyword:SR": "p1#kw0"}

	sel := Select(cfg, model.SelectionModeStandard, scores, reranked, papersN(1), requirementsByTag)
	require.Len(t, sel.Papers, 1)
	assert.Equal(t, "p1#kw0", sel.Papers[0].MatchedRequirementID)
}
