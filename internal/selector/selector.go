// Package selector implements the final selection stage: partition
// LLM-refined candidates into the daily recommendation set, capped per
// tag to avoid one profile dominating, or into a larger skims shortlist
// for long fetch windows.
package selector

import (
	"math"
	"sort"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// Config tunes selection size and per-tag diversification.
type Config struct {
	SelectN              int
	TagCapRatio          float64
	SkimsWindowThreshold int
	ThresholdStars       int
}

// Mode chooses standard vs. skims selection for a given fetch window.
func Mode(cfg Config, daysWindow int) model.SelectionMode {
	if daysWindow >= cfg.SkimsWindowThreshold {
		return model.SelectionModeSkims
	}
	return model.SelectionModeStandard
}

// tagSurface records, for one paper, every paper_tag whose reranked list
// surfaced it above the star threshold, and the best (tag, stars) pair
// for matched-requirement-id derivation when the refiner left it absent.
type tagSurface struct {
	tags      []string
	bestTag   string
	bestStars int
}

// Select partitions scored papers into the final daily set. reranked
// supplies tag attribution (every query that surfaced a paper above the
// threshold); scores supplies the LLM's per-paper verdict; papersByID
// resolves ids to full Paper records.
func Select(cfg Config, mode model.SelectionMode, scores []model.LLMScore, reranked []model.ReRanked, papersByID map[string]model.Paper, requirementsByTag map[string]string) model.Selection {
	n := cfg.SelectN
	capRatio := cfg.TagCapRatio
	if mode == model.SelectionModeSkims {
		n = n * 3
		capRatio = 1.0
	}
	tagCap := int(math.Ceil(float64(n) * capRatio))
	if tagCap <= 0 {
		tagCap = n
	}

	surfaces := buildTagSurfaces(reranked, cfg.ThresholdStars)

	sorted := make([]model.LLMScore, len(scores))
	copy(sorted, scores)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].PaperID < sorted[j].PaperID
	})

	tagCounts := make(map[string]int)
	var selected []model.SelectedPaper
	var deferred []model.LLMScore

	build := func(s model.LLMScore) (model.SelectedPaper, string, bool) {
		paper, ok := papersByID[s.PaperID]
		if !ok {
			return model.SelectedPaper{}, "", false
		}

		surf := surfaces[s.PaperID]
		requirementID := s.MatchedRequirementID
		if requirementID == "" && surf.bestTag != "" {
			requirementID = requirementsByTag[surf.bestTag]
		}

		return model.SelectedPaper{
			Paper:                paper,
			Score:                s.Score,
			EvidenceEN:           s.EvidenceEN,
			EvidenceCN:           s.EvidenceCN,
			TLDREN:               s.TLDREN,
			TLDRCN:               s.TLDRCN,
			LLMTags:              surf.tags,
			MatchedRequirementID: requirementID,
		}, primaryTag(surf, s.MatchedQueryTag), true
	}

	// First pass: cap-limited selection in score order, so no single tag
	// can dominate while alternatives exist. Papers skipped only because
	// their tag hit the cap are deferred, not dropped.
	for _, s := range sorted {
		if len(selected) >= n {
			break
		}
		sp, tag, ok := build(s)
		if !ok {
			continue
		}
		if tag != "" && tagCounts[tag] >= tagCap {
			deferred = append(deferred, s)
			continue
		}
		selected = append(selected, sp)
		if tag != "" {
			tagCounts[tag]++
		}
	}

	// Second pass: if diversification left the set short of n because no
	// other tag had enough candidates, backfill from the deferred pool in
	// score order, ignoring the cap — reaching the target count takes
	// priority over the cap once every alternative is exhausted.
	for _, s := range deferred {
		if len(selected) >= n {
			break
		}
		sp, _, ok := build(s)
		if !ok {
			continue
		}
		selected = append(selected, sp)
	}

	return model.Selection{Mode: mode, Papers: selected}
}

// primaryTag chooses the tag attributed to a paper for cap accounting:
// the refiner's matched_query_tag when present, else the highest-starred
// surfacing tag (tie-break by tag lexicographic order, already applied in
// buildTagSurfaces).
func primaryTag(surf tagSurface, matchedQueryTag string) string {
	if matchedQueryTag != "" {
		return matchedQueryTag
	}
	return surf.bestTag
}

func buildTagSurfaces(reranked []model.ReRanked, thresholdStars int) map[string]tagSurface {
	out := make(map[string]tagSurface)

	// Process in tag-lexicographic order so the first bestTag assignment
	// at the highest star rating wins ties deterministically.
	sortedLists := make([]model.ReRanked, len(reranked))
	copy(sortedLists, reranked)
	sort.Slice(sortedLists, func(i, j int) bool { return sortedLists[i].PaperTag < sortedLists[j].PaperTag })

	for _, list := range sortedLists {
		for _, e := range list.Entries {
			if e.StarRating < thresholdStars {
				continue
			}
			surf := out[e.PaperID]
			if !containsTag(surf.tags, list.PaperTag) {
				surf.tags = append(surf.tags, list.PaperTag)
			}
			if e.StarRating > surf.bestStars {
				surf.bestStars = e.StarRating
				surf.bestTag = list.PaperTag
			}
			out[e.PaperID] = surf
		}
	}

	return out
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
