// Package fusion merges a sparse (BM25) and a dense (embedding) ranked
// list per query into a single ranked list via Reciprocal Rank Fusion,
// the same rank-aggregation approach the teacher's pkg/searcher uses to
// combine lexical and semantic search.
package fusion

import (
	"sort"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// DefaultConstant is RRF's smoothing constant k.
const DefaultConstant = 60

// DefaultTopM is the number of fused entries kept per query.
const DefaultTopM = 100

// Fuser combines a sparse and a dense RankedList sharing the same query
// identity into a FusedList.
type Fuser struct {
	k    int
	topM int
}

// New constructs a Fuser. A non-positive k or topM falls back to the
// package defaults.
func New(k, topM int) *Fuser {
	if k <= 0 {
		k = DefaultConstant
	}
	if topM <= 0 {
		topM = DefaultTopM
	}
	return &Fuser{k: k, topM: topM}
}

// Fuse combines sparse and dense, which must share the same query
// identity (the caller is responsible for pairing lists by identity
// before calling Fuse).
func (f *Fuser) Fuse(sparse, dense model.RankedList) model.FusedList {
	acc := make(map[string]*model.FusedEntry)

	addRanks(acc, sparse.Entries, f.k)
	for _, e := range dense.Entries {
		rrf := 1.0 / float64(f.k+e.Rank)
		if existing, ok := acc[e.PaperID]; ok {
			existing.RRFScore += rrf
			existing.InBoth = true
		} else {
			acc[e.PaperID] = &model.FusedEntry{PaperID: e.PaperID, RRFScore: rrf}
		}
	}

	identity := sparse.QueryIdentity
	paperTag := sparse.PaperTag
	queryText := sparse.QueryText
	if identity == (model.QueryIdentity{}) {
		identity = dense.QueryIdentity
		paperTag = dense.PaperTag
		queryText = dense.QueryText
	}

	entries := make([]model.FusedEntry, 0, len(acc))
	for _, e := range acc {
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RRFScore != entries[j].RRFScore {
			return entries[i].RRFScore > entries[j].RRFScore
		}
		return entries[i].PaperID < entries[j].PaperID
	})

	if len(entries) > f.topM {
		entries = entries[:f.topM]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return model.FusedList{
		QueryIdentity: identity,
		PaperTag:      paperTag,
		QueryText:     queryText,
		Entries:       entries,
	}
}

func addRanks(acc map[string]*model.FusedEntry, entries []model.RankEntry, k int) {
	for _, e := range entries {
		rrf := 1.0 / float64(k+e.Rank)
		acc[e.PaperID] = &model.FusedEntry{PaperID: e.PaperID, RRFScore: rrf}
	}
}

// FuseAll pairs sparse and dense lists by query identity and fuses each
// pair. A query present in only one of the two inputs still produces a
// fused list (the other side contributes nothing, per the RRF
// rank_i = infinity convention).
func (f *Fuser) FuseAll(sparseLists, denseLists []model.RankedList) []model.FusedList {
	byIdentity := make(map[model.QueryIdentity]*struct {
		sparse model.RankedList
		dense  model.RankedList
	})

	order := make([]model.QueryIdentity, 0, len(sparseLists))
	for _, l := range sparseLists {
		if _, ok := byIdentity[l.QueryIdentity]; !ok {
			order = append(order, l.QueryIdentity)
		}
		entry := byIdentity[l.QueryIdentity]
		if entry == nil {
			entry = &struct {
				sparse model.RankedList
				dense  model.RankedList
			}{}
			byIdentity[l.QueryIdentity] = entry
		}
		entry.sparse = l
	}
	for _, l := range denseLists {
		entry := byIdentity[l.QueryIdentity]
		if entry == nil {
			order = append(order, l.QueryIdentity)
			entry = &struct {
				sparse model.RankedList
				dense  model.RankedList
			}{}
			byIdentity[l.QueryIdentity] = entry
		}
		entry.dense = l
	}

	out := make([]model.FusedList, 0, len(order))
	for _, id := range order {
		entry := byIdentity[id]
		out = append(out, f.Fuse(entry.sparse, entry.dense))
	}
	return out
}
