// Package bm25 implements a per-run, in-memory BM25 sparse retriever over
// paper title+abstract text, with support for weighted query terms and an
// opt-in boolean AND/NOT hard filter.
package bm25

import (
	"math"
	"sort"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// Params are the BM25 scoring parameters.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams matches spec.md §4.3's fixed defaults.
func DefaultParams() Params {
	return Params{K1: 1.2, B: 0.75}
}

// document is one indexed paper's term frequency table.
type document struct {
	paperID string
	terms   map[string]int
	length  int
}

// Index is a BM25 index built fresh for each pipeline run; it is never
// persisted across runs.
type Index struct {
	params   Params
	docs     []document
	docFreq  map[string]int
	avgLen   float64
}

// Build tokenizes every paper's BM25 text and constructs the index.
func Build(papers []model.Paper, params Params) *Index {
	idx := &Index{
		params:  params,
		docs:    make([]document, 0, len(papers)),
		docFreq: make(map[string]int),
	}

	var totalLen int
	for _, p := range papers {
		terms := Tokenize(p.BM25Text())
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			idx.docFreq[t]++
		}
		idx.docs = append(idx.docs, document{paperID: p.ID, terms: tf, length: len(terms)})
		totalLen += len(terms)
	}

	if len(idx.docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(idx.docs))
	}

	return idx
}

// idf computes the standard BM25 inverse document frequency for a term.
func (idx *Index) idf(term string) float64 {
	n := float64(len(idx.docs))
	df := float64(idx.docFreq[term])
	if df == 0 {
		return 0
	}
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// termScore computes one term's BM25 contribution to a document.
func (idx *Index) termScore(doc document, term string) float64 {
	tf := float64(doc.terms[term])
	if tf == 0 {
		return 0
	}
	k1, b := idx.params.K1, idx.params.B
	norm := 1 - b + b*float64(doc.length)/idx.avgLen
	return idx.idf(term) * (tf * (k1 + 1)) / (tf + k1*norm)
}

// Retrieve scores every document against q and returns the top-K ranked
// list, 1-based dense ranks, ties broken by paper_id ascending.
func (idx *Index) Retrieve(q model.Query, topK int, recallMode model.KeywordRecallMode) model.RankedList {
	var scored []model.RankEntry

	for _, doc := range idx.docs {
		if recallMode == model.RecallModeBooleanMixed && !q.BooleanExpr.IsEmpty() {
			if !passesBooleanFilter(doc, q.BooleanExpr) {
				continue
			}
		}

		score := idx.score(doc, q)
		if score <= 0 {
			continue
		}
		scored = append(scored, model.RankEntry{PaperID: doc.paperID, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].PaperID < scored[j].PaperID
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}

	return model.RankedList{
		QueryIdentity: q.Identity(),
		PaperTag:      q.PaperTag,
		QueryText:     q.QueryText,
		Entries:       scored,
	}
}

// score scores one document against the query, using weighted query terms
// when present and falling back to standard multi-term BM25 over the
// tokenized query_text otherwise.
func (idx *Index) score(doc document, q model.Query) float64 {
	if len(q.QueryTerms) > 0 {
		var total float64
		for _, qt := range q.QueryTerms {
			weight := qt.Weight
			if qt.SoftOr {
				weight = orSoftWeight(qt.Weight)
			}
			for _, term := range Tokenize(qt.Term) {
				total += weight * idx.termScore(doc, term)
			}
		}
		return total
	}

	var total float64
	for _, term := range Tokenize(q.QueryText) {
		total += idx.termScore(doc, term)
	}
	return total
}

// orSoftWeightDefault is the multiplier applied to soft-OR query terms per
// spec.md §4.3. The multiplier is fixed: score applies it to every soft-OR
// term's own weight, and no configuration value overrides it.
const orSoftWeightDefault = 0.3

func orSoftWeight(base float64) float64 {
	return base * orSoftWeightDefault
}

// passesBooleanFilter applies AND/NOT hard filtering: every must_have term
// (stemmed identically to index terms) must be present, and no exclude
// term may be present. Optional terms do not gate membership.
func passesBooleanFilter(doc document, expr model.BooleanExpr) bool {
	for _, must := range expr.MustHave {
		found := false
		for _, t := range Tokenize(must) {
			if doc.terms[t] > 0 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, ex := range expr.Exclude {
		for _, t := range Tokenize(ex) {
			if doc.terms[t] > 0 {
				return false
			}
		}
	}
	return true
}
