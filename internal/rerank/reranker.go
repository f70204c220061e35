// Package rerank implements the cross-encoder reranking stage: score
// fused candidates jointly with their query, then bucket them into a
// per-query star rating.
package rerank

import (
	"context"
)

// Result is one document's cross-encoder score, keyed by its original
// position in the documents slice passed to Rerank.
type Result struct {
	Index int
	Score float64
}

// Reranker scores (query, document) pairs with a cross-encoder model.
type Reranker interface {
	// Rerank scores documents against query and returns them in the same
	// order as the input, unsorted — callers are responsible for sorting
	// and star-bucketing via Bucket.
	Rerank(ctx context.Context, query string, documents []string) ([]Result, error)

	// Available reports whether the reranker service can be reached.
	Available(ctx context.Context) bool
}

// NoOpReranker assigns decreasing scores in input order. Used when no
// rerank service is configured, so the pipeline still produces a
// deterministic, fully-ordered star rating rather than failing the run.
type NoOpReranker struct{}

func (NoOpReranker) Rerank(_ context.Context, _ string, documents []string) ([]Result, error) {
	results := make([]Result, len(documents))
	for i := range documents {
		results[i] = Result{Index: i, Score: 1.0 - float64(i)*0.0001}
	}
	return results, nil
}

func (NoOpReranker) Available(_ context.Context) bool { return true }

var _ Reranker = NoOpReranker{}
