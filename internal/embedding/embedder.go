// Package embedding implements the dense retriever: a sentence encoder
// producing unit-normalized vectors, an HNSW approximate nearest-neighbor
// index over the paper corpus, and an LRU cache fronting the encoder.
package embedding

import (
	"context"
	"math"
)

// Embedder encodes text into a fixed-dimension embedding vector. Concrete
// variants talk to an HTTP sentence-encoder service; a static fallback
// exists for tests and offline runs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// normalizeL2 scales v in place to unit L2 norm. A zero vector is left
// unchanged (dot product against it is zero regardless of scaling).
func normalizeL2(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
