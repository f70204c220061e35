package embedding

import (
	"context"
	"hash/fnv"
)

// StaticEmbedder is a deterministic, offline fallback: it hashes each
// token into a fixed-dimension bag-of-hashes vector, then L2-normalizes.
// It exists for tests and for runs without a configured encoder endpoint;
// it captures no real semantics.
type StaticEmbedder struct {
	dim int
}

// NewStaticEmbedder returns a StaticEmbedder producing dim-dimensional vectors.
func NewStaticEmbedder(dim int) *StaticEmbedder {
	return &StaticEmbedder{dim: dim}
}

func (e *StaticEmbedder) Dim() int { return e.dim }

func (e *StaticEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *StaticEmbedder) embedOne(text string) []float32 {
	v := make([]float32, e.dim)
	for _, tok := range tokenizeForHash(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		idx := int(h.Sum32()) % e.dim
		if idx < 0 {
			idx += e.dim
		}
		v[idx]++
	}
	normalizeL2(v)
	return v
}

func tokenizeForHash(text string) []string {
	var tokens []string
	var cur []byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if isAlnum {
			cur = append(cur, c|0x20)
		} else if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = nil
		}
	}
	if len(cur) > 0 {
		tokens = append(tokens, string(cur))
	}
	return tokens
}
