package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_ProducesUnitNormVectors(t *testing.T) {
	e := NewStaticEmbedder(32)

	vecs, err := e.Embed(context.Background(), []string{"symbolic regression for physics"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 32)

	var sumSq float64
	for _, x := range vecs[0] {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-6)
}

func TestStaticEmbedder_IsDeterministic(t *testing.T) {
	e := NewStaticEmbedder(16)

	a, err := e.Embed(context.Background(), []string{"equation discovery"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"equation discovery"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestStaticEmbedder_DifferentTextsDifferentVectors(t *testing.T) {
	e := NewStaticEmbedder(64)

	vecs, err := e.Embed(context.Background(), []string{"symbolic regression", "neural architecture search"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestStaticEmbedder_Dim(t *testing.T) {
	e := NewStaticEmbedder(128)
	assert.Equal(t, 128, e.Dim())
}
