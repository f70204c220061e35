package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPReranker_Rerank_SendsAuthHeaderAndParsesResults(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cross-encoder-v1", req.Model)

		_ = json.NewEncoder(w).Encode(rerankResponse{Results: []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		}{{Index: 1, Score: 0.9}, {Index: 0, Score: 0.2}}})
	}))
	defer srv.Close()

	c := NewHTTPReranker(srv.URL, "secret-key", "cross-encoder-v1")
	results, err := c.Rerank(context.Background(), "graph neural networks", []string{"doc a", "doc b"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 0.9, results[0].Score)
}

func TestHTTPReranker_Rerank_NoDocumentsReturnsNil(t *testing.T) {
	c := NewHTTPReranker("http://unused.invalid", "", "m")
	results, err := c.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestHTTPReranker_Rerank_NonOKStatusReturnsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPReranker(srv.URL, "", "m")
	_, err := c.Rerank(context.Background(), "q", []string{"doc"})
	assert.Error(t, err)
}

func TestHTTPReranker_Available_TrueOnHealthyEndpoint(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPReranker(srv.URL, "secret-key", "m")
	assert.True(t, c.Available(context.Background()))
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestHTTPReranker_Available_FalseWhenUnreachable(t *testing.T) {
	c := NewHTTPReranker("http://127.0.0.1:1", "", "m")
	assert.False(t, c.Available(context.Background()))
}
