package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupabaseServer(t *testing.T, handler http.HandlerFunc) (*SupabaseClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewSupabaseClient(srv.URL, "test-anon-key", "arxiv_papers", "public", "match_arxiv_papers", "match_arxiv_papers_bm25", 64)
	return c, srv
}

func TestSupabaseClient_FetchWindow_PaginatesUntilShortPage(t *testing.T) {
	var gotOffsets []string
	rowsByOffset := map[string]int{"0": supabasePageSize, "1000": 3}

	c, _ := newTestSupabaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer test-anon-key", r.Header.Get("Authorization"))

		offset := r.URL.Query().Get("offset")
		gotOffsets = append(gotOffsets, offset)

		n := rowsByOffset[offset]
		rows := make([]supabaseRow, n)
		for i := range rows {
			rows[i] = supabaseRow{ID: fmt.Sprintf("%s-%d", offset, i), Title: "t", Published: time.Now()}
		}
		_ = json.NewEncoder(w).Encode(rows)
	})

	papers, err := c.FetchWindow(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Len(t, papers, supabasePageSize+3)
	assert.Equal(t, []string{"0", "1000"}, gotOffsets)
}

func TestSupabaseClient_FetchWindow_NonOKStatusReturnsProviderError(t *testing.T) {
	c, _ := newTestSupabaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	})

	_, err := c.FetchWindow(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	assert.Error(t, err)
}

func TestSupabaseClient_MatchByEmbedding_PostsVectorAndParsesRows(t *testing.T) {
	c, _ := newTestSupabaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/match_arxiv_papers", r.URL.Path)

		var req matchByEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.QueryEmbedding, 3)
		assert.Equal(t, 5, req.MatchCount)

		rows := []matchByEmbeddingRow{{ID: "a", Similarity: 0.9}, {ID: "b", Similarity: 0.5}}
		_ = json.NewEncoder(w).Encode(rows)
	})

	entries, err := c.MatchByEmbedding(context.Background(), []float32{0.1, 0.2, 0.3}, 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].PaperID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "b", entries[1].PaperID)
	assert.Equal(t, 2, entries[1].Rank)
}

func TestSupabaseClient_MatchBM25_PostsQueryTextAndParsesRows(t *testing.T) {
	c, _ := newTestSupabaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/match_arxiv_papers_bm25", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "graph neural networks", body["query_text"])

		rows := []matchBM25Row{{ID: "x", Score: 12.3}}
		_ = json.NewEncoder(w).Encode(rows)
	})

	entries, err := c.MatchBM25(context.Background(), "graph neural networks", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].PaperID)
	assert.Equal(t, 12.3, entries[0].Score)
}

func TestSupabaseClient_FetchWindow_Retries5xxThenSucceeds(t *testing.T) {
	attempts := 0
	c, _ := newTestSupabaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]supabaseRow{})
	})

	papers, err := c.FetchWindow(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, papers)
	assert.Equal(t, 3, attempts)
}

func TestSupabaseClient_FetchWindow_DoesNotRetry4xx(t *testing.T) {
	attempts := 0
	c, _ := newTestSupabaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchWindow(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "a 4xx response must fail on the first attempt")
}

func TestSupabaseClient_Dim_ReportsConfiguredDimension(t *testing.T) {
	c, _ := newTestSupabaseServer(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, 64, c.Dim())
}
