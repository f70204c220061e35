package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dprerrors "github.com/Aman-CERP/dpr-pipeline/internal/errors"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

const supabasePageSize = 1000

// SupabaseClient talks to a Supabase (PostgREST) mirror of the paper
// table, used both as an alternate fetch source (paginated REST reads)
// and, via the embedding retriever's MirrorSearcher interface, as a
// delegate for dense search RPCs.
type SupabaseClient struct {
	baseURL     string
	anonKey     string
	table       string
	schema      string
	vectorRPC   string
	bm25RPC     string
	dim         int
	client      *http.Client
}

// NewSupabaseClient constructs a client against a Supabase project URL.
func NewSupabaseClient(baseURL, anonKey, table, schema, vectorRPC, bm25RPC string, dim int) *SupabaseClient {
	return &SupabaseClient{
		baseURL:   baseURL,
		anonKey:   anonKey,
		table:     table,
		schema:    schema,
		vectorRPC: vectorRPC,
		bm25RPC:   bm25RPC,
		dim:       dim,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Dim reports the embedding dimension this mirror was configured for, so
// the embedding retriever can decide whether it is safe to delegate.
func (c *SupabaseClient) Dim() int { return c.dim }

func (c *SupabaseClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	req.Header.Set("Content-Type", "application/json")
}

type supabaseRow struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	Authors         []string  `json:"authors"`
	PrimaryCategory string    `json:"primary_category"`
	Categories      []string  `json:"categories"`
	Published       time.Time `json:"published"`
	Link            string    `json:"link"`
}

// FetchWindow paginates GET /rest/v1/<table>?published=gte.&published=lt.
// until a short page (< page size) is returned, per the mirror read path.
// Each page retries transient (5xx/network) failures per the pipeline's
// standard provider backoff (base 2, max 3 attempts); a 4xx fails the page
// immediately.
func (c *SupabaseClient) FetchWindow(ctx context.Context, start, end time.Time) ([]model.Paper, error) {
	var all []model.Paper
	cfg := dprerrors.ProviderRetryConfig()

	for offset := 0; ; offset += supabasePageSize {
		url := fmt.Sprintf("%s/rest/v1/%s?published=gte.%s&published=lt.%s&order=published.desc&limit=%d&offset=%d",
			c.baseURL, c.table, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), supabasePageSize, offset)

		var rows []supabaseRow
		err := dprerrors.Retry(ctx, cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("build supabase fetch request: %w", err)
			}
			c.setAuthHeaders(req)

			resp, err := c.client.Do(req)
			if err != nil {
				return dprerrors.ProviderError(dprerrors.ErrCodeSupabaseProvider, "supabase fetch request failed", err)
			}

			decoded, err := decodeRows(resp)
			if err != nil {
				return err
			}
			rows = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, r := range rows {
			all = append(all, model.Paper{
				ID: r.ID, Source: "arxiv", Title: r.Title, Abstract: r.Abstract,
				Authors: r.Authors, PrimaryCategory: r.PrimaryCategory, Categories: r.Categories,
				Published: r.Published, Link: r.Link,
			})
		}

		if len(rows) < supabasePageSize {
			break
		}
	}

	return all, nil
}

func decodeRows(resp *http.Response) ([]supabaseRow, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		perr := dprerrors.ProviderError(dprerrors.ErrCodeSupabaseProvider,
			fmt.Sprintf("supabase returned %d: %s", resp.StatusCode, string(data)), nil)
		perr.Retryable = resp.StatusCode >= 500
		return nil, perr
	}

	var rows []supabaseRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode supabase response: %w", err)
	}
	return rows, nil
}

type matchByEmbeddingRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	MatchCount     int       `json:"match_count"`
}

type matchByEmbeddingRow struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// MatchByEmbedding delegates dense retrieval to the mirror's vector RPC,
// satisfying the embedding package's MirrorSearcher interface. Retries
// transient (5xx/network) failures per the pipeline's standard provider
// backoff (base 2, max 3 attempts); a 4xx fails immediately.
func (c *SupabaseClient) MatchByEmbedding(ctx context.Context, vector []float32, matchCount int) ([]model.RankEntry, error) {
	body, err := json.Marshal(matchByEmbeddingRequest{QueryEmbedding: vector, MatchCount: matchCount})
	if err != nil {
		return nil, fmt.Errorf("marshal match_by_embedding request: %w", err)
	}

	var entries []model.RankEntry
	err = dprerrors.Retry(ctx, dprerrors.ProviderRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/rest/v1/rpc/"+c.vectorRPC, jsonReader(body))
		if err != nil {
			return fmt.Errorf("build match_by_embedding request: %w", err)
		}
		c.setAuthHeaders(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return dprerrors.ProviderError(dprerrors.ErrCodeSupabaseProvider, "match_by_embedding request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			perr := dprerrors.ProviderError(dprerrors.ErrCodeSupabaseProvider,
				fmt.Sprintf("match_by_embedding returned %d: %s", resp.StatusCode, string(data)), nil)
			perr.Retryable = resp.StatusCode >= 500
			return perr
		}

		var rows []matchByEmbeddingRow
		if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
			return fmt.Errorf("decode match_by_embedding response: %w", err)
		}

		entries = make([]model.RankEntry, len(rows))
		for i, r := range rows {
			entries[i] = model.RankEntry{PaperID: r.ID, Score: r.Similarity, Rank: i + 1}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// matchBM25Row and MatchBM25 mirror the BM25 RPC path for the same
// source-preference decision PaperFetcher makes for reads.
type matchBM25Row struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// MatchBM25 delegates sparse retrieval to the mirror's BM25 RPC,
// satisfying the bm25 package's MirrorSearcher interface, for deployments
// that prefer scoring server-side rather than rebuilding a local index
// every run. Retries transient (5xx/network) failures per the pipeline's
// standard provider backoff (base 2, max 3 attempts); a 4xx fails
// immediately.
func (c *SupabaseClient) MatchBM25(ctx context.Context, queryText string, matchCount int) ([]model.RankEntry, error) {
	body, err := json.Marshal(map[string]any{"query_text": queryText, "match_count": matchCount})
	if err != nil {
		return nil, fmt.Errorf("marshal bm25 rpc request: %w", err)
	}

	var entries []model.RankEntry
	err = dprerrors.Retry(ctx, dprerrors.ProviderRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/rest/v1/rpc/"+c.bm25RPC, jsonReader(body))
		if err != nil {
			return fmt.Errorf("build bm25 rpc request: %w", err)
		}
		c.setAuthHeaders(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return dprerrors.ProviderError(dprerrors.ErrCodeSupabaseProvider, "bm25 rpc request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			perr := dprerrors.ProviderError(dprerrors.ErrCodeSupabaseProvider,
				fmt.Sprintf("bm25 rpc returned %d: %s", resp.StatusCode, string(data)), nil)
			perr.Retryable = resp.StatusCode >= 500
			return perr
		}

		var rows []matchBM25Row
		if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
			return fmt.Errorf("decode bm25 rpc response: %w", err)
		}

		entries = make([]model.RankEntry, len(rows))
		for i, r := range rows {
			entries[i] = model.RankEntry{PaperID: r.ID, Score: r.Score, Rank: i + 1}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func jsonReader(body []byte) *strings.Reader {
	return strings.NewReader(string(body))
}
