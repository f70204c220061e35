package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dprerrors "github.com/Aman-CERP/dpr-pipeline/internal/errors"
)

// DefaultTimeout bounds a single rerank service call.
const DefaultTimeout = 30 * time.Second

// HTTPReranker talks to a cross-encoder rerank service over a plain
// net/http + encoding/json POST, the same hand-rolled idiom the
// pipeline's other provider clients use instead of an SDK.
type HTTPReranker struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewHTTPReranker constructs a client against endpoint (e.g.
// "http://localhost:9659") for the named cross-encoder model, authenticated
// with apiKey when non-empty.
func NewHTTPReranker(endpoint, apiKey, model string) *HTTPReranker {
	return &HTTPReranker{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

func (r *HTTPReranker) setAuthHeader(req *http.Request) {
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents, Model: r.model})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	r.setAuthHeader(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, dprerrors.ProviderError(dprerrors.ErrCodeRerankProvider, "rerank request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, dprerrors.ProviderError(dprerrors.ErrCodeRerankProvider,
			fmt.Sprintf("rerank service returned %d: %s", resp.StatusCode, string(data)), nil)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]Result, len(parsed.Results))
	for i, r := range parsed.Results {
		results[i] = Result{Index: r.Index, Score: r.Score}
	}
	return results, nil
}

func (r *HTTPReranker) Available(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	r.setAuthHeader(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

var _ Reranker = (*HTTPReranker)(nil)
