package embedding

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

// HTTPEmbedder talks to an Ollama-compatible embedding endpoint, following
// the same hand-rolled net/http + encoding/json idiom the pipeline's LLM
// client uses rather than a provider SDK.
type HTTPEmbedder struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

// NewHTTPEmbedder constructs a client against baseURL (e.g.
// "http://localhost:11434") for the named model, which produces
// dim-dimensional vectors.
func NewHTTPEmbedder(baseURL, model string, dim int) *HTTPEmbedder {
	return &HTTPEmbedder{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *HTTPEmbedder) Dim() int { return e.dim }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed requests embeddings for texts in a single batch call and
// L2-normalizes each returned vector.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, dprerrors.ProviderError(dprerrors.ErrCodeEmbedProvider, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, dprerrors.ProviderError(dprerrors.ErrCodeEmbedProvider,
			fmt.Sprintf("embedding service returned %d: %s", resp.StatusCode, string(data)), nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	for _, v := range parsed.Embeddings {
		normalizeL2(v)
	}
	return parsed.Embeddings, nil
}
