package llm

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

// MaxTokensClamp is the hard ceiling on model-visible max_tokens, per the
// refiner's token/output guard.
const MaxTokensClamp = 10000

// DefaultTemperature keeps scoring deterministic across batches.
const DefaultTemperature = 0.1

// OpenAIClient is a hand-rolled net/http client against an
// OpenAI-compatible /v1/chat/completions endpoint, following the
// pipeline's other provider clients rather than pulling in a full SDK.
type OpenAIClient struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOpenAIClient constructs a client against baseURL (e.g.
// "https://api.openai.com") using apiKey and model. maxTokens is clamped
// to MaxTokensClamp.
func NewOpenAIClient(baseURL, apiKey, model string, maxTokens int) *OpenAIClient {
	if maxTokens <= 0 || maxTokens > MaxTokensClamp {
		maxTokens = MaxTokensClamp
	}
	return &OpenAIClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a chat-completion request and returns the first choice's
// message content, retrying transient (5xx/network) failures per the
// pipeline's standard provider backoff (base 2, max 3 attempts). A 4xx
// response, or a malformed success response, fails on the first attempt.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature: DefaultTemperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var content string
	err = dprerrors.Retry(ctx, dprerrors.ProviderRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return dprerrors.ProviderError(dprerrors.ErrCodeLLMProvider, "chat completion request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			perr := dprerrors.ProviderError(dprerrors.ErrCodeLLMProvider,
				fmt.Sprintf("chat completion service returned %d: %s", resp.StatusCode, string(data)), nil)
			perr.Retryable = resp.StatusCode >= 500
			return perr
		}

		var parsed chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("decode chat response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return dprerrors.ProviderError(dprerrors.ErrCodeLLMMalformed, "chat completion returned no choices", nil)
		}

		content = parsed.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

var _ ChatProvider = (*OpenAIClient)(nil)
