package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Complete_SendsAuthHeaderAndReturnsContent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)

		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: `{"results":[]}`}}}})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "secret-key", "gpt-test", 0)
	content, err := c.Complete(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, `{"results":[]}`, content)
}

func TestOpenAIClient_Complete_RetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: "ok"}}}})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "m", 0)
	content, err := c.Complete(context.Background(), "s", "u")

	require.NoError(t, err)
	assert.Equal(t, "ok", content)
	assert.Equal(t, 3, attempts)
}

func TestOpenAIClient_Complete_DoesNotRetry4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "m", 0)
	_, err := c.Complete(context.Background(), "s", "u")

	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "a 4xx response must fail on the first attempt")
}

func TestOpenAIClient_Complete_NoChoicesIsMalformedAndNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_ = json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "m", 0)
	_, err := c.Complete(context.Background(), "s", "u")

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
