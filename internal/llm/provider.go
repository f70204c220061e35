// Package llm implements the LLM refinement stage: candidate assembly
// from rerank output, batched chat-completion calls with a lenient JSON
// recovery path, and score merging into model.LLMScore.
package llm

import "context"

// ChatProvider is the capability the refiner needs from an LLM backend: a
// single non-streaming chat completion given a system and user message.
type ChatProvider interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}
