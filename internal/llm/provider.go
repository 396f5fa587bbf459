// Package llm talks to hosted and local language models. Every provider
// accepts tool specs; those without native function calling get the tool
// catalogue in the prompt and their replies parsed back into tool calls.
package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response. When
	// req.Tools is set the response may carry ToolCalls instead of text.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
