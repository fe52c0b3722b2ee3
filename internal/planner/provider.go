// Package planner drives free-form portal tasks: an LLM proposes one
// browser action per step, the planner executes it and feeds back what the
// page looks like, until the model declares the goal done or the step
// budget runs out.
package planner

import (
	"context"
	"fmt"
)

// CompletionRequest is a single-turn text completion
type CompletionRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Provider is an LLM completion backend
type Provider interface {
	// Complete returns the model's text for a single-turn request
	Complete(ctx context.Context, request CompletionRequest) (string, error)

	// Name returns the provider name
	Name() string
}

// NewProvider creates a completion provider by name
func NewProvider(provider, apiKey string) (Provider, error) {
	switch provider {
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
