// Package llm defines the chat-completion provider port.
package llm

import (
	"context"
	"encoding/json"
)

// Message is one turn of provider input.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ToolCall is one structured action requested by the model.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Request is a single completion call. Model and Temperature come from the
// resolved tenant's configuration.
type Request struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []Message `json:"messages"`
}

// Response is the provider's reply. ToolCalls may be empty.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Model     string     `json:"model,omitempty"`
	TokensIn  int        `json:"tokens_in,omitempty"`
	TokensOut int        `json:"tokens_out,omitempty"`
}

// Provider is the port interface for the LLM backend. Implementations
// bound each call with a timeout and distinguish transient failures
// (retryable) from permanent ones via IsTransient.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
