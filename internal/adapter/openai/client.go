// Package openai provides an HTTP client for OpenAI-compatible
// chat-completions endpoints. It implements the llm.Provider port with a
// per-call timeout, bounded retry on transient failures, and a circuit
// breaker.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Strob0t/SalesForge/internal/config"
	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/port/llm"
	"github.com/Strob0t/SalesForge/internal/resilience"
)

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	baseURL      string
	apiKey       string
	defaultModel string
	httpClient   *http.Client
	breaker      *resilience.Breaker
	retry        resilience.RetryConfig
}

// NewClient creates a provider client from config.
func NewClient(cfg config.LLM, retry config.Retry) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      cfg.URL,
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		httpClient:   &http.Client{Timeout: timeout},
		retry: resilience.RetryConfig{
			MaxAttempts: retry.MaxAttempts,
			BaseDelay:   retry.BaseDelay,
			MaxDelay:    retry.MaxDelay,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// wire types for the chat completions payload

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string          `json:"name"`
					Arguments json.RawMessage `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one completion request. Transient failures (network
// errors, 429, 5xx) are retried with backoff; 4xx responses are permanent.
// When the breaker is open the call fails fast with domain.ErrProvider.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	msgs := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(chatRequest{Model: model, Temperature: req.Temperature, Messages: msgs})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	var out *llm.Response
	err = resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		call := func() error {
			resp, err := c.doOnce(ctx, body)
			if err != nil {
				return err
			}
			out = resp
			return nil
		}
		if c.breaker != nil {
			err := c.breaker.Do(call)
			if errors.Is(err, resilience.ErrCircuitOpen) {
				// Fail fast; retrying against an open breaker only burns time.
				return fmt.Errorf("%w: circuit open", domain.ErrProvider)
			}
			return err
		}
		return call()
	})
	if err != nil {
		if errors.Is(err, domain.ErrProvider) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrProvider, err)
	}
	return out, nil
}

func (c *Client) doOnce(ctx context.Context, body []byte) (*llm.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, resilience.MarkTransient(fmt.Errorf("provider timeout: %w", err))
		}
		return nil, resilience.MarkTransient(fmt.Errorf("provider request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.MarkTransient(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, resilience.MarkTransient(fmt.Errorf("provider error %d: %s", resp.StatusCode, string(data)))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("provider error %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	choice := parsed.Choices[0].Message
	out := &llm.Response{
		Content:   choice.Content,
		Model:     parsed.Model,
		TokensIn:  parsed.Usage.PromptTokens,
		TokensOut: parsed.Usage.CompletionTokens,
	}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}
