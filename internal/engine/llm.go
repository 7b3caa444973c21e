package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"
)

// CompletionRequest is one system+user chat completion.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer is the completion provider contract used by the derivative generator.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// LLMCompleter calls an OpenAI-compatible chat completion endpoint through go-kit/llm.
type LLMCompleter struct {
	client  *llm.Client
	limiter *rate.Limiter
}

// NewLLMCompleter builds the completion client once from configuration.
func NewLLMCompleter(c Config, limiter *rate.Limiter) *LLMCompleter {
	client := llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithTemperature(c.LLMTemperature),
		llm.WithMaxTokens(c.SummaryMaxTokens),
		llm.WithHTTPClient(providerHTTPClient(c.CompletionTimeout)),
	)
	return &LLMCompleter{client: client, limiter: limiter}
}

// Complete sends one completion request and returns the trimmed text.
func (c *LLMCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := WaitLimiter(ctx, c.limiter); err != nil {
		return "", err
	}
	metrics.LLMCalls.Add(1)
	resp, err := c.client.Complete(ctx, req.System, req.Prompt,
		llm.WithChatTemperature(req.Temperature),
		llm.WithChatMaxTokens(req.MaxTokens),
	)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return stripFences(resp), nil
}

// WaitLimiter blocks until the provider limiter admits one call.
// A nil limiter admits immediately. Running out of time is reported as a deadline.
func WaitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("provider rate limit: %v: %w", err, context.DeadlineExceeded)
	}
	return nil
}

// providerHTTPClient gives the transport a little more room than the per-call
// context deadline so the context, not the client, reports the timeout.
func providerHTTPClient(callTimeout time.Duration) *http.Client {
	if callTimeout <= 0 {
		return &http.Client{}
	}
	return &http.Client{Timeout: callTimeout + 5*time.Second}
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
