// Package llm implements the LLMGateway: a thin, provider-agnostic facade
// over a chat-completion backend with a single bounded retry on transient
// failure (spec.md 4.3).
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/synapserun/synapse/pkg/models"
)

// Options carries the per-call generation parameters spec.md 4.3 names.
type Options struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	ResponseFormat string // "text" or "json", provider-dependent
}

// StreamSink receives incremental text as a streamed completion arrives.
type StreamSink func(delta string)

// Provider is the adapter contract an LLM backend implements. Complete and
// CompleteStream both return the full accumulated text on success.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages models.ConversationHistory, opts Options) (string, error)
	CompleteStream(ctx context.Context, messages models.ConversationHistory, opts Options, sink StreamSink) (string, error)
}

// Gateway wraps a Provider with retry policy and call serialization.
//
// Per spec.md 4.3, calls against a stateful provider (one that pins
// conversational state server-side) are serialized; otherwise concurrent
// calls are allowed. Our adapters are stateless (full history is sent on
// every call), so Gateway never serializes by default; Stateful marks a
// provider that requires it.
type Gateway struct {
	provider   Provider
	retryDelay time.Duration
	stateful   bool
	mu         chan struct{} // 1-buffered mutex, used only when stateful
}

// NewGateway builds a Gateway around provider. retryDelay is the pause
// before the single retry attempt on a transient failure; zero selects a
// small default.
func NewGateway(provider Provider, retryDelay time.Duration, stateful bool) *Gateway {
	if retryDelay <= 0 {
		retryDelay = 250 * time.Millisecond
	}
	g := &Gateway{provider: provider, retryDelay: retryDelay, stateful: stateful}
	if stateful {
		g.mu = make(chan struct{}, 1)
		g.mu <- struct{}{}
	}
	return g
}

func (g *Gateway) lock(ctx context.Context) error {
	if !g.stateful {
		return nil
	}
	select {
	case <-g.mu:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) unlock() {
	if g.stateful {
		g.mu <- struct{}{}
	}
}

// Complete returns the full completion text for messages under opts.
// On a transient failure (network/timeout/5xx) it retries exactly once
// after retryDelay; a non-transient failure returns immediately.
func (g *Gateway) Complete(ctx context.Context, messages models.ConversationHistory, opts Options) (string, error) {
	if err := g.lock(ctx); err != nil {
		return "", err
	}
	defer g.unlock()

	text, err := g.provider.Complete(ctx, messages, opts)
	if err == nil {
		return text, nil
	}
	if !isTransient(err) {
		return "", err
	}

	select {
	case <-time.After(g.retryDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.provider.Complete(ctx, messages, opts)
}

// CompleteStream is Complete's streaming variant: sink receives text
// deltas as they arrive, and the full accumulated text is also returned.
func (g *Gateway) CompleteStream(ctx context.Context, messages models.ConversationHistory, opts Options, sink StreamSink) (string, error) {
	if err := g.lock(ctx); err != nil {
		return "", err
	}
	defer g.unlock()

	text, err := g.provider.CompleteStream(ctx, messages, opts, sink)
	if err == nil {
		return text, nil
	}
	if !isTransient(err) {
		return "", err
	}

	select {
	case <-time.After(g.retryDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.provider.CompleteStream(ctx, messages, opts, sink)
}

var transientMarkers = []string{
	"timeout", "deadline exceeded", "connection reset", "connection refused",
	"no such host", "rate_limit", "429", "500", "502", "503", "504",
	"internal server error", "bad gateway", "service unavailable", "gateway timeout",
}

// isTransient classifies a provider error as retriable. context.Canceled
// is never retried.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
