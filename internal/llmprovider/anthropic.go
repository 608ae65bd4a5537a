// Package llmprovider adapts third-party chat-completion SDKs to the
// llm.Provider contract: synchronous Complete/CompleteStream over
// models.ConversationHistory.
package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/pkg/models"
)

// AnthropicConfig configures an Anthropic adapter.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Anthropic adapts Anthropic's Messages API to llm.Provider.
type Anthropic struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropic builds an Anthropic adapter. Returns an error if APIKey is
// empty (spec.md 6: "api_key" is a required configuration option for a
// configured provider).
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmprovider: anthropic api key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) model(opts llm.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return a.defaultModel
}

func (a *Anthropic) maxTokens(opts llm.Options) int64 {
	if opts.MaxTokens > 0 {
		return int64(opts.MaxTokens)
	}
	return 4096
}

func (a *Anthropic) buildParams(messages models.ConversationHistory, opts llm.Options) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model(opts)),
		MaxTokens: a.maxTokens(opts),
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if sys, ok := messages.LeadingSystem(); ok {
		params.System = []anthropic.TextBlockParam{{Text: sys.Content}}
	}
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			continue
		}
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == models.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	return params
}

// Complete sends a non-streaming Messages request and returns the
// concatenated text of the response.
func (a *Anthropic) Complete(ctx context.Context, messages models.ConversationHistory, opts llm.Options) (string, error) {
	params := a.buildParams(messages, opts)
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrapAnthropicErr(err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				b.WriteString(tb.Text)
			}
		}
	}
	return b.String(), nil
}

// CompleteStream issues a streaming Messages request, forwarding text
// deltas to sink, and returns the full accumulated text.
func (a *Anthropic) CompleteStream(ctx context.Context, messages models.ConversationHistory, opts llm.Options, sink llm.StreamSink) (string, error) {
	params := a.buildParams(messages, opts)
	stream := a.client.Messages.NewStreaming(ctx, params)

	var b strings.Builder
	for stream.Next() {
		event := stream.Current()
		if event.Type == "content_block_delta" {
			delta := event.AsContentBlockDelta().Delta
			if delta.Type == "text_delta" && delta.Text != "" {
				b.WriteString(delta.Text)
				if sink != nil {
					sink(delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", wrapAnthropicErr(err)
	}
	return b.String(), nil
}

func wrapAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic: status=%d: %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("anthropic: %w", err)
}
