package llmprovider

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/pkg/models"
)

// OpenAIConfig configures an OpenAI adapter.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAI adapts the Chat Completions API to llm.Provider.
type OpenAI struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAI builds an OpenAI adapter.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmprovider: openai api key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) model(opts llm.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return o.defaultModel
}

func (o *OpenAI) buildRequest(messages models.ConversationHistory, opts llm.Options, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:  o.model(opts),
		Stream: stream,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}
	if opts.ResponseFormat == "json" {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return req
}

// Complete sends a non-streaming chat completion request.
func (o *OpenAI) Complete(ctx context.Context, messages models.ConversationHistory, opts llm.Options) (string, error) {
	req := o.buildRequest(messages, opts, false)
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream streams a chat completion, forwarding deltas to sink.
func (o *OpenAI) CompleteStream(ctx context.Context, messages models.ConversationHistory, opts llm.Options, sink llm.StreamSink) (string, error) {
	req := o.buildRequest(messages, opts, true)
	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", wrapOpenAIErr(err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", wrapOpenAIErr(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta != "" {
			b.WriteString(delta)
			if sink != nil {
				sink(delta)
			}
		}
	}
	return b.String(), nil
}

func wrapOpenAIErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &openaiWrappedError{code: apiErr.HTTPStatusCode, err: err}
	}
	return err
}

type openaiWrappedError struct {
	code int
	err  error
}

func (e *openaiWrappedError) Error() string {
	if e.code != 0 {
		return "openai: status=" + strconv.Itoa(e.code) + ": " + e.err.Error()
	}
	return "openai: " + e.err.Error()
}

func (e *openaiWrappedError) Unwrap() error { return e.err }
