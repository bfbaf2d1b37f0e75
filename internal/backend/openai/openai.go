// Package openai adapts any OpenAI-compatible /chat/completions endpoint
// (vLLM, llama.cpp server, LiteLLM, OpenAI itself) to backend.Backend.
package openai

import (
	"context"
	"net/http"
	"strings"

	"llm-gateway/internal/backend"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var _ backend.Backend = (*Client)(nil)

// finishReasonLength is reported when generation hit the token limit.
const finishReasonLength = "length"

// Client performs chat completions against an OpenAI-compatible API.
type Client struct {
	client openai.Client
	model  string
}

// Options configures a Client.
type Options struct {
	// APIKey is sent as a bearer token. Local servers usually ignore it.
	APIKey     string
	HTTPClient *http.Client
}

// NewClient returns a Client for the API rooted at baseURL, e.g.
// "http://localhost:8000/v1".
func NewClient(baseURL string, model string, options *Options) *Client {
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimSuffix(baseURL, "/") + "/"),
		// Callers own retries
		option.WithMaxRetries(0),
	}
	if options != nil {
		if options.APIKey != "" {
			opts = append(opts, option.WithAPIKey(options.APIKey))
		}
		if options.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(options.HTTPClient))
		}
	}

	return &Client{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Name implements backend.Backend.
func (c *Client) Name() string {
	return "openai"
}

// Generate implements backend.Backend.
func (c *Client) Generate(ctx context.Context, messages []backend.Message, params backend.Params) (backend.Result, error) {
	completion, err := c.client.Chat.Completions.New(ctx, c.params(messages, params))
	if err != nil {
		return nil, backend.Unavailable(err)
	}

	if len(completion.Choices) == 0 {
		return nil, &backend.PartialOutputError{Err: backend.ErrEmptyOutput}
	}

	choice := completion.Choices[0]
	if choice.FinishReason == finishReasonLength {
		return nil, &backend.PartialOutputError{Text: choice.Message.Content, Err: backend.ErrTruncated}
	}
	if choice.Message.Content == "" {
		return nil, &backend.PartialOutputError{Err: backend.ErrEmptyOutput}
	}

	return &backend.MessageResult{
		Role:    string(choice.Message.Role),
		Content: choice.Message.Content,
	}, nil
}

// GenerateStream implements backend.Backend. The HTTP request is made when
// the stream is first ranged over.
func (c *Client) GenerateStream(ctx context.Context, messages []backend.Message, params backend.Params) (backend.Stream, error) {
	body := c.params(messages, params)

	return backend.Once(func(yield func(string, error) bool) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, body)
		defer stream.Close()

		var received strings.Builder
		reason := ""
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				reason = string(choice.FinishReason)
			}
			received.WriteString(choice.Delta.Content)
			if !yield(choice.Delta.Content, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield("", backend.Unavailable(err))
			return
		}
		if reason == "" || reason == finishReasonLength {
			yield("", &backend.PartialOutputError{Text: received.String(), Err: backend.ErrTruncated})
		}
	}), nil
}

func (c *Client) params(messages []backend.Message, params backend.Params) openai.ChatCompletionNewParams {
	converted := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, m := range messages {
		switch m.Turn {
		case backend.TurnSystem:
			converted[i] = openai.SystemMessage(m.Content)
		case backend.TurnAssistant:
			converted[i] = openai.AssistantMessage(m.Content)
		default:
			converted[i] = openai.UserMessage(m.Content)
		}
	}

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    converted,
		Temperature: openai.Float(params.Temperature),
		TopP:        openai.Float(params.TopP),
	}
}
