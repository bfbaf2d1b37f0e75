package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"llm-gateway/internal/backend"

	ollama "github.com/ollama/ollama/api"
)

var _ backend.Backend = (*Client)(nil)

// errStopped aborts an in-flight chat when the consumer stops reading.
var errStopped = errors.New("stream consumer stopped")

// doneReasonLength is reported when generation hit the token limit.
const doneReasonLength = "length"

type Client struct {
	client    *ollama.Client
	model     string
	keepAlive time.Duration
}

type Options struct {
	KeepAlive  time.Duration
	HTTPClient *http.Client
}

func NewClient(base *url.URL, model string, options *Options) *Client {
	keepAlive := time.Duration(0)
	httpClient := &http.Client{}
	if options != nil {
		keepAlive = options.KeepAlive
		if options.HTTPClient != nil {
			httpClient = options.HTTPClient
		}
	}

	return &Client{
		client:    ollama.NewClient(base, httpClient),
		model:     model,
		keepAlive: keepAlive,
	}
}

// Name implements backend.Backend.
func (c *Client) Name() string {
	return "ollama"
}

// Generate implements backend.Backend.
func (c *Client) Generate(ctx context.Context, messages []backend.Message, params backend.Params) (backend.Result, error) {
	var builder strings.Builder
	done := false
	reason := ""
	err := c.client.Chat(ctx, c.request(messages, params, false), func(res ollama.ChatResponse) error {
		builder.WriteString(res.Message.Content)
		if res.Done {
			done = true
			reason = res.DoneReason
		}
		return nil
	})
	if err != nil {
		return nil, backend.Unavailable(err)
	}

	content := builder.String()
	if !done || reason == doneReasonLength {
		return nil, &backend.PartialOutputError{Text: content, Err: backend.ErrTruncated}
	}
	if content == "" {
		return nil, &backend.PartialOutputError{Err: backend.ErrEmptyOutput}
	}

	return &backend.MessageResult{
		// Assume assistant role
		Role:    backend.TurnAssistant.String(),
		Content: content,
	}, nil
}

// GenerateStream implements backend.Backend. Nothing is sent to Ollama until
// the stream is ranged over.
func (c *Client) GenerateStream(ctx context.Context, messages []backend.Message, params backend.Params) (backend.Stream, error) {
	req := c.request(messages, params, true)

	return backend.Once(func(yield func(string, error) bool) {
		var received strings.Builder
		done := false
		reason := ""
		err := c.client.Chat(ctx, req, func(res ollama.ChatResponse) error {
			received.WriteString(res.Message.Content)
			if res.Done {
				done = true
				reason = res.DoneReason
			}
			if !yield(res.Message.Content, nil) {
				return errStopped
			}
			return nil
		})
		switch {
		case errors.Is(err, errStopped):
		case err != nil:
			yield("", backend.Unavailable(err))
		case !done, reason == doneReasonLength:
			yield("", &backend.PartialOutputError{Text: received.String(), Err: backend.ErrTruncated})
		}
	}), nil
}

func (c *Client) request(messages []backend.Message, params backend.Params, stream bool) *ollama.ChatRequest {
	converted := make([]ollama.Message, len(messages))
	for i, m := range messages {
		converted[i] = ollama.Message{
			Role:    m.Turn.String(),
			Content: m.Content,
		}
	}

	req := &ollama.ChatRequest{
		Model:    c.model,
		Messages: converted,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
		},
	}

	// Leave keep-alive to the server unless configured
	if c.keepAlive > 0 {
		req.KeepAlive = &ollama.Duration{Duration: c.keepAlive}
	}

	return req
}
