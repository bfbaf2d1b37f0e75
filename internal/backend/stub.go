package backend

import (
	"context"
	"strings"
)

// stubBackend is a fake Backend that echoes the last user message.
type stubBackend struct{}

// NewStub creates a fake backend for running the gateway without a model.
func NewStub() Backend {
	return &stubBackend{}
}

func (s *stubBackend) Name() string {
	return "stub"
}

func (s *stubBackend) Generate(ctx context.Context, messages []Message, params Params) (Result, error) {
	return &MessageResult{Role: TurnAssistant.String(), Content: s.reply(messages)}, nil
}

func (s *stubBackend) GenerateStream(ctx context.Context, messages []Message, params Params) (Stream, error) {
	// Split on spaces so clients see more than one token.
	words := strings.SplitAfter(s.reply(messages), " ")
	return Fragments(words, nil), nil
}

func (s *stubBackend) reply(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Turn == TurnUser {
			return "You said: " + messages[i].Content
		}
	}
	return "Hello! I'm a stub backend."
}
