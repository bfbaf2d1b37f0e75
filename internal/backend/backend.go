// Package backend defines the contract between the gateway and a
// text-generation runtime, plus the result and stream types adapters share.
package backend

//go:generate mockgen -destination=../llm/backend_mock_test.go -package=llm -source=backend.go Backend

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
)

// Turn is the kind of conversational turn a backend understands.
type Turn int

const (
	TurnSystem Turn = iota
	TurnUser
	TurnAssistant
)

// String returns the wire name most runtimes use for the turn.
func (t Turn) String() string {
	switch t {
	case TurnSystem:
		return "system"
	case TurnUser:
		return "user"
	case TurnAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("turn(%d)", int(t))
	}
}

// Message is a single turn in the backend's representation.
type Message struct {
	Turn    Turn
	Content string
}

// Params holds the sampling parameters bound to one request.
type Params struct {
	Temperature float64
	TopP        float64
}

// Backend is a text-generation runtime.
type Backend interface {
	// Name identifies the backend kind in logs and metrics, e.g. "ollama".
	Name() string
	// Generate blocks until the whole completion is available.
	Generate(ctx context.Context, messages []Message, params Params) (Result, error)
	// GenerateStream starts a completion and returns its fragments lazily.
	// The returned stream may be ranged over at most once.
	GenerateStream(ctx context.Context, messages []Message, params Params) (Stream, error)
}

// Stream is a lazy, finite sequence of text fragments. A non-nil error is
// always the last element. Breaking out of a range over the stream releases
// the underlying connection.
type Stream = iter.Seq2[string, error]

// Once wraps s so that it can be consumed a single time. Ranging over the
// result again yields ErrStreamConsumed.
func Once(s Stream) Stream {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}
		s(yield)
	}
}

// Fragments returns a stream over fixed fragments, optionally ending in err.
func Fragments(fragments []string, err error) Stream {
	return Once(func(yield func(string, error) bool) {
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	})
}
