package llm

//go:generate mockgen -destination=./service_mock_test.go -package=llm -source=service.go Service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"llm-gateway/internal/backend"
	"llm-gateway/internal/requestctx"
	"llm-gateway/internal/usage"

	"github.com/rs/zerolog"
)

// recordTimeout bounds how long a ledger write may hold up a finished call.
const recordTimeout = 5 * time.Second

// Service defines the business logic for the LLM gateway.
type Service interface {
	// Complete runs a blocking completion for the conversation.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream runs a streaming completion. The returned channel yields zero or
	// more token events and then exactly one done or error event, after which
	// it is closed. Cancelling ctx stops the backend and closes the channel,
	// possibly without a terminal event.
	Stream(ctx context.Context, req *ChatRequest) <-chan StreamEvent
}

// service is the concrete implementation of the Service interface.
type service struct {
	adapter  *Adapter
	recorder UsageRecorder
	metrics  *Metrics
	logger   zerolog.Logger
	timeout  time.Duration
}

// NewService is the constructor for the LLM gateway service. A zero timeout
// lets a call run for as long as the backend keeps it open. Nil metrics are
// replaced with an unregistered set.
func NewService(adapter *Adapter, recorder UsageRecorder, metrics *Metrics, logger zerolog.Logger, timeout time.Duration) Service {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &service{
		adapter:  adapter,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger.With().Str("component", "llm").Logger(),
		timeout:  timeout,
	}
}

// Complete implements the Service interface.
func (s *service) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	content, err := s.complete(ctx, req)
	s.finish(ctx, usage.ModeComplete, start, 0, len(content), err)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{Content: content}, nil
}

func (s *service) complete(ctx context.Context, req *ChatRequest) (string, error) {
	client, messages, err := s.prepare(req)
	if err != nil {
		return "", err
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	content, err := client.Complete(callCtx, messages)
	if err != nil {
		return "", s.describe(err)
	}
	return content, nil
}

// Stream implements the Service interface.
func (s *service) Stream(ctx context.Context, req *ChatRequest) <-chan StreamEvent {
	events := make(chan StreamEvent)
	go s.stream(ctx, req, events)
	return events
}

// streamState is where a streaming call is in its lifecycle.
type streamState int

const (
	stateStarting streamState = iota
	stateStreaming
	stateTerminating
	stateClosed
)

func (s streamState) String() string {
	switch s {
	case stateStarting:
		return "starting"
	case stateStreaming:
		return "streaming"
	case stateTerminating:
		return "terminating"
	default:
		return "closed"
	}
}

// streamSession delivers the events of one streaming call.
type streamSession struct {
	// ctx is the caller's context; sends give up once it is done.
	ctx    context.Context
	events chan<- StreamEvent
	state  streamState

	fragments int
	bytes     int
	tokens    func()
}

func (ss *streamSession) send(event StreamEvent) bool {
	select {
	case ss.events <- event:
		return true
	case <-ss.ctx.Done():
		return false
	}
}

// pump forwards non-empty fragments until the stream ends. Returning early
// stops the range, which releases the backend.
func (ss *streamSession) pump(stream backend.Stream) error {
	for fragment, err := range stream {
		if err != nil {
			return err
		}
		if fragment == "" {
			continue
		}
		if !ss.send(tokenEvent(fragment)) {
			return ss.ctx.Err()
		}
		ss.fragments++
		ss.bytes += len(fragment)
		ss.tokens()
	}
	return nil
}

func (s *service) stream(ctx context.Context, req *ChatRequest, events chan<- StreamEvent) {
	start := time.Now()
	s.metrics.ActiveStreams.Inc()

	session := &streamSession{
		ctx:    ctx,
		events: events,
		state:  stateStarting,
		tokens: s.metrics.StreamTokens.Inc,
	}

	// The timeout applies to the backend only, so that a timed out call can
	// still deliver its error event.
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var fault error
	client, messages, err := s.prepare(req)
	if err == nil {
		var fragments backend.Stream
		fragments, err = client.StreamComplete(callCtx, messages)
		if err == nil {
			session.state = stateStreaming
			err = session.pump(fragments)
		}
	}
	if err != nil {
		fault = s.describe(err)
		if ctx.Err() == nil {
			s.logger.Warn().
				Err(fault).
				Str("request_id", requestctx.GetRequestID(ctx)).
				Stringer("state", session.state).
				Int("fragments", session.fragments).
				Msg("Stream terminated with error")
		}
	}

	session.state = stateTerminating
	terminal := doneEvent()
	if fault != nil {
		terminal = errorEvent(fault)
	}
	// A caller that has gone away gets no terminal event.
	delivered := ctx.Err() == nil && session.send(terminal)
	if !delivered && fault == nil {
		fault = ctx.Err()
	}
	close(events)
	session.state = stateClosed
	s.metrics.ActiveStreams.Dec()

	s.finish(ctx, usage.ModeStream, start, session.fragments, session.bytes, fault)
}

// prepare validates the request, normalizes its messages and binds a client
// to its parameters. Nothing here talks to the backend.
func (s *service) prepare(req *ChatRequest) (*BoundClient, []backend.Message, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, nil, fmt.Errorf("%w: messages must not be empty", ErrInvalidRequest)
	}

	messages, err := Normalize(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	client, err := s.adapter.Bind(req.temperature(), req.topP())
	if err != nil {
		return nil, nil, err
	}

	return client, messages, nil
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *service) describe(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("completion timed out after %v: %w", s.timeout, err)
	}
	return err
}

// finish updates metrics and writes the usage record for one call.
func (s *service) finish(ctx context.Context, mode usage.Mode, start time.Time, fragments, bytes int, err error) {
	duration := time.Since(start)
	status := outcome(err)

	s.metrics.Requests.WithLabelValues(string(mode), status).Inc()
	s.metrics.RequestDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())

	record := &usage.Record{
		RequestID:   requestctx.GetRequestID(ctx),
		Mode:        mode,
		Backend:     s.adapter.backend.Name(),
		Model:       s.adapter.Model(),
		Status:      status,
		Fragments:   fragments,
		OutputBytes: bytes,
		Duration:    duration,
	}
	if err != nil {
		record.Error = err.Error()
	}

	// Record even when the caller has gone away
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.Record(recordCtx, record); err != nil {
		s.logger.Error().Err(err).Str("request_id", record.RequestID).Msg("Failed to record usage")
	}

	s.logger.Debug().
		Str("request_id", record.RequestID).
		Str("mode", string(mode)).
		Str("status", status).
		Dur("duration", duration).
		Msg("Chat request finished")
}
