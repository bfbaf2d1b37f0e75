package llm

//go:generate mockgen -destination=./clients_mock_test.go -package=llm -source=clients.go UsageRecorder

import (
	"context"
	"fmt"
	"math"
	"sync"

	"llm-gateway/internal/backend"
	"llm-gateway/internal/usage"

	"golang.org/x/sync/semaphore"
)

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// UsageRecorder defines the contract for storing one ledger entry per call.
type UsageRecorder interface {
	Record(ctx context.Context, record *usage.Record) error
}

// Adapter wraps a backend and hands out per-request bound clients. The
// backend itself is shared; concurrent calls are bounded by a semaphore.
type Adapter struct {
	backend backend.Backend
	model   string
	slots   *semaphore.Weighted
	metrics *Metrics
}

// NewAdapter creates an adapter over b. A maxConcurrent of zero or less
// leaves concurrency unbounded.
func NewAdapter(b backend.Backend, model string, maxConcurrent int64, metrics *Metrics) *Adapter {
	a := &Adapter{
		backend: b,
		model:   model,
		metrics: metrics,
	}
	if maxConcurrent > 0 {
		a.slots = semaphore.NewWeighted(maxConcurrent)
	}
	return a
}

// Model returns the configured model name.
func (a *Adapter) Model() string {
	return a.model
}

// Bind validates the sampling parameters and returns a client bound to them.
// Out-of-range values are rejected, never clamped.
func (a *Adapter) Bind(temperature, topP float64) (*BoundClient, error) {
	if math.IsNaN(temperature) || temperature < MinTemperature || temperature > MaxTemperature {
		return nil, fmt.Errorf("%w: temperature %v is outside [%v, %v]", ErrInvalidParameter, temperature, MinTemperature, MaxTemperature)
	}
	if math.IsNaN(topP) || topP <= 0 || topP > 1 {
		return nil, fmt.Errorf("%w: top_p %v is outside (0, 1]", ErrInvalidParameter, topP)
	}

	return &BoundClient{
		adapter: a,
		params:  backend.Params{Temperature: temperature, TopP: topP},
	}, nil
}

// BoundClient is a backend client bound to one request's parameters.
type BoundClient struct {
	adapter *Adapter
	params  backend.Params
}

// Params returns the bound sampling parameters.
func (c *BoundClient) Params() backend.Params {
	return c.params
}

// Complete runs a blocking completion and returns its text.
func (c *BoundClient) Complete(ctx context.Context, messages []backend.Message) (string, error) {
	release, err := c.adapter.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	result, err := c.adapter.backend.Generate(ctx, messages, c.params)
	c.adapter.observe(err)
	if err != nil {
		return "", err
	}

	return backend.ExtractText(result)
}

// StreamComplete starts a streaming completion. The backend slot is held
// until the stream has been ranged over or ctx ends, whichever is first.
func (c *BoundClient) StreamComplete(ctx context.Context, messages []backend.Message) (backend.Stream, error) {
	release, err := c.adapter.acquire(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := c.adapter.backend.GenerateStream(ctx, messages, c.params)
	if err != nil {
		release()
		c.adapter.observe(err)
		return nil, err
	}

	stop := context.AfterFunc(ctx, release)
	return func(yield func(string, error) bool) {
		defer func() {
			stop()
			release()
		}()

		var fault error
		for fragment, err := range stream {
			if err != nil {
				fault = err
			}
			if !yield(fragment, err) {
				break
			}
		}
		c.adapter.observe(fault)
	}, nil
}

// acquire takes a backend slot. The returned release is safe to call more
// than once.
func (a *Adapter) acquire(ctx context.Context) (func(), error) {
	if a.slots == nil {
		return func() {}, nil
	}
	if err := a.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { a.slots.Release(1) })
	}, nil
}

func (a *Adapter) observe(err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.BackendRequests.WithLabelValues(a.backend.Name(), outcome(err)).Inc()
}
