package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

var (
	// ErrUnavailable means the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrTruncated means the backend stopped before signalling completion.
	ErrTruncated = errors.New("backend output truncated")
	// ErrEmptyOutput means the backend completed without producing any text.
	ErrEmptyOutput = errors.New("backend returned empty output")
	// ErrStreamConsumed is yielded when a stream is ranged over twice.
	ErrStreamConsumed = errors.New("stream already consumed")
)

// PartialOutputError carries the text received before the backend failed.
type PartialOutputError struct {
	Text string
	Err  error
}

func (e *PartialOutputError) Error() string {
	if e.Text == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v after %d bytes of output", e.Err, len(e.Text))
}

func (e *PartialOutputError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err with ErrUnavailable when it describes a transport
// level failure. Other errors, including context cancellation, are returned
// unchanged.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &opErr),
		errors.As(err, &dnsErr),
		errors.As(err, &urlErr):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
