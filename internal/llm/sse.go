package llm

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// writerState tracks the state of an sseWriter.
type writerState int

const (
	writerIdle      writerState = iota // no writes yet
	writerStreaming                    // at least one event written
	writerCompleted                    // terminal event written
)

// ErrStreamCompleted is returned when writing after the terminal event.
var ErrStreamCompleted = errors.New("cannot write event: stream is completed")

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// sseWriter frames stream events as server-sent events. It is not safe for
// concurrent use; one handler goroutine owns it.
type sseWriter struct {
	w     http.ResponseWriter
	rc    *http.ResponseController
	state writerState
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteEvent sends a single event and flushes it. The event is formatted as:
//
//	event: {type}\n
//	data: {line}\n   (one per line of data)
//	\n
func (s *sseWriter) WriteEvent(event StreamEvent) error {
	if s.state == writerCompleted {
		return ErrStreamCompleted
	}

	if s.state == writerIdle {
		header := s.w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.state = writerStreaming
	}

	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event.Type)
	for _, line := range strings.Split(lineBreaks.Replace(event.Data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := io.WriteString(s.w, b.String()); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if event.Terminal() {
		s.state = writerCompleted
	}
	return nil
}
