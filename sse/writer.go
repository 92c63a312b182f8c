package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kbukum/scribe/logger"
)

// Event names used by the transcription stream.
const (
	EventProgress = "progress"
	EventSegment  = "segment"
	EventComplete = "complete"
	EventError    = "error"
)

// DefaultKeepAlive is shorter than common proxy idle timeouts.
const DefaultKeepAlive = 15 * time.Second

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Writer emits events to one client. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets the event-stream headers and disables the write deadline
// inherited from the server's WriteTimeout.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn("could not disable write deadline for event stream", logger.Fields(logger.FieldError, err.Error()))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one event whose data is v encoded as JSON.
func (s *Writer) Send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// KeepAlive writes a comment line. Clients ignore it.
func (s *Writer) KeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, ": keepalive %d\n\n", time.Now().Unix()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// KeepAliveLoop sends keep-alives every interval until done is closed.
func (s *Writer) KeepAliveLoop(done <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := s.KeepAlive(); err != nil {
				return
			}
		}
	}
}
