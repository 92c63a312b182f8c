package sse

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type plainWriter struct {
	header http.Header
}

func (p *plainWriter) Header() http.Header       { return p.header }
func (p *plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (p *plainWriter) WriteHeader(int)             {}

func TestWriter_Send(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Send(EventSegment, map[string]any{"text": "hello", "start": 1.5}); err != nil {
		t.Fatal(err)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	want := "event: segment\ndata: {\"start\":1.5,\"text\":\"hello\"}\n\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
	if !rec.Flushed {
		t.Error("expected flush")
	}
}

func TestWriter_RequiresFlusher(t *testing.T) {
	if _, err := NewWriter(&plainWriter{header: http.Header{}}); err != ErrStreamingUnsupported {
		t.Fatalf("err = %v, want ErrStreamingUnsupported", err)
	}
}

func TestWriter_SendUnencodable(t *testing.T) {
	w, err := NewWriter(httptest.NewRecorder())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Send(EventProgress, func() {}); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestWriter_KeepAliveLoopStops(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		w.KeepAliveLoop(done, 5*time.Millisecond)
		close(stopped)
	}()
	time.Sleep(30 * time.Millisecond)
	close(done)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("keep-alive loop did not stop")
	}
	w.mu.Lock()
	body := rec.Body.String()
	w.mu.Unlock()
	if !strings.Contains(body, ": keepalive") {
		t.Errorf("no keep-alive written: %q", body)
	}
}
