package aligned

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbukum/scribe/transcription"
)

func newProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := NewProvider(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func writeSSE(w http.ResponseWriter, events ...[2]string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, ev := range events {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev[0], ev[1])
	}
}

func collect(p *Provider, ctx context.Context) ([]transcription.Event, error) {
	var out []transcription.Event
	for ev, err := range p.TranscribeStream(ctx, transcription.Request{Model: "large-v3", Options: transcription.Options{Diarize: true}}) {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func TestTranscribe(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if r.FormValue("diarize") != "true" {
			t.Errorf("diarize = %q", r.FormValue("diarize"))
		}
		_, _ = w.Write([]byte(`{"text":"hi there","language":"en","segments":[{"start":0,"end":1,"speaker":"SPEAKER_01","text":"hi there"}]}`))
	})
	res, err := p.Transcribe(context.Background(), transcription.Request{Model: "large-v3", Options: transcription.Options{Diarize: true}})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hi there" || len(res.Segments) != 1 || res.Segments[0].Speaker != "SPEAKER_01" {
		t.Errorf("res = %+v", res)
	}
	if p.Kind() != transcription.KindAligned {
		t.Errorf("kind = %s", p.Kind())
	}
}

func TestTranscribeStream(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe/stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeSSE(w,
			[2]string{"progress", `{"percent":25}`},
			[2]string{"heartbeat", `{}`},
			[2]string{"segment", `{"start":2,"end":3,"speaker":"SPEAKER_00","text":"second"}`},
			[2]string{"segment", `{"start":0,"end":1,"text":"first"}`},
			[2]string{"complete", `{"text":"first second","language":"en"}`},
			[2]string{"segment", `{"start":9,"end":10,"text":"after complete"}`},
		)
	})

	events, err := collect(p, context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	want := []transcription.EventType{
		transcription.EventProgress, transcription.EventSegment, transcription.EventSegment, transcription.EventComplete,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Errorf("event %d = %s, want %s", i, events[i].Type, typ)
		}
	}
	if events[0].Progress != 25 {
		t.Errorf("progress = %v", events[0].Progress)
	}
	if events[1].Segment.Text != "second" || events[1].Segment.Speaker != "SPEAKER_00" {
		t.Errorf("segment = %+v", events[1].Segment)
	}
	if events[3].Language != "en" {
		t.Errorf("language = %q", events[3].Language)
	}
}

func TestTranscribeStream_ErrorEvent(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		writeSSE(w,
			[2]string{"segment", `{"start":0,"end":1,"text":"kept"}`},
			[2]string{"error", `{"message":"CUDA out of memory"}`},
		)
	})
	events, err := collect(p, context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	last := events[len(events)-1]
	if last.Type != transcription.EventError || last.Message != "CUDA out of memory" {
		t.Errorf("last = %+v", last)
	}
}

func TestTranscribeStream_HTTPError(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})
	if _, err := collect(p, context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestTranscribeStream_Break(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		writeSSE(w,
			[2]string{"segment", `{"start":0,"end":1,"text":"one"}`},
			[2]string{"segment", `{"start":1,"end":2,"text":"two"}`},
		)
	})
	n := 0
	for _, err := range p.TranscribeStream(context.Background(), transcription.Request{}) {
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		n++
		break
	}
	if n != 1 {
		t.Errorf("n = %d", n)
	}
}

func TestTranscribeStream_NotEventStream(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	if _, err := collect(p, context.Background()); err == nil {
		t.Fatal("expected error for non-SSE response")
	}
}
