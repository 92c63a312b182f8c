package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/transcription"
)

type localProvider struct {
	name      string
	available bool
}

func (p localProvider) Name() string                       { return p.name }
func (p localProvider) IsAvailable(ctx context.Context) bool { return p.available }

func newChecker(opts ...Option) *Checker {
	return NewChecker(append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

func TestProbe_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"ok","diarization":false,"device":"cuda","models":["large-v3"]}`))
	}))
	defer srv.Close()

	d := newChecker().Probe(context.Background(), Endpoint{Kind: transcription.KindAligned, URL: srv.URL})
	if !d.Available {
		t.Fatalf("expected available, reason %q", d.Reason)
	}
	if d.SupportsDiarization {
		t.Error("diarization reported false by service")
	}
	if d.ExecutionDevice != "cuda" || len(d.Models) != 1 {
		t.Errorf("got %+v", d)
	}
}

func TestProbe_DiarizationDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newChecker()
	aligned := c.Probe(context.Background(), Endpoint{Kind: transcription.KindAligned, URL: srv.URL})
	if !aligned.Available || !aligned.SupportsDiarization {
		t.Errorf("aligned = %+v", aligned)
	}
	heavy := c.Probe(context.Background(), Endpoint{Kind: transcription.KindHeavy, URL: srv.URL})
	if !heavy.Available || heavy.SupportsDiarization {
		t.Errorf("heavy = %+v", heavy)
	}
}

func TestProbe_Unavailable(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"loading"}`))
	}))
	defer unhealthy.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	refused := httptest.NewServer(http.NotFoundHandler())
	refusedURL := refused.URL
	refused.Close()

	tests := []struct {
		name string
		url  string
	}{
		{"non-2xx", down.URL},
		{"unhealthy status", unhealthy.URL},
		{"timeout", slow.URL},
		{"refused", refusedURL},
		{"no url", ""},
	}
	c := newChecker(WithTimeout(50 * time.Millisecond))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Probe(context.Background(), Endpoint{Kind: transcription.KindHeavy, URL: tt.url})
			if d.Available {
				t.Error("expected unavailable")
			}
			if d.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestProbeAll_Order(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	eps := []Endpoint{
		{Kind: transcription.KindAligned, URL: ""},
		{Kind: transcription.KindHeavy, URL: srv.URL},
		{Kind: transcription.KindCloud, Local: localProvider{name: "openai", available: false}},
		{Kind: transcription.KindLocal, Local: localProvider{name: "onnx", available: true}},
	}
	got := newChecker().ProbeAll(context.Background(), eps)
	if len(got) != len(eps) {
		t.Fatalf("len = %d", len(got))
	}
	for i, ep := range eps {
		if got[i].Kind != ep.Kind {
			t.Errorf("[%d] kind = %s, want %s", i, got[i].Kind, ep.Kind)
		}
	}
	want := []bool{false, true, false, true}
	for i, w := range want {
		if got[i].Available != w {
			t.Errorf("[%d] available = %v, want %v", i, got[i].Available, w)
		}
	}
}

func TestParseBody(t *testing.T) {
	b := ParseBody([]byte(`{"status":"ok","diarization":true,"extra":1}`))
	if b.Status != "ok" || b.Diarization == nil || !*b.Diarization {
		t.Errorf("got %+v", b)
	}
	if got := ParseBody(nil); got.Status != "" || got.Diarization != nil {
		t.Errorf("empty body = %+v", got)
	}
}
