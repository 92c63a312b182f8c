package aligned

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/kbukum/scribe/httpclient"
	"github.com/kbukum/scribe/httpclient/sse"
	"github.com/kbukum/scribe/provider"
	"github.com/kbukum/scribe/transcription"
	"github.com/kbukum/scribe/transcription/whisper"
)

const (
	// ProviderName is the registered name for the aligned service.
	ProviderName = "aligned"

	defaultURL     = "http://localhost:8388"
	defaultTimeout = 20 * time.Minute
)

// Config holds configuration for the aligned diarization service.
type Config struct {
	URL     string        `json:"url" yaml:"url" mapstructure:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Provider transcribes with word alignment and speaker diarization through
// a WhisperX-style sidecar.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

var (
	_ transcription.Backend  = (*Provider)(nil)
	_ transcription.Streamer = (*Provider)(nil)
)

// NewProvider creates an aligned service provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.URL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("aligned: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Factory returns a provider.Factory for the aligned service.
func Factory() provider.Factory[transcription.Backend] {
	return func(cfg map[string]any) (transcription.Backend, error) {
		c := Config{}
		if v, ok := cfg["url"].(string); ok {
			c.URL = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			c.Timeout = v
		}
		return NewProvider(c)
	}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Kind() transcription.BackendKind { return transcription.KindAligned }

// URL returns the service base URL.
func (p *Provider) URL() string { return p.cfg.URL }

func (p *Provider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil
}

// Transcribe runs a batch transcription.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body:   whisper.Form(req),
	})
	if err != nil {
		return nil, fmt.Errorf("aligned transcribe: %w", err)
	}
	return whisper.DecodeResult(resp.Body)
}

// TranscribeStream posts the audio to /transcribe/stream and yields the
// service's SSE events as they arrive. An error event ends the sequence
// with a transcription error; breaking out of the loop closes the
// connection.
func (p *Provider) TranscribeStream(ctx context.Context, req transcription.Request) iter.Seq2[transcription.Event, error] {
	return func(yield func(transcription.Event, error) bool) {
		resp, err := p.client.DoStream(ctx, httpclient.Request{
			Method:  http.MethodPost,
			Path:    "/transcribe/stream",
			Headers: map[string]string{"Accept": "text/event-stream"},
			Body:    whisper.Form(req),
		})
		if err != nil {
			yield(transcription.Event{}, fmt.Errorf("aligned stream: %w", err))
			return
		}
		defer resp.Close()
		if resp.SSE == nil {
			yield(transcription.Event{}, errors.New("aligned stream: response is not an event stream"))
			return
		}

		for {
			raw, err := resp.SSE.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				yield(transcription.Event{}, fmt.Errorf("aligned stream: %w", err))
				return
			}
			ev, ok, err := decodeEvent(raw)
			if err != nil {
				yield(transcription.Event{}, err)
				return
			}
			if !ok {
				continue
			}
			if !yield(ev, nil) {
				return
			}
			if ev.Type == transcription.EventComplete || ev.Type == transcription.EventError {
				return
			}
		}
	}
}

type progressPayload struct {
	Percent float64 `json:"percent"`
}

type completePayload struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// decodeEvent maps one SSE event to a transcription event. Unknown event
// names are skipped.
func decodeEvent(raw *sse.Event) (transcription.Event, bool, error) {
	data := []byte(raw.Data)
	switch transcription.EventType(raw.Event) {
	case transcription.EventProgress:
		var p progressPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return transcription.Event{}, false, fmt.Errorf("decode progress event: %w", err)
		}
		return transcription.Event{Type: transcription.EventProgress, Progress: p.Percent}, true, nil
	case transcription.EventSegment:
		var s whisper.ResponseSegment
		if err := json.Unmarshal(data, &s); err != nil {
			return transcription.Event{}, false, fmt.Errorf("decode segment event: %w", err)
		}
		return transcription.Event{Type: transcription.EventSegment, Segment: s.Segment()}, true, nil
	case transcription.EventComplete:
		var c completePayload
		if err := json.Unmarshal(data, &c); err != nil {
			return transcription.Event{}, false, fmt.Errorf("decode complete event: %w", err)
		}
		return transcription.Event{Type: transcription.EventComplete, Text: c.Text, Language: c.Language}, true, nil
	case transcription.EventError:
		var e errorPayload
		if err := json.Unmarshal(data, &e); err != nil || e.Message == "" {
			e.Message = raw.Data
		}
		return transcription.Event{Type: transcription.EventError, Message: e.Message}, true, nil
	default:
		return transcription.Event{}, false, nil
	}
}
