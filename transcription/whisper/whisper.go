package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/scribe/httpclient"
	"github.com/kbukum/scribe/provider"
	"github.com/kbukum/scribe/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperTimeout = 15 * time.Minute
)

// Config holds configuration for the heavy inference server.
type Config struct {
	URL string `json:"url" yaml:"url" mapstructure:"url"`
	// ComputeType is forwarded as compute_type, e.g. "float16" or "int8".
	ComputeType string        `json:"compute_type,omitempty" yaml:"compute_type" mapstructure:"compute_type"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Provider implements transcription.Backend for a faster-whisper HTTP
// server.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

var _ transcription.Backend = (*Provider)(nil)

// NewProvider creates a new Whisper transcription provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperTimeout
	}
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.URL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Factory returns a provider.Factory that creates Whisper Provider
// instances from a generic config map.
func Factory() provider.Factory[transcription.Backend] {
	return func(cfg map[string]any) (transcription.Backend, error) {
		wc := Config{}
		if v, ok := cfg["url"].(string); ok {
			wc.URL = v
		}
		if v, ok := cfg["compute_type"].(string); ok {
			wc.ComputeType = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			wc.Timeout = v
		}
		return NewProvider(wc)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Kind implements transcription.Backend.
func (p *Provider) Kind() transcription.BackendKind { return transcription.KindHeavy }

// URL returns the server base URL.
func (p *Provider) URL() string { return p.cfg.URL }

// IsAvailable checks if the server answers its health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil
}

// Transcribe uploads the audio and returns the server's result.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	form := Form(req)
	if p.cfg.ComputeType != "" {
		form.Fields["compute_type"] = p.cfg.ComputeType
	}
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body:   form,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcribe: %w", err)
	}
	return DecodeResult(resp.Body)
}

// Form builds the multipart body shared by the transcription services.
func Form(req transcription.Request) *httpclient.MultipartBody {
	fields := map[string]string{
		"model":   string(req.Model),
		"diarize": strconv.FormatBool(req.Options.Diarize),
		"device":  DeviceParam(req.Device),
	}
	if req.Options.Language != "" {
		fields["language"] = req.Options.Language
	}
	if req.Options.MinSpeakers > 0 {
		fields["min_speakers"] = strconv.Itoa(req.Options.MinSpeakers)
	}
	if req.Options.MaxSpeakers > 0 {
		fields["max_speakers"] = strconv.Itoa(req.Options.MaxSpeakers)
	}
	name := req.Audio.FileName
	if name == "" {
		name = "audio.wav"
	}
	return &httpclient.MultipartBody{
		Fields: fields,
		Files: []httpclient.FileField{{
			FieldName:   "audio",
			FileName:    name,
			ContentType: req.Audio.ContentType,
			Data:        req.Audio.Data,
		}},
	}
}

// DeviceParam maps a device to the server's device field. Accelerated
// lets the server choose its GPU.
func DeviceParam(d transcription.Device) string {
	if d == transcription.DeviceCPU {
		return "cpu"
	}
	return "auto"
}

// Response is the JSON body of POST /transcribe.
type Response struct {
	Text     string            `json:"text"`
	Segments []ResponseSegment `json:"segments"`
	Language string            `json:"language"`
	Device   string            `json:"device,omitempty"`
	Timing   struct {
		LoadMS       float64 `json:"load_ms"`
		TranscribeMS float64 `json:"transcribe_ms"`
		AlignMS      float64 `json:"align_ms"`
		DiarizeMS    float64 `json:"diarize_ms"`
	} `json:"timing"`
}

// ResponseSegment is one segment as the services encode it.
type ResponseSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// Segment converts to the canonical segment.
func (s ResponseSegment) Segment() transcription.Segment {
	return transcription.Segment{Start: s.Start, End: s.End, Speaker: s.Speaker, Text: s.Text}
}

// DecodeResult parses a /transcribe response body.
func DecodeResult(body []byte) (*transcription.Result, error) {
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	segments := make([]transcription.Segment, len(r.Segments))
	for i, seg := range r.Segments {
		segments[i] = seg.Segment()
	}
	return &transcription.Result{
		Text:     r.Text,
		Segments: segments,
		Language: r.Language,
		Device:   transcription.ParseDevice(r.Device),
		Timing: transcription.Timing{
			LoadMS:       int64(r.Timing.LoadMS),
			TranscribeMS: int64(r.Timing.TranscribeMS),
			AlignMS:      int64(r.Timing.AlignMS),
			DiarizeMS:    int64(r.Timing.DiarizeMS),
		},
	}, nil
}
