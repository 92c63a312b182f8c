package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kbukum/scribe/credential"
	"github.com/kbukum/scribe/httpclient"
	"github.com/kbukum/scribe/resilience"
	"github.com/kbukum/scribe/transcription"
)

const (
	// ProviderName is the credential provider and registered name.
	ProviderName = "openai"

	defaultTimeout = 10 * time.Minute
	defaultRate    = 1.0
	defaultBurst   = 3
)

// Config holds configuration for the cloud transcription API.
type Config struct {
	// BaseURL overrides the API endpoint for OpenAI-compatible services.
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// Rate limits requests per second across all callers.
	Rate  float64 `json:"rate" yaml:"rate" mapstructure:"rate"`
	Burst int     `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// Provider transcribes through an OpenAI-compatible audio API. The API key
// arrives with each request; clients are cached per key.
type Provider struct {
	cfg     Config
	creds   *credential.Resolver
	limiter *resilience.RateLimiter

	mu      sync.Mutex
	clients map[string]*goopenai.Client
}

var _ transcription.Backend = (*Provider)(nil)

// NewProvider creates a cloud provider. creds answers availability.
func NewProvider(cfg Config, creds *credential.Resolver) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Rate <= 0 {
		cfg.Rate = defaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	return &Provider{
		cfg:     cfg,
		creds:   creds,
		limiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "cloud-transcription", Rate: cfg.Rate, Burst: cfg.Burst}),
		clients: make(map[string]*goopenai.Client),
	}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Kind() transcription.BackendKind { return transcription.KindCloud }

// IsAvailable reports whether a credential resolves.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.creds.Has(ctx, ProviderName)
}

// Transcribe uploads the audio. whisper-1 returns verbose JSON with
// segments; the gpt-4o models only return text.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	if req.Credential == "" {
		return nil, transcription.CredentialMissing(ProviderName)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	name := req.Audio.FileName
	if name == "" {
		name = "audio.wav"
	}
	areq := goopenai.AudioRequest{
		Model:    string(req.Model),
		Reader:   bytes.NewReader(req.Audio.Data),
		FilePath: name,
		Language: req.Options.Language,
		Format:   goopenai.AudioResponseFormatJSON,
	}
	if string(req.Model) == goopenai.Whisper1 {
		areq.Format = goopenai.AudioResponseFormatVerboseJSON
		areq.TimestampGranularities = []goopenai.TranscriptionTimestampGranularity{
			goopenai.TranscriptionTimestampGranularitySegment,
		}
	}

	resp, err := p.client(req.Credential).CreateTranscription(ctx, areq)
	if err != nil {
		return nil, mapError(err)
	}

	segments := make([]transcription.Segment, len(resp.Segments))
	for i, s := range resp.Segments {
		segments[i] = transcription.Segment{Start: s.Start, End: s.End, Text: s.Text}
	}
	return &transcription.Result{
		Text:     resp.Text,
		Segments: segments,
		Language: resp.Language,
	}, nil
}

func (p *Provider) client(apiKey string) *goopenai.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[apiKey]; ok {
		return c
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if p.cfg.BaseURL != "" {
		cfg.BaseURL = p.cfg.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: p.cfg.Timeout}
	c := goopenai.NewClientWithConfig(cfg)
	p.clients[apiKey] = c
	return c
}

// mapError converts go-openai errors into the module's httpclient error so
// transcription.Classify treats cloud and sidecar failures alike.
func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if e := httpclient.ClassifyStatusCode(apiErr.HTTPStatusCode, []byte(apiErr.Message)); e != nil {
			return e
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if e := httpclient.ClassifyStatusCode(reqErr.HTTPStatusCode, reqErr.Body); e != nil {
			return e
		}
	}
	return fmt.Errorf("cloud transcription: %w", err)
}
