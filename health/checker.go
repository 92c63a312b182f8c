package health

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/scribe/httpclient"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/provider"
	"github.com/kbukum/scribe/transcription"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 2500 * time.Millisecond

// Endpoint identifies a backend to probe. Network sidecars set URL;
// in-process and cloud backends set Local and are answered without I/O
// beyond the provider's own check.
type Endpoint struct {
	Kind  transcription.BackendKind
	URL   string
	Local provider.Provider
}

// Body is the tolerant shape of a sidecar's /health response.
type Body struct {
	Status      string   `json:"status"`
	Diarization *bool    `json:"diarization"`
	Device      string   `json:"device"`
	Models      []string `json:"models"`
}

// Checker probes backends. It never returns errors: failures become
// unavailable descriptors.
type Checker struct {
	timeout time.Duration
	log     *logger.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout overrides the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Checker) { c.log = l }
}

// NewChecker creates a Checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{timeout: DefaultTimeout, log: logger.WithComponent("health")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe reports the current availability of one backend.
func (c *Checker) Probe(ctx context.Context, ep Endpoint) transcription.BackendDescriptor {
	start := time.Now()
	var d transcription.BackendDescriptor
	if ep.Local != nil {
		d = c.probeLocal(ctx, ep)
	} else {
		d = c.probeRemote(ctx, ep)
	}
	d.LatencyMS = time.Since(start).Milliseconds()

	c.log.Debug("backend probed", logger.Fields(
		logger.FieldBackend, ep.Kind,
		logger.FieldEndpoint, ep.URL,
		"available", d.Available,
		"diarization", d.SupportsDiarization,
		logger.FieldDevice, d.ExecutionDevice,
		"reason", d.Reason,
		logger.FieldDuration, d.LatencyMS,
	))
	return d
}

// ProbeAll probes every endpoint concurrently and returns descriptors in
// input order.
func (c *Checker) ProbeAll(ctx context.Context, eps []Endpoint) []transcription.BackendDescriptor {
	out := make([]transcription.BackendDescriptor, len(eps))
	var wg sync.WaitGroup
	for i, ep := range eps {
		wg.Go(func() {
			out[i] = c.Probe(ctx, ep)
		})
	}
	wg.Wait()
	return out
}

func (c *Checker) probeLocal(ctx context.Context, ep Endpoint) transcription.BackendDescriptor {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	d := transcription.BackendDescriptor{Kind: ep.Kind, Endpoint: ep.Local.Name()}
	d.Available = ep.Local.IsAvailable(ctx)
	if !d.Available {
		d.Reason = "not configured"
	}
	return d
}

func (c *Checker) probeRemote(ctx context.Context, ep Endpoint) transcription.BackendDescriptor {
	d := transcription.BackendDescriptor{Kind: ep.Kind, Endpoint: ep.URL}
	if ep.URL == "" {
		d.Reason = "no endpoint configured"
		return d
	}

	client, err := httpclient.New(httpclient.Config{BaseURL: ep.URL, Timeout: c.timeout})
	if err != nil {
		d.Reason = err.Error()
		return d
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	if err != nil {
		d.Reason = unavailableReason(err)
		return d
	}

	body := ParseBody(resp.Body)
	if !healthyStatus(body.Status) {
		d.Reason = "status " + body.Status
		return d
	}

	d.Available = true
	d.ExecutionDevice = body.Device
	d.Models = body.Models
	if body.Diarization != nil {
		d.SupportsDiarization = *body.Diarization
	} else {
		// The aligned service diarizes unless it says otherwise.
		d.SupportsDiarization = ep.Kind == transcription.KindAligned
	}
	return d
}

// ParseBody decodes a health body. Malformed or empty bodies yield the
// zero Body.
func ParseBody(raw []byte) Body {
	var b Body
	if len(raw) == 0 {
		return b
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return Body{}
	}
	return b
}

func healthyStatus(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ok", "healthy", "ready", "up":
		return true
	default:
		return false
	}
}

func unavailableReason(err error) string {
	switch {
	case httpclient.IsTimeout(err):
		return "timed out"
	case httpclient.IsConnection(err):
		return "connection refused"
	default:
		if hErr, ok := httpclient.AsError(err); ok && hErr.StatusCode > 0 {
			return "status " + http.StatusText(hErr.StatusCode)
		}
		return err.Error()
	}
}
