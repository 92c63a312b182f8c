package engine

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/hallucination"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/provider"
	"github.com/kbukum/scribe/router"
	"github.com/kbukum/scribe/session"
	"github.com/kbukum/scribe/transcription"
)

const (
	DefaultRemoteTimeout = 5 * time.Minute
	DefaultHeavyTimeout  = 15 * time.Minute
)

// Decoder turns encoded audio into mono 16 kHz PCM for in-process
// inference.
type Decoder interface {
	Decode(ctx context.Context, audio transcription.Audio) ([]float32, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, audio transcription.Audio) ([]float32, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(ctx context.Context, audio transcription.Audio) ([]float32, error) {
	return f(ctx, audio)
}

// LocalSession is a session able to run inference on decoded PCM.
type LocalSession interface {
	session.Session
	Infer(ctx context.Context, pcm []float32, opts transcription.Options) (*transcription.Result, error)
}

// Job is one transcription request.
type Job struct {
	Model   transcription.ModelID
	Audio   transcription.Audio
	Options transcription.Options
}

// Config sets per-class attempt timeouts.
type Config struct {
	// RemoteTimeout bounds aligned-service and cloud attempts, which are
	// health-gated before they start.
	RemoteTimeout time.Duration `yaml:"remote_timeout" mapstructure:"remote_timeout"`
	// HeavyTimeout bounds heavy-server and in-process attempts.
	HeavyTimeout time.Duration `yaml:"heavy_timeout" mapstructure:"heavy_timeout"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = DefaultRemoteTimeout
	}
	if c.HeavyTimeout <= 0 {
		c.HeavyTimeout = DefaultHeavyTimeout
	}
}

// TimeoutFor returns the attempt timeout for kind.
func (c Config) TimeoutFor(kind transcription.BackendKind) time.Duration {
	switch kind {
	case transcription.KindHeavy, transcription.KindLocal:
		return c.HeavyTimeout
	default:
		return c.RemoteTimeout
	}
}

// AttemptTimeout returns the bound on a single attempt against kind.
func (e *Engine) AttemptTimeout(kind transcription.BackendKind) time.Duration {
	return e.cfg.TimeoutFor(kind)
}

// Engine executes routing plans.
type Engine struct {
	backends *provider.Registry[transcription.Backend]
	sessions *session.Cache
	decoder  Decoder
	cfg      Config
	metrics  *observability.Metrics
	log      *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records attempt metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine. backends serves remote kinds; sessions and
// decoder serve in-process attempts.
func New(backends *provider.Registry[transcription.Backend], sessions *session.Cache, decoder Decoder, cfg Config, opts ...Option) *Engine {
	cfg.ApplyDefaults()
	e := &Engine{
		backends: backends,
		sessions: sessions,
		decoder:  decoder,
		cfg:      cfg,
		log:      logger.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs plan's attempts in order and returns the first successful
// transcript after normalization and hallucination filtering. h may be
// nil; when set, its cancellation stops execution and progress is
// reported on it.
func (e *Engine) Execute(ctx context.Context, h *OperationHandle, job Job, plan router.Plan) (*transcription.Transcript, error) {
	ctx, release := h.Bind(ctx)
	defer release()
	if err := ctx.Err(); err != nil {
		return nil, transcription.Cancelled(context.Cause(ctx))
	}

	model := job.Model.Canonical()
	if len(plan.Attempts) == 0 {
		return nil, transcription.NoEligibleBackend(model, job.Options.Diarize)
	}

	log := e.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldModel, model))
	var (
		failures []transcription.AttemptFailure
		lastErr  error
	)
	for i, a := range plan.Attempts {
		if err := ctx.Err(); err != nil {
			return nil, e.cancelled(log, context.Cause(ctx))
		}
		h.Report(5 + 90*i/len(plan.Attempts))

		res, device, attemptFailures, err := e.runAttempt(ctx, job, model, a)
		failures = append(failures, attemptFailures...)
		if err == nil {
			if res.Device == "" {
				res.Device = device
			}
			t := e.finish(ctx, res, a.Kind, model)
			h.Report(100)
			log.Info("transcription complete", logger.Fields(
				logger.FieldBackend, a.Kind,
				logger.FieldDevice, t.Device,
				"segments", len(t.Segments),
				"flagged", t.Flagged,
			))
			return t, nil
		}
		if transcription.IsCancelled(err) {
			return nil, e.cancelled(log, err)
		}
		lastErr = err
		if i+1 < len(plan.Attempts) {
			next := plan.Attempts[i+1].Kind
			e.metrics.RecordFallback(ctx, string(a.Kind), string(next))
			log.Warn("attempt failed, trying next backend", logger.Fields(
				logger.FieldBackend, a.Kind,
				"next", next,
				logger.FieldError, err.Error(),
			))
		}
	}

	err := transcription.AllAttemptsFailed(model, failures, lastErr)
	log.Error("all transcription attempts failed", logger.Fields(
		logger.FieldError, lastErr.Error(),
		"attempts", len(failures),
	))
	return nil, err
}

// cancelled logs at info: cancellation is not a failure.
func (e *Engine) cancelled(log *logger.Logger, err error) error {
	log.Info("transcription cancelled", logger.Fields("cause", fmt.Sprint(err)))
	if apperrors.HasCode(err, apperrors.ErrCodeCancelled) {
		return err
	}
	return transcription.Cancelled(err)
}

// finish normalizes and filters a successful result.
func (e *Engine) finish(ctx context.Context, res *transcription.Result, kind transcription.BackendKind, model transcription.ModelID) *transcription.Transcript {
	t, report := hallucination.CleanTranscript(transcription.Normalize(res, kind, model))
	if report.Removed > 0 {
		e.log.Debug("repeated sentences removed", logger.Fields(
			logger.FieldBackend, kind,
			"removed", report.Removed,
			"sentences", report.Sentences,
		))
	}
	if t.Flagged {
		e.metrics.RecordHallucination(ctx, string(kind))
		e.log.Warn("transcript rejected as repetitive", logger.Fields(
			logger.FieldBackend, kind,
			logger.FieldModel, model,
			"ratio", report.Ratio(),
		))
	}
	return t
}
