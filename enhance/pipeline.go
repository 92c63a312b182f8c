package enhance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/scribe/credential"
	"github.com/kbukum/scribe/engine"
	"github.com/kbukum/scribe/llm"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/transcription"
)

const (
	DefaultMaxChars      = 12000
	DefaultLocalTimeout  = 3 * time.Minute
	DefaultCloudTimeout  = 60 * time.Second
	DefaultCloudProvider = "openai"
)

// NoLocalModel disables the local tier.
const NoLocalModel = "none"

var errEmptyTitle = errors.New("model returned an empty title")

// Config tunes the tiers.
type Config struct {
	// MaxChars is the rune budget of transcript text sent to the local model.
	MaxChars int `yaml:"max_chars" mapstructure:"max_chars"`
	// LocalTimeout bounds both local calls together.
	LocalTimeout time.Duration `yaml:"local_timeout" mapstructure:"local_timeout"`
	CloudTimeout time.Duration `yaml:"cloud_timeout" mapstructure:"cloud_timeout"`
	// CloudProvider is the credential name the cloud tier needs.
	CloudProvider string `yaml:"cloud_provider" mapstructure:"cloud_provider"`
	// CacheTTL is how long cached enhancements live. Zero keeps them.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.LocalTimeout <= 0 {
		c.LocalTimeout = DefaultLocalTimeout
	}
	if c.CloudTimeout <= 0 {
		c.CloudTimeout = DefaultCloudTimeout
	}
	if c.CloudProvider == "" {
		c.CloudProvider = DefaultCloudProvider
	}
}

// CloudFactory builds the cloud semantic model for an API key.
type CloudFactory func(apiKey string) (llm.Provider, error)

// Cache stores finished enhancements. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Enhancement, error)
	Put(ctx context.Context, key string, e Enhancement, ttl time.Duration) error
}

// Pipeline produces a title and summary through three tiers: a local
// model, a cloud semantic model, and deterministic rules. Each tier runs
// only when the previous one is unavailable or fails.
type Pipeline struct {
	cfg     Config
	local   llm.Provider
	cloud   CloudFactory
	creds   *credential.Resolver
	cache   Cache
	metrics *observability.Metrics
	log     *logger.Logger

	mu          sync.Mutex
	cloudKey    string
	cloudClient llm.Provider
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLocal enables the local tier.
func WithLocal(p llm.Provider) Option { return func(pl *Pipeline) { pl.local = p } }

// WithCloud enables the cloud tier. It runs only when creds resolve the
// configured cloud provider.
func WithCloud(f CloudFactory, creds *credential.Resolver) Option {
	return func(pl *Pipeline) {
		pl.cloud = f
		pl.creds = creds
	}
}

// WithCache reuses enhancements of identical transcripts.
func WithCache(c Cache) Option { return func(pl *Pipeline) { pl.cache = c } }

// WithMetrics records the producing tier.
func WithMetrics(m *observability.Metrics) Option { return func(pl *Pipeline) { pl.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(pl *Pipeline) { pl.log = l } }

// New creates a Pipeline. Without options only the rule-based tier runs.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.ApplyDefaults()
	p := &Pipeline{cfg: cfg, log: logger.WithComponent("enhance")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enhance titles and summarizes text. Tier failures are logged and never
// returned; the only error is cancellation through ctx or h. The returned
// title is at most MaxTitleRunes runes and has no newline.
func (p *Pipeline) Enhance(ctx context.Context, h *engine.OperationHandle, text string, prompts Prompts, localModel string) (Enhancement, error) {
	ctx, release := h.Bind(ctx)
	defer release()
	if err := ctx.Err(); err != nil {
		return Enhancement{}, transcription.Cancelled(context.Cause(ctx))
	}

	prompts = prompts.withDefaults()
	localModel = strings.TrimSpace(localModel)
	log := p.log.WithContext(ctx)
	key := CacheKey(text, localModel, prompts)

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("enhancement cache read failed", logger.Fields(logger.FieldError, err.Error()))
		case cached != nil:
			log.Debug("enhancement cache hit", logger.Fields(logger.FieldTier, cached.Source))
			h.Report(100)
			return *cached, nil
		}
	}
	h.Report(5)

	if strings.TrimSpace(text) == "" {
		return p.done(ctx, h, "", RuleBased(text)), nil
	}

	if p.localEnabled(localModel) {
		e, err := p.tier(ctx, SourceLocalLLM, func(ctx context.Context) (Enhancement, error) {
			return p.runLocal(ctx, h, text, prompts, localModel)
		})
		if err == nil {
			return p.done(ctx, h, key, e), nil
		}
		if ctx.Err() != nil {
			return Enhancement{}, transcription.Cancelled(context.Cause(ctx))
		}
		log.Warn("local enhancement failed, falling back", logger.Fields(
			logger.FieldModel, localModel,
			logger.FieldError, err.Error(),
		))
	}
	h.Report(60)

	if apiKey, ok := p.cloudCredential(ctx); ok {
		e, err := p.tier(ctx, SourceCloudSemantic, func(ctx context.Context) (Enhancement, error) {
			return p.runCloud(ctx, apiKey, text, prompts)
		})
		if err == nil {
			return p.done(ctx, h, key, e), nil
		}
		if ctx.Err() != nil {
			return Enhancement{}, transcription.Cancelled(context.Cause(ctx))
		}
		log.Warn("cloud enhancement failed, falling back", logger.Fields(logger.FieldError, err.Error()))
	}
	h.Report(90)

	_, span := observability.StartSpan(ctx, observability.SpanEnhanceTier,
		attribute.String(observability.AttrTier, string(SourceRuleBased)))
	e := RuleBased(text)
	observability.EndSpan(span, nil)
	return p.done(ctx, h, "", e), nil
}

func (p *Pipeline) localEnabled(model string) bool {
	return p.local != nil && model != "" && !strings.EqualFold(model, NoLocalModel)
}

func (p *Pipeline) cloudCredential(ctx context.Context) (string, bool) {
	if p.cloud == nil {
		return "", false
	}
	return p.creds.Resolve(ctx, p.cfg.CloudProvider)
}

func (p *Pipeline) tier(ctx context.Context, source Source, fn func(context.Context) (Enhancement, error)) (e Enhancement, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanEnhanceTier,
		attribute.String(observability.AttrTier, string(source)))
	defer func() { observability.EndSpan(span, err) }()
	return fn(ctx)
}

// runLocal makes the title and summary calls sequentially under one
// timeout.
func (p *Pipeline) runLocal(ctx context.Context, h *engine.OperationHandle, text string, prompts Prompts, model string) (Enhancement, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.LocalTimeout)
	defer cancel()

	input := truncateRunes(text, p.cfg.MaxChars)
	rawTitle, err := p.ask(ctx, p.local, model, prompts.Title, input)
	if err != nil {
		return Enhancement{}, err
	}
	title := NormalizeTitle(rawTitle)
	if title == "" {
		return Enhancement{}, errEmptyTitle
	}
	h.Report(35)

	summary, err := p.ask(ctx, p.local, model, prompts.Summary, input)
	if err != nil {
		return Enhancement{}, err
	}
	return Enhancement{Title: title, Summary: summary, Source: SourceLocalLLM}, nil
}

func (p *Pipeline) runCloud(ctx context.Context, apiKey, text string, prompts Prompts) (Enhancement, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CloudTimeout)
	defer cancel()

	client, err := p.cloudClientFor(apiKey)
	if err != nil {
		return Enhancement{}, err
	}
	reply, err := p.ask(ctx, client, "", prompts.Semantic, truncateRunes(text, p.cfg.MaxChars))
	if err != nil {
		return Enhancement{}, err
	}
	title, summary, ok := parseSemantic(reply)
	if !ok {
		return Enhancement{}, errors.New("reply did not match TITLE:/SUMMARY: format")
	}
	return Enhancement{Title: title, Summary: summary, Source: SourceCloudSemantic}, nil
}

// cloudClientFor reuses the client while the key is unchanged so its
// circuit breaker state survives between calls.
func (p *Pipeline) cloudClientFor(apiKey string) (llm.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cloudClient != nil && p.cloudKey == apiKey {
		return p.cloudClient, nil
	}
	client, err := p.cloud(apiKey)
	if err != nil {
		return nil, err
	}
	p.cloudKey, p.cloudClient = apiKey, client
	return client, nil
}

func (p *Pipeline) ask(ctx context.Context, prov llm.Provider, model, system, text string) (string, error) {
	resp, err := prov.Complete(ctx, llm.CompletionRequest{
		Model:        model,
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// done records the result and caches model-produced enhancements under
// key. Rule-based results are not cached so a recovered model tier is
// used next time.
func (p *Pipeline) done(ctx context.Context, h *engine.OperationHandle, key string, e Enhancement) Enhancement {
	e.Title = NormalizeTitle(e.Title)
	if e.Title == "" {
		e.Title = UntitledTitle
	}
	if p.cache != nil && key != "" && e.Source != SourceRuleBased {
		if err := p.cache.Put(ctx, key, e, p.cfg.CacheTTL); err != nil {
			p.log.Warn("enhancement cache write failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	p.metrics.RecordEnhancement(ctx, string(e.Source))
	p.log.Info("enhancement complete", logger.Fields(logger.FieldTier, e.Source))
	h.Report(100)
	return e
}

// CacheKey identifies an enhancement by transcript text, local model and
// prompts.
func CacheKey(text, localModel string, prompts Prompts) string {
	sum := sha256.New()
	for _, part := range []string{localModel, prompts.Title, prompts.Summary, prompts.Semantic, text} {
		sum.Write([]byte(part))
		sum.Write([]byte{0})
	}
	return hex.EncodeToString(sum.Sum(nil))
}
