package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kbukum/scribe/audio"
	"github.com/kbukum/scribe/credential"
	"github.com/kbukum/scribe/credential/sqlstore"
	"github.com/kbukum/scribe/device"
	"github.com/kbukum/scribe/encryption"
	"github.com/kbukum/scribe/engine"
	"github.com/kbukum/scribe/enhance"
	"github.com/kbukum/scribe/enhance/rediscache"
	"github.com/kbukum/scribe/health"
	"github.com/kbukum/scribe/llm"
	"github.com/kbukum/scribe/llm/ollama"
	"github.com/kbukum/scribe/llm/openai"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/orchestrator"
	"github.com/kbukum/scribe/redis"
	"github.com/kbukum/scribe/router"
	"github.com/kbukum/scribe/session"
	"github.com/kbukum/scribe/transcription"
	"github.com/kbukum/scribe/transcription/aligned"
	"github.com/kbukum/scribe/transcription/cloud"
	"github.com/kbukum/scribe/transcription/onnx"
	"github.com/kbukum/scribe/transcription/whisper"
)

// app holds the wired components and their shutdown hooks.
type app struct {
	cfg     *Config
	log     *logger.Logger
	orch    *orchestrator.Orchestrator
	creds   *credential.Resolver
	store   *sqlstore.Store
	closers []func(context.Context) error
}

// openStore opens the encrypted credential store, or returns nil when no
// passphrase is configured.
func openStore(cfg CredentialsConfig, log *logger.Logger) (*sqlstore.Store, error) {
	if cfg.Passphrase == "" || cfg.Path == "" {
		return nil, nil
	}
	enc, err := encryption.New(cfg.Passphrase, encryption.WithInfo("scribe-credentials"))
	if err != nil {
		return nil, fmt.Errorf("credential encryption: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("credential store directory: %w", err)
	}
	return sqlstore.Open(cfg.Path, enc, log.WithComponent("credentials"))
}

// newResolver consults the environment first, then the store.
func newResolver(store *sqlstore.Store) *credential.Resolver {
	sources := []credential.Store{credential.EnvSource{}}
	if store != nil {
		sources = append(sources, store)
	}
	return credential.NewResolver(sources...)
}

func newApp(ctx context.Context, cfg *Config) (*app, error) {
	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()
	a := &app{cfg: cfg, log: log}

	metrics, shutdown, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	a.store, err = openStore(cfg.Credentials, log)
	if err != nil {
		return nil, errors.Join(err, a.close(ctx))
	}
	if a.store != nil {
		a.closers = append(a.closers, func(context.Context) error { return a.store.Close() })
	}
	a.creds = newResolver(a.store)

	backends := transcription.NewRegistry()
	alignedBackend, err := aligned.NewProvider(cfg.Backends.Aligned)
	if err != nil {
		return nil, errors.Join(err, a.close(ctx))
	}
	heavyBackend, err := whisper.NewProvider(cfg.Backends.Whisper)
	if err != nil {
		return nil, errors.Join(err, a.close(ctx))
	}
	cloudBackend := cloud.NewProvider(cfg.Backends.Cloud, a.creds)
	transcription.Register(backends, alignedBackend)
	transcription.Register(backends, heavyBackend)
	transcription.Register(backends, cloudBackend)

	runtime := onnx.New(cfg.Backends.ONNX, log.WithComponent("onnx"))
	sessions := session.NewCache(runtime, log.WithComponent("session"))
	a.closers = append(a.closers, func(context.Context) error { return sessions.Close() })

	profiler := device.NewProfiler(device.WithLogger(log.WithComponent("device")))
	checker := health.NewChecker(health.WithTimeout(cfg.Router.ProbeTimeout), health.WithLogger(log.WithComponent("health")))
	rt := router.New(checker, profiler, a.creds, router.Config{
		Endpoints: []health.Endpoint{
			{Kind: transcription.KindAligned, URL: alignedBackend.URL()},
			{Kind: transcription.KindHeavy, URL: heavyBackend.URL()},
			{Kind: transcription.KindCloud, Local: cloudBackend},
			{Kind: transcription.KindLocal, Local: runtime},
		},
		Capabilities:  router.Capabilities(cfg.Router.capabilities()),
		CloudProvider: cfg.Router.CloudProvider,
	})

	eng := engine.New(backends, sessions, engine.DecoderFunc(audio.Decode), cfg.Engine,
		engine.WithMetrics(metrics), engine.WithLogger(log.WithComponent("engine")))

	enhancer, err := a.newEnhancer(metrics)
	if err != nil {
		return nil, errors.Join(err, a.close(ctx))
	}

	a.orch = orchestrator.New(orchestrator.Deps{
		Profiler: profiler,
		Router:   rt,
		Engine:   eng,
		Enhancer: enhancer,
		Backends: backends,
		Metrics:  metrics,
		Logger:   log.WithComponent("orchestrator"),
	})
	return a, nil
}

func (a *app) newEnhancer(metrics *observability.Metrics) (*enhance.Pipeline, error) {
	cfg := a.cfg.Enhance
	models := llm.NewRegistry()
	models.RegisterFactory(ollama.ProviderName, ollama.Factory())
	models.RegisterFactory(openai.ProviderName, openai.Factory())

	opts := []enhance.Option{
		enhance.WithMetrics(metrics),
		enhance.WithLogger(a.log.WithComponent("enhance")),
		enhance.WithCloud(func(apiKey string) (llm.Provider, error) {
			return models.Create(openai.ProviderName, map[string]any{
				"api_key":  apiKey,
				"base_url": cfg.CloudURL,
				"model":    cfg.CloudModel,
				"timeout":  cfg.CloudTimeout,
			})
		}, a.creds),
	}
	if cfg.LocalModel != enhance.NoLocalModel {
		local, err := models.Create(ollama.ProviderName, map[string]any{
			"base_url":    cfg.Ollama.BaseURL,
			"model":       cfg.LocalModel,
			"temperature": cfg.Ollama.Temperature,
			"timeout":     cfg.Ollama.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("local model: %w", err)
		}
		opts = append(opts, enhance.WithLocal(local))
	}

	if a.cfg.Cache.Enabled {
		client, err := redis.New(a.cfg.Cache, a.log.WithComponent("redis"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		opts = append(opts, enhance.WithCache(rediscache.New(client)))
	} else {
		opts = append(opts, enhance.WithCache(enhance.NewMemoryCache()))
	}
	return enhance.New(cfg.Config, opts...), nil
}

// close runs shutdown hooks in reverse order.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
