package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kbukum/scribe/config"
	"github.com/kbukum/scribe/engine"
	"github.com/kbukum/scribe/enhance"
	"github.com/kbukum/scribe/llm/ollama"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/redis"
	"github.com/kbukum/scribe/server"
	"github.com/kbukum/scribe/transcription"
	"github.com/kbukum/scribe/transcription/aligned"
	"github.com/kbukum/scribe/transcription/cloud"
	"github.com/kbukum/scribe/transcription/onnx"
	"github.com/kbukum/scribe/transcription/whisper"
	"github.com/kbukum/scribe/validation"
)

const serviceName = "scribe"

// Config is the scribe configuration, loaded from scribe.yml, the
// environment (SCRIBE_ prefix optional), and .env.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Router        RouterConfig         `yaml:"router" mapstructure:"router"`
	Backends      BackendsConfig       `yaml:"backends" mapstructure:"backends"`
	Engine        engine.Config        `yaml:"engine" mapstructure:"engine"`
	Enhance       EnhanceConfig        `yaml:"enhance" mapstructure:"enhance"`
	Credentials   CredentialsConfig    `yaml:"credentials" mapstructure:"credentials"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Cache         redis.Config         `yaml:"cache" mapstructure:"cache"`
}

// RouterConfig selects the backends a caller may use.
type RouterConfig struct {
	// Capabilities lists enabled backend kinds. Empty enables all.
	Capabilities []string `yaml:"capabilities" mapstructure:"capabilities" validate:"dive,oneof=aligned_diarization heavy_server cloud_semantic in_process"`
	// DefaultModel is used when a request names none. Empty uses the
	// profiler's recommendation.
	DefaultModel string        `yaml:"default_model" mapstructure:"default_model"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	// CloudProvider is the credential name cloud transcription needs.
	CloudProvider string `yaml:"cloud_provider" mapstructure:"cloud_provider"`
}

// BackendsConfig configures each transcription backend.
type BackendsConfig struct {
	Aligned aligned.Config `yaml:"aligned" mapstructure:"aligned"`
	Whisper whisper.Config `yaml:"whisper" mapstructure:"whisper"`
	ONNX    onnx.Config    `yaml:"onnx" mapstructure:"onnx"`
	Cloud   cloud.Config   `yaml:"cloud" mapstructure:"cloud"`
}

// EnhanceConfig configures the enhancement tiers.
type EnhanceConfig struct {
	enhance.Config `yaml:",inline" mapstructure:",squash"`

	// LocalModel is the Ollama model; enhance.NoLocalModel disables the tier.
	LocalModel string          `yaml:"local_model" mapstructure:"local_model"`
	Ollama     ollama.Config   `yaml:"ollama" mapstructure:"ollama"`
	CloudModel string          `yaml:"cloud_model" mapstructure:"cloud_model"`
	CloudURL   string          `yaml:"cloud_url" mapstructure:"cloud_url" validate:"omitempty,url"`
	Prompts    enhance.Prompts `yaml:"prompts" mapstructure:"prompts"`
}

// CredentialsConfig locates the encrypted credential store.
type CredentialsConfig struct {
	// Path is the SQLite file. Empty uses <user config dir>/scribe/credentials.db.
	Path string `yaml:"path" mapstructure:"path"`
	// Passphrase derives the encryption key. Without it only the
	// environment is consulted.
	Passphrase string `yaml:"-" mapstructure:"passphrase"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Enhance.Config.ApplyDefaults()
	c.Cache.ApplyDefaults()

	if c.Router.ProbeTimeout <= 0 {
		c.Router.ProbeTimeout = 3 * time.Second
	}
	if c.Router.CloudProvider == "" {
		c.Router.CloudProvider = "openai"
	}
	if c.Enhance.LocalModel == "" {
		c.Enhance.LocalModel = "llama3.2"
	}
	if c.Credentials.Path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.Credentials.Path = filepath.Join(dir, serviceName, "credentials.db")
		}
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return validation.Validate(c)
}

// capabilities returns the enabled backend kinds, nil when all are.
func (r RouterConfig) capabilities() map[transcription.BackendKind]bool {
	if len(r.Capabilities) == 0 {
		return nil
	}
	caps := make(map[transcription.BackendKind]bool, len(r.Capabilities))
	for _, k := range r.Capabilities {
		caps[transcription.BackendKind(k)] = true
	}
	return caps
}

// loadConfig reads, defaults, and validates the configuration. path may
// be empty.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
