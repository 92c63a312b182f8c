package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/scribe/resilience"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Auth applies to every request unless the request overrides it.
	Auth    *AuthConfig       `yaml:"-" mapstructure:"-"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// Retry enables retries for Do. Nil disables them.
	Retry *resilience.RetryConfig `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return nil
}

// DefaultRetryConfig retries only errors IsRetryable accepts.
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf = IsRetryable
	return &cfg
}
