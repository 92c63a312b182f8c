package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kbukum/scribe/llm"
	"github.com/kbukum/scribe/provider"
	"github.com/kbukum/scribe/resilience"
)

const (
	// ProviderName is the registered name for the OpenAI provider.
	ProviderName = "openai"

	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// ErrNoAPIKey is returned by NewProvider without a key.
var ErrNoAPIKey = errors.New("openai: api key is required")

// Config holds configuration for the OpenAI-compatible provider.
type Config struct {
	APIKey string `yaml:"-" mapstructure:"-"`
	// BaseURL targets an OpenAI-compatible endpoint. Empty uses api.openai.com.
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Retry defaults to resilience.DefaultRetryConfig restricted to
	// rate-limit and server errors.
	Retry *resilience.RetryConfig `yaml:"-" mapstructure:"-"`
	// MaxFailures opens the circuit after that many consecutive failed
	// calls. Defaults to 5.
	MaxFailures int `yaml:"max_failures" mapstructure:"max_failures"`
}

// Provider implements llm.Provider on the chat completions API.
type Provider struct {
	cfg     Config
	client  *goopenai.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewProvider creates a provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	retry := resilience.DefaultRetryConfig()
	retry.RetryIf = IsRetryable
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &Provider{
		cfg:    cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
		retry:  retry,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        ProviderName,
			MaxFailures: cfg.MaxFailures,
			Timeout:     30 * time.Second,
			IsFailure:   func(err error) bool { return err != nil && !errors.Is(err, context.Canceled) },
		}),
	}, nil
}

// Factory returns a provider.Factory that creates OpenAI Provider instances
// from a generic config map.
func Factory() provider.Factory[llm.Provider] {
	return func(cfg map[string]any) (llm.Provider, error) {
		oc := Config{}
		if v, ok := cfg["api_key"].(string); ok {
			oc.APIKey = v
		}
		if v, ok := cfg["base_url"].(string); ok {
			oc.BaseURL = v
		}
		if v, ok := cfg["model"].(string); ok {
			oc.Model = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			oc.Timeout = v
		}
		return NewProvider(oc)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the circuit admits calls. It never touches
// the network.
func (p *Provider) IsAvailable(context.Context) bool {
	return p.breaker.State() != resilience.StateOpen
}

// Complete sends a chat completion request.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	temp := p.cfg.Temperature
	if req.Temperature != 0 {
		temp = req.Temperature
	}
	conv := req.Conversation()
	msgs := make([]goopenai.ChatCompletionMessage, len(conv))
	for i, m := range conv {
		msgs[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	chatReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(temp),
		MaxTokens:   req.MaxTokens,
	}

	var resp goopenai.ChatCompletionResponse
	err := p.breaker.Execute(func() error {
		var err error
		resp, err = resilience.Retry(ctx, p.retry, func() (goopenai.ChatCompletionResponse, error) {
			return p.client.CreateChatCompletion(ctx, chatReq)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("openai complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai complete: no choices returned")
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// StatusCode extracts the HTTP status of a go-openai error, or 0.
func StatusCode(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// IsRetryable accepts rate limiting and server errors.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
