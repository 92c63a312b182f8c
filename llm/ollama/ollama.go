package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/scribe/httpclient"
	"github.com/kbukum/scribe/llm"
	"github.com/kbukum/scribe/provider"
)

const (
	// ProviderName is the registered name for the Ollama provider.
	ProviderName = "ollama"

	defaultOllamaURL = "http://localhost:11434"
	defaultTimeout   = 180 * time.Second
)

// Config holds configuration for the Ollama provider.
type Config struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Provider implements llm.Provider using Ollama's HTTP API.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

// NewProvider creates a new Ollama LLM provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Factory returns a provider.Factory that creates Ollama Provider instances
// from a generic config map.
func Factory() provider.Factory[llm.Provider] {
	return func(cfg map[string]any) (llm.Provider, error) {
		oc := Config{}
		if v, ok := cfg["base_url"].(string); ok {
			oc.BaseURL = v
		}
		if v, ok := cfg["model"].(string); ok {
			oc.Model = v
		}
		if v, ok := cfg["temperature"].(float64); ok {
			oc.Temperature = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			oc.Timeout = v
		}
		return NewProvider(oc)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Ollama server is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/api/tags"})
	return err == nil
}

// Models lists the locally pulled models.
func (p *Provider) Models(ctx context.Context) ([]string, error) {
	resp, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/api/tags"})
	if err != nil {
		return nil, fmt.Errorf("ollama tags: %w", err)
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(resp.Body, &tags); err != nil {
		return nil, fmt.Errorf("ollama tags: decode response: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Complete sends a completion request and returns the full response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/api/chat",
		Body:   p.buildChatRequest(req),
	})
	if err != nil {
		return nil, fmt.Errorf("ollama complete: %w", err)
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("ollama complete: decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama complete: %s", out.Error)
	}
	return &llm.CompletionResponse{
		Content: out.Message.Content,
		Model:   out.Model,
		Usage: llm.Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

// --- internal Ollama API types ---

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options,omitzero"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string      `json:"model"`
	Message         llm.Message `json:"message"`
	Done            bool        `json:"done"`
	Error           string      `json:"error,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

func (p *Provider) buildChatRequest(req llm.CompletionRequest) ollamaChatRequest {
	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	temp := p.cfg.Temperature
	if req.Temperature != 0 {
		temp = req.Temperature
	}
	return ollamaChatRequest{
		Model:    model,
		Messages: req.Conversation(),
		Options:  ollamaOptions{Temperature: temp, NumPredict: req.MaxTokens},
	}
}
