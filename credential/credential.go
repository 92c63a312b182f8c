package credential

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/transcription"
)

// Store looks up a provider's secret. Absence is ("", false, nil).
type Store interface {
	Lookup(ctx context.Context, provider string) (string, bool, error)
}

// WritableStore persists secrets.
type WritableStore interface {
	Store
	Set(ctx context.Context, provider, secret string) error
	Delete(ctx context.Context, provider string) error
	List(ctx context.Context) ([]string, error)
}

// EnvVar returns the environment variable holding a provider's key, e.g.
// OPENAI_API_KEY.
func EnvVar(provider string) string {
	p := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(provider))
	return p + "_API_KEY"
}

// EnvSource reads <PROVIDER>_API_KEY from the environment.
type EnvSource struct {
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Lookup implements Store.
func (e EnvSource) Lookup(_ context.Context, provider string) (string, bool, error) {
	get := e.Getenv
	if get == nil {
		get = os.Getenv
	}
	v := cleanEnvValue(get(EnvVar(provider)))
	return v, v != "", nil
}

// cleanEnvValue trims whitespace and one pair of matching surrounding
// quotes, which .env files often leave in place.
func cleanEnvValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}

// Mask hides all but the first visible characters of a secret for display.
// Secrets no longer than visible are fully masked.
func Mask(secret string, visible int) string {
	if len(secret) <= visible {
		return "***"
	}
	return secret[:visible] + "***"
}

// MemoryStore keeps secrets in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (m *MemoryStore) Lookup(_ context.Context, provider string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.secrets[provider]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, provider, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[provider] = secret
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, provider)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.secrets))
	for p := range m.secrets {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Resolver consults its sources in order. A failing source is logged and
// skipped.
type Resolver struct {
	sources []Store
	log     *logger.Logger
}

// NewResolver creates a resolver over sources, highest priority first.
func NewResolver(sources ...Store) *Resolver {
	return &Resolver{sources: sources, log: logger.WithComponent("credential")}
}

// Resolve returns the first secret found for provider.
func (r *Resolver) Resolve(ctx context.Context, provider string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, s := range r.sources {
		v, ok, err := s.Lookup(ctx, provider)
		if err != nil {
			r.log.Warn("credential source failed", logger.Fields("provider", provider, logger.FieldError, err.Error()))
			continue
		}
		if ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Require resolves provider or returns a CredentialMissing error.
func (r *Resolver) Require(ctx context.Context, provider string) (string, error) {
	if v, ok := r.Resolve(ctx, provider); ok {
		return v, nil
	}
	return "", transcription.CredentialMissing(provider)
}

// Has reports whether a secret resolves for provider.
func (r *Resolver) Has(ctx context.Context, provider string) bool {
	_, ok := r.Resolve(ctx, provider)
	return ok
}
