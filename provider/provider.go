package provider

import "context"

// Provider is the base interface for every pluggable backend.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable reports whether the provider can take requests now.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider from loosely typed configuration.
type Factory[T Provider] func(cfg map[string]any) (T, error)
