package llm

import "github.com/kbukum/scribe/provider"

// NewRegistry creates a provider registry for LLM providers.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
