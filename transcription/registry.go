package transcription

import "github.com/kbukum/scribe/provider"

// NewRegistry creates a registry of batch backends keyed by BackendKind.
func NewRegistry() *provider.Registry[Backend] {
	return provider.NewRegistry[Backend]()
}

// Register stores b under its kind.
func Register(reg *provider.Registry[Backend], b Backend) {
	reg.Set(string(b.Kind()), b)
}

// Lookup returns the backend registered for kind.
func Lookup(reg *provider.Registry[Backend], kind BackendKind) (Backend, bool) {
	return reg.Get(string(kind))
}
