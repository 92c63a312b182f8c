// Package cloud transcribes through an OpenAI-compatible audio API. Models
// tagged cloud-semantic route here when a credential resolves.
package cloud
