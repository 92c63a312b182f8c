// Package health probes transcription backends before each routing
// decision. Sidecars answer GET /health within a hard timeout; local
// backends answer through their provider's availability check.
package health
