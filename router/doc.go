// Package router decides which transcription backends to try, and in
// which order, for a model and a diarization request. Every decision
// probes backend health afresh.
package router
