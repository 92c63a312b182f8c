// Package openai implements llm.Provider for OpenAI-compatible chat
// completion APIs. Calls are retried on rate limiting and server errors and
// guarded by a circuit breaker.
package openai
