// Package llm defines the provider-agnostic chat completion types used for
// transcript enhancement.
//
// Providers live in sub-packages:
//   - llm/ollama talks to a local Ollama server over its native /api/chat API.
//   - llm/openai talks to any OpenAI-compatible chat completion endpoint.
//
// Both implement [Provider] and can be registered in a [NewRegistry] by
// their Factory functions.
package llm
