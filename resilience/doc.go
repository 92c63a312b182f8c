// Package resilience provides the fault-tolerance primitives scribe composes
// around its backends.
//
//   - Bulkhead bounds concurrent live-chunk transcriptions.
//   - Retry retries cloud calls on rate limiting and server errors.
//   - CircuitBreaker skips a cloud enhancer that keeps failing.
//   - RateLimiter spaces out requests to cloud transcription.
package resilience
