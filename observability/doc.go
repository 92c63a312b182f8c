// Package observability wires OpenTelemetry tracing and metrics for the
// transcription path: spans around routing, attempts and enhancement
// tiers, and counters for attempts, fallbacks, hallucination flags and
// live chunks.
//
//	metrics, shutdown, err := observability.Setup(ctx, cfg)
//	defer shutdown(ctx)
package observability
