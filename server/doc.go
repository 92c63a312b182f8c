// Package server provides the HTTP server for scribe using Gin with h2c
// support.
//
// # Middleware
//
// Built-in middleware (server/middleware), applied to every route:
//
//   - Recovery: Panic recovery with structured logging
//   - RequestID: Request ID generation and propagation
//   - CORS: Cross-origin resource sharing configuration
//   - BodySize: Request body size limits for audio uploads
//   - Logging: Request logging with duration tracking
//   - RateLimit: Optional per-client limit on /v1 routes
//
// # Endpoints
//
// Built-in endpoints (server/endpoint): /health, /info, /metrics.
package server
