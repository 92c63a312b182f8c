// Package errors provides unified error handling for scribe.
//
// Every failure that reaches a caller is an *AppError with a stable code.
// Transcription adds its own taxonomy (PROBE_UNAVAILABLE, CREDENTIAL_MISSING,
// EXECUTION_TRANSIENT, EXECUTION_FATAL, CANCELLED, SERVER_REQUIRED) so that the
// HTTP layer and the CLI can render a consistent, actionable message.
package errors
