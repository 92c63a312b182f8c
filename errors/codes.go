package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates a dependency is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a dependency.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the caller is rate limited.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Input errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Transcription and enhancement errors
const (
	// ErrCodeProbeUnavailable indicates a backend health probe failed.
	ErrCodeProbeUnavailable ErrorCode = "PROBE_UNAVAILABLE"
	// ErrCodeCredentialMissing indicates a required provider secret is absent.
	ErrCodeCredentialMissing ErrorCode = "CREDENTIAL_MISSING"
	// ErrCodeExecutionTransient indicates an accelerated runtime failure that
	// may succeed on the fallback compute device.
	ErrCodeExecutionTransient ErrorCode = "EXECUTION_TRANSIENT"
	// ErrCodeExecutionFatal indicates a failure that will not succeed on retry.
	ErrCodeExecutionFatal ErrorCode = "EXECUTION_FATAL"
	// ErrCodeCancelled indicates the operation was cancelled by its owner.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeServerRequired indicates the model only runs on the inference server.
	ErrCodeServerRequired ErrorCode = "SERVER_REQUIRED"
	// ErrCodeNoEligibleBackend indicates routing produced no candidate backend.
	ErrCodeNoEligibleBackend ErrorCode = "NO_ELIGIBLE_BACKEND"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a credential store failure.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeDatabaseError:      true,
	ErrCodeExternalService:    true,
	ErrCodeProbeUnavailable:   true,
	ErrCodeExecutionTransient: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
