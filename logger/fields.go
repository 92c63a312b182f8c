package logger

import "time"

// Standard field keys for structured logging.
const (
	FieldService     = "service"
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldOperationID = "operation_id"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldDuration    = "duration_ms"

	FieldModel    = "model"
	FieldBackend  = "backend"
	FieldDevice   = "device"
	FieldEndpoint = "endpoint"
	FieldAttempt  = "attempt"
	FieldSlot     = "slot"
	FieldTier     = "tier"
	FieldChunk    = "chunk"
)

// Fields builds a map from alternating key-value pairs.
//
//	log.Info("routed", logger.Fields("model", m, "attempts", n))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}
