package logger

import "time"

// Standard field key constants for structured logging.
const (
	FieldComponent = "component"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldCheck     = "check"
	FieldStatus    = "status"
	FieldReason    = "reason"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldPhase     = "phase"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("done", logger.Fields("op", "save", "id", 42))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for a component whose operation failed.
func ErrorFields(component string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldComponent: component,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(component string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldComponent: component,
		FieldDuration:  d.Milliseconds(),
	}
}
