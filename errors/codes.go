package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeConnectionFailed indicates a failed connection to an external collaborator.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates an operation did not finish in time.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Lookup errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Configuration errors
const (
	// ErrCodeInvalidInput indicates a setting or argument is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required setting is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidState indicates an operation was called in the wrong lifecycle state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed: true,
	ErrCodeTimeout:          true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
