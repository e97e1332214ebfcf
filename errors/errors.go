package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified hostkit error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// NotFound creates an AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q was not found", resource, id),
		Details: details,
	}
}

// AlreadyExists creates an AppError for a resource that already exists.
func AlreadyExists(resource, id string) *AppError {
	return &AppError{
		Code:    ErrCodeAlreadyExists,
		Message: fmt.Sprintf("%s %q already exists", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// InvalidInput creates an AppError for an invalid setting.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates an AppError for a batch of validation failures.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// MissingField creates an AppError for a missing required setting.
func MissingField(field string) *AppError {
	return &AppError{
		Code:    ErrCodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Details: map[string]any{"field": field},
	}
}

// InvalidState creates an AppError for an operation attempted in the wrong state.
func InvalidState(operation, state string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("%s is not allowed in state %s", operation, state),
		Details: map[string]any{"operation": operation, "state": state},
	}
}

// ConnectionFailed creates an AppError for a failed call to an external collaborator.
func ConnectionFailed(service string, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeConnectionFailed,
		Message:   fmt.Sprintf("unable to reach %s", service),
		Retryable: true,
		Details:   map[string]any{"service": service},
		Cause:     cause,
	}
}

// Timeout creates an AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("%s timed out", operation),
		Retryable: true,
		Details:   map[string]any{"operation": operation},
	}
}

// Internal creates an AppError for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "an unexpected error occurred",
		Cause:   cause,
	}
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
