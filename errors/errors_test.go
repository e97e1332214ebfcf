package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New(t *testing.T) {
	err := New(ErrCodeNotFound, "not found")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
	if !New(ErrCodeTimeout, "slow").Retryable {
		t.Error("TIMEOUT should be retryable")
	}
}

func TestAppError_NotFound(t *testing.T) {
	err := NotFound("extension", "*health.Tracker")
	if err.Details["resource"] != "extension" {
		t.Errorf("expected resource=extension, got %v", err.Details["resource"])
	}
	if err.Details["id"] != "*health.Tracker" {
		t.Errorf("expected id detail, got %v", err.Details["id"])
	}
	if _, ok := NotFound("extension", "").Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := InvalidInput("project", "must not be empty")
	if got := err.Error(); got != "INVALID_INPUT: invalid input: must not be empty" {
		t.Errorf("unexpected error string %q", got)
	}

	cause := fmt.Errorf("dial tcp: refused")
	wrapped := ConnectionFailed("consul", cause)
	if !strings.Contains(wrapped.Error(), "cause: dial tcp: refused") {
		t.Errorf("expected cause in error string, got %q", wrapped.Error())
	}
}

func TestAppError_Unwrap(t *testing.T) {
	sentinel := stderrors.New("sentinel")
	err := NotFound("extension", "int").WithCause(sentinel)
	if !stderrors.Is(err, sentinel) {
		t.Error("expected errors.Is to reach the cause")
	}
	wrapped := fmt.Errorf("lookup: %w", err)
	if !HasCode(wrapped, ErrCodeNotFound) {
		t.Error("expected HasCode to see through fmt wrapping")
	}
	if HasCode(wrapped, ErrCodeInternal) {
		t.Error("unexpected code match")
	}
}

func TestInvalidState(t *testing.T) {
	err := InvalidState("launch", "running")
	if err.Code != ErrCodeInvalidState {
		t.Errorf("expected INVALID_STATE, got %s", err.Code)
	}
	if err.Details["state"] != "running" {
		t.Errorf("expected state detail, got %v", err.Details["state"])
	}
}

func TestAsAppError(t *testing.T) {
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("plain error must not convert")
	}
	appErr, ok := AsAppError(fmt.Errorf("wrap: %w", Internal(nil)))
	if !ok || appErr.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %v", appErr)
	}
	if !IsAppError(MissingField("name")) {
		t.Error("expected IsAppError true")
	}
}
