// internal/core/errors_test.go
package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_ErrorWithCause(t *testing.T) {
	err := WrapError(ErrInvalidInput, errors.New("spread: zero date at index 3"))
	want := "[INVALID_INPUT] invalid input series: spread: zero date at index 3"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrEmptyData, ErrEmptyData) {
		t.Error("same error should match")
	}
	if errors.Is(ErrEmptyData, ErrInvalidInput) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrConfigInvalid, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrConfigInvalid.Code {
		t.Error("code not preserved")
	}

	// Still matches by code through an fmt wrapping layer.
	outer := fmt.Errorf("loading: %w", wrapped)
	if !errors.Is(outer, ErrConfigInvalid) {
		t.Error("expected errors.Is to match through fmt wrapping")
	}
}
