package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeDuplicateID, "layer %q already registered", "A")

	if err.Code != ErrCodeDuplicateID {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeDuplicateID)
	}

	if err.Message != `layer "A" already registered` {
		t.Errorf("Message = %v", err.Message)
	}

	expected := `DUPLICATE_ID: layer "A" already registered`
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrCodeInternal, cause, "write raster")

	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInternal)
	}
	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeCyclicGraph, "test"),
			code:     ErrCodeCyclicGraph,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeCyclicGraph, "test"),
			code:     ErrCodeDuplicateID,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeUnresolvedSource, New(ErrCodeNotFound, "inner"), "outer"),
			code:     ErrCodeUnresolvedSource,
			expected: true,
		},
		{
			name:     "joined errors",
			err:      errors.Join(errors.New("plain"), New(ErrCodeUnknownNodeType, "x")),
			code:     ErrCodeUnknownNodeType,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeMissingKey, "test"), ErrCodeMissingKey},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Error type", New(ErrCodeInvalidInput, "friendly message"), "friendly message"},
		{"plain error", errors.New("plain error"), "plain error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(ErrCodeDuplicateID, "x"), 409},
		{New(ErrCodeNotFound, "x"), 404},
		{New(ErrCodeCyclicGraph, "x"), 400},
		{New(ErrCodeUnresolvedSource, "x"), 422},
		{errors.New("x"), 500},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
