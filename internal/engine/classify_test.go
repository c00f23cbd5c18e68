package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		retryable bool
	}{
		{
			name:      "watchdog expiry",
			err:       context.DeadlineExceeded,
			code:      CodeTimeout,
			retryable: true,
		},
		{
			name:      "wrapped deadline",
			err:       fmt.Errorf("submit: %w", context.DeadlineExceeded),
			code:      CodeTimeout,
			retryable: true,
		},
		{
			name:      "gateway timeout",
			err:       &StatusError{Status: 504},
			code:      CodeGatewayTimeout,
			retryable: true,
		},
		{
			name:      "unauthorized",
			err:       &StatusError{Status: 401},
			code:      CodeAuth,
			retryable: false,
		},
		{
			name:      "forbidden",
			err:       &StatusError{Status: 403},
			code:      CodeAuth,
			retryable: false,
		},
		{
			name:      "bad request",
			err:       &StatusError{Status: 400},
			code:      CodeValidation,
			retryable: false,
		},
		{
			name:      "server error",
			err:       &StatusError{Status: 500},
			code:      CodeUnknown,
			retryable: true,
		},
		{
			name:      "connectivity failure",
			err:       &url.Error{Op: "Post", URL: "http://example.com", Err: errors.New("connection refused")},
			code:      CodeNetwork,
			retryable: true,
		},
		{
			name:      "malformed body",
			err:       errors.New("decode generation payload: unexpected end of JSON input"),
			code:      CodeUnknown,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got == nil {
				t.Fatal("Classify returned nil")
			}
			if got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if got.Title == "" || got.Message == "" {
				t.Errorf("title/message must not be empty: %+v", got)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %+v, want nil", got)
	}
}

func TestClassifyUsesServerDetail(t *testing.T) {
	got := Classify(&StatusError{Status: 504, Detail: "model queue is full"})
	if got.Message != "model queue is full" {
		t.Errorf("message = %q, want server detail", got.Message)
	}

	got = Classify(&StatusError{Status: 504})
	if got.Message == "" {
		t.Error("expected fallback message for empty detail")
	}
}

func TestFieldErrorsError(t *testing.T) {
	fe := FieldErrors{"description": "required", "name": "too long"}
	want := "invalid input: description, name"
	if fe.Error() != want {
		t.Errorf("Error() = %q, want %q", fe.Error(), want)
	}
}
