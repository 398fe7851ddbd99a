package errors

import (
	stderrs "errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(ErrorCodeJSON, "decode body")
	if err.Error() != "decode body" {
		t.Errorf("expected 'decode body', got %q", err.Error())
	}

	wrapped := Wrap(stderrs.New("eof"), ErrorCodeIO, "read file")
	if wrapped.Error() != "read file: eof" {
		t.Errorf("expected 'read file: eof', got %q", wrapped.Error())
	}

	var nilErr *Error
	if nilErr.Error() != "<nil>" {
		t.Errorf("expected '<nil>', got %q", nilErr.Error())
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"coded", New(ErrorCodeTooManyRequests, "slow down"), ErrorCodeTooManyRequests},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(ErrorCodeMalformed, "braces")), ErrorCodeMalformed},
		{"foreign", stderrs.New("plain"), ErrorCodeUnknown},
		{"nil", nil, ErrorCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRootAndUnwrap(t *testing.T) {
	base := stderrs.New("connection reset")
	err := Wrap(Wrap(base, ErrorCodeUnavailable, "get"), ErrorCodeUnknown, "page query")

	if Root(err) != base {
		t.Errorf("expected root to be base error, got %v", Root(err))
	}
	if !stderrs.Is(err, base) {
		t.Error("expected errors.Is to find base error")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(New(ErrorCodeTooManyRequests, "429")) {
		t.Error("expected 429 to be retryable")
	}
	if Retryable(New(ErrorCodeMalformed, "braces")) {
		t.Error("expected malformed markup not to be retryable")
	}
}

func TestCodeString(t *testing.T) {
	if ErrorCodeTooManyRequests.String() != "too_many_requests" {
		t.Errorf("unexpected label %q", ErrorCodeTooManyRequests.String())
	}
	if ErrorCode(999).String() != "code(999)" {
		t.Errorf("unexpected label %q", ErrorCode(999).String())
	}
}
