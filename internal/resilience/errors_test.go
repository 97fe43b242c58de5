package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("rate limited"), 429)
	if !IsTransient(err) {
		t.Error("TransientError should be transient")
	}

	wrapped := fmt.Errorf("fmp: fetch income statement: %w", err)
	if !IsTransient(wrapped) {
		t.Error("wrapped TransientError should be transient")
	}
}

func TestIsTransient_Syscall(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if !IsTransient(fmt.Errorf("dial: %w", errno)) {
			t.Errorf("%v should be transient", errno)
		}
	}
}

func TestIsTransient_MessagePatterns(t *testing.T) {
	transient := []string{
		"read tcp: connection reset by peer",
		"write: broken pipe",
		"lookup api.example.com: no such host",
		"net/http: TLS handshake timeout",
		"read: i/o timeout",
	}
	for _, msg := range transient {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("%q should be transient", msg)
		}
	}

	permanent := []string{
		"status 404: transcript not found",
		"status 401: invalid api key",
		"json: cannot unmarshal string",
	}
	for _, msg := range permanent {
		if IsTransient(errors.New(msg)) {
			t.Errorf("%q should not be transient", msg)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	base := errors.New("service unavailable")
	te := NewTransientError(base, 503)

	if !errors.Is(te, base) {
		t.Error("expected errors.Is to reach the wrapped error")
	}
	if te.Error() != "service unavailable" {
		t.Errorf("unexpected message: %q", te.Error())
	}
	if te.StatusCode != 503 {
		t.Errorf("unexpected status: %d", te.StatusCode)
	}
}
