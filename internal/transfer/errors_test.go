package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"
)

// TestNetworkError_Error verifies error message formatting
func TestNetworkError_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        *NetworkError
		wantFormat string
	}{
		{
			name: "with HTTP status code",
			err: &NetworkError{
				Operation:  "save",
				StatusCode: 503,
				APIMessage: "service unavailable",
			},
			wantFormat: "network error during save (HTTP 503): service unavailable",
		},
		{
			name: "without HTTP status code",
			err: &NetworkError{
				Operation:  "save",
				StatusCode: 0,
				APIMessage: "connection timeout",
			},
			wantFormat: "network error during save: connection timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantFormat {
				t.Errorf("Error() = %q, want %q", got, tt.wantFormat)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &NotFoundError{Resource: "lezione-03.mp4"}

	expected := "remote object not found: lezione-03.mp4"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestDirectoryError_Error verifies error message formatting
func TestDirectoryError_Error(t *testing.T) {
	err := &DirectoryError{
		DirectoryName: "Materiali",
		Reason:        "not writable",
	}

	expected := "directory error for 'Materiali': not writable"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestAuthenticationError_Error verifies error message formatting
func TestAuthenticationError_Error(t *testing.T) {
	err := &AuthenticationError{
		Operation: "list_materials",
	}

	expected := "authentication failed during list_materials"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestErrorTypes_Unwrap verifies error chain traversal
func TestErrorTypes_Unwrap(t *testing.T) {
	cause := errors.New("underlying cause")

	tests := []struct {
		name string
		err  error
	}{
		{"NetworkError", &NetworkError{Operation: "save", StatusCode: 500, APIMessage: "boom", Err: cause}},
		{"NotFoundError", &NotFoundError{Resource: "a.pdf", Err: cause}},
		{"DirectoryError", &DirectoryError{DirectoryName: "x", Reason: "denied", Err: cause}},
		{"AuthenticationError", &AuthenticationError{Operation: "save", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unwrapped := errors.Unwrap(tt.err); unwrapped != cause {
				t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
			}

			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, cause) {
				t.Error("errors.Is() should find cause in wrapped chain")
			}
		})
	}
}

// TestNetworkError_As verifies programmatic error type detection
func TestNetworkError_As(t *testing.T) {
	originalErr := &NetworkError{
		Operation:  "save",
		StatusCode: 503,
		APIMessage: "service unavailable",
	}

	wrapped := fmt.Errorf("context: %w", originalErr)

	var target *NetworkError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract NetworkError from wrapped chain")
	}

	if target.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want %d", target.StatusCode, 503)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("save: %w", &NotFoundError{Resource: "a.pdf"})) {
		t.Error("IsNotFound() should detect a wrapped NotFoundError")
	}

	if IsNotFound(errors.New("plain")) {
		t.Error("IsNotFound() should be false for unrelated errors")
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network error", &NetworkError{Operation: "save", StatusCode: 502}, true},
		{"wrapped network error", fmt.Errorf("save: %w", &NetworkError{Operation: "save"}), true},
		{"unexpected EOF", fmt.Errorf("copy: %w", io.ErrUnexpectedEOF), true},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutError{}}, true},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "didattica.example"}, true},
		{"not found", &NotFoundError{Resource: "a.pdf"}, false},
		{"not found wrapping network error", &NotFoundError{Resource: "a.pdf", Err: &NetworkError{StatusCode: 404}}, false},
		{"authentication", &AuthenticationError{Operation: "save"}, false},
		{"context canceled", fmt.Errorf("save: %w", context.Canceled), false},
		{"directory error", &DirectoryError{DirectoryName: "x", Reason: "denied"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
