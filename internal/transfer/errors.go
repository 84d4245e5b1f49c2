package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// NetworkError represents network failures and API errors including 5xx responses,
// connection timeouts, and rate limiting.
type NetworkError struct {
	Operation  string // The operation that failed (e.g., "list_children", "save")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	APIMessage string // Error message from the API or network layer
	Err        error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.APIMessage)
	}

	return fmt.Sprintf("network error during %s: %s", e.Operation, e.APIMessage)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a remote object that vanished. It is recoverable per item.
type NotFoundError struct {
	Resource string // Remote identifier or name of the missing object
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("remote object not found: %s", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// DirectoryError represents failures creating or resolving a local directory.
type DirectoryError struct {
	DirectoryName string // The directory name that caused the error
	Reason        string // Human-readable explanation of the directory error
	Err           error  // Underlying error, if any
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory error for '%s': %s", e.DirectoryName, e.Reason)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents authentication and authorization failures
// including 401 Unauthorized and 403 Forbidden responses.
type AuthenticationError struct {
	Operation string // The operation that required authentication
	Err       error  // Underlying error, if any
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s", e.Operation)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError

	return errors.As(err, &nf)
}

// IsTransient reports whether err is a network failure worth retrying unchanged:
// timeouts, refused or reset connections, truncated responses and HTTP status
// failures from the remote service. Everything else is fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var (
		notFound *NotFoundError
		authErr  *AuthenticationError
		netErr   *NetworkError
	)

	switch {
	case errors.As(err, &notFound), errors.As(err, &authErr):
		return false
	case errors.As(err, &netErr):
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError

	return errors.As(err, &dnsErr)
}
