package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for backend operations.
var (
	// ErrNotFound indicates the requested object does not exist.
	// Never retried internally.
	ErrNotFound = errors.New("object not found")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRetryExhausted indicates a transport-level failure (connection
	// reset, send/receive failure) after the SDK's own retries. Surfaced so
	// callers can apply their own retry policy; this engine does not retry.
	ErrRetryExhausted = errors.New("retries exhausted")

	// ErrCredentialSource indicates the external credential fetch or
	// refresh failed. Retryable.
	ErrCredentialSource = errors.New("credential source failure")
)

// ConfigError represents a configuration validation error. It fails fast at
// construction or rebuild time, never during a transfer.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "backend config: " + e.Field + ": " + e.Message
}

// BackendError wraps backend-specific errors with operation context.
type BackendError struct {
	// Op is the operation that failed (e.g., "Get", "ListWithDelimiter").
	Op string

	// Provider is the backend kind (e.g., "s3").
	Provider Kind

	// Bucket is the bucket name, if applicable.
	Bucket string

	// Key is the object key, if applicable.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface. The message includes the full
// underlying chain to aid diagnosis of unclassified failures.
func (e *BackendError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s/%s: %v", e.Provider, e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermissionDenied returns true if the error indicates insufficient
// permissions.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsRetryExhausted returns true if the error indicates a transport-level
// failure the caller may retry.
func IsRetryExhausted(err error) bool {
	return errors.Is(err, ErrRetryExhausted)
}

// IsCredentialSource returns true if the error came from the external
// credential source.
func IsCredentialSource(err error) bool {
	return errors.Is(err, ErrCredentialSource)
}

// Retryable reports whether the caller may reasonably retry the operation.
func Retryable(err error) bool {
	return IsRetryExhausted(err) || IsCredentialSource(err)
}

// classifyChain maps an error chain onto a sentinel by substring inspection
// of the composed message. Deliberately simple: false negatives fall through
// to nil (generic) rather than risking misclassification.
func classifyChain(err error) error {
	msg := composeChain(err)
	switch {
	case containsAny(msg,
		"NoSuchKey", "NotFound", "not found", "404"):
		return ErrNotFound
	case containsAny(msg,
		"403 Forbidden", "AccessDenied", "access denied",
		"lacked the necessary privileges"):
		return ErrPermissionDenied
	case containsAny(msg,
		"connection reset", "broken pipe", "connection refused",
		"error sending request", "error receiving body",
		"retry quota exceeded", "exceeded maximum number of attempts"):
		return ErrRetryExhausted
	}
	return nil
}

// composeChain joins the outer message with each nested cause so substring
// checks see the whole chain even when an Error() implementation omits its
// wrapped error's text.
func composeChain(err error) string {
	var parts []string
	for err != nil {
		parts = append(parts, err.Error())
		err = errors.Unwrap(err)
	}
	return strings.Join(parts, ": ")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WrapError converts a raw provider error into a *BackendError, classifying
// it onto the sentinel taxonomy where the chain allows. Unclassified errors
// keep their original chain (generic).
func WrapError(op string, kind Kind, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := &BackendError{Op: op, Provider: kind, Bucket: bucket, Key: key, Err: err}
	if sentinel := classifyChain(err); sentinel != nil {
		wrapped.Err = fmt.Errorf("%w: %s", sentinel, composeChain(err))
	}
	return wrapped
}
