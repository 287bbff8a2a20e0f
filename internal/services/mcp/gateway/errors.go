package gateway

import "fmt"

// Kind classifies why an upstream call produced no usable data.
type Kind string

const (
	// KindNetwork covers connection, DNS and TLS failures and caller cancellation.
	KindNetwork Kind = "network"
	// KindTimeout means no response arrived within the configured timeout.
	KindTimeout Kind = "timeout"
	// KindStatus means the API answered with a non-2xx status.
	KindStatus Kind = "status"
	// KindDecode means the body was not the expected JSON envelope.
	KindDecode Kind = "decode"
	// KindEmptyPayload means the envelope decoded but carried no data.
	KindEmptyPayload Kind = "empty_payload"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrStatus       = &Error{Kind: KindStatus}
	ErrDecode       = &Error{Kind: KindDecode}
	ErrEmptyPayload = &Error{Kind: KindEmptyPayload}
)

// Error is the typed failure carried by a Result.
type Error struct {
	Kind       Kind   // Failure class
	Message    string // Short description for logs
	StatusCode int    // HTTP status when Kind is KindStatus
	Cause      error  // Underlying transport or decode error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
