package message

import (
	"errors"
	"fmt"
)

// Rejection kinds. Validation failures are terminal for the message:
// it is never persisted and never retried.
var (
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrUnsupportedVersion = errors.New("unsupported schema version")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrInvalidHostname    = errors.New("invalid hostname")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrInvalidField       = errors.New("invalid field")
)

// ValidationError describes why a message was rejected.
type ValidationError struct {
	Kind   error
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return e.Kind.Error()
}

// Unwrap returns the rejection kind so callers can use errors.Is.
func (e *ValidationError) Unwrap() error { return e.Kind }

func reject(kind error, field, detail string) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Detail: detail}
}

// Reason returns a stable, label-friendly name for a rejection.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, ErrInvalidHostname):
		return "invalid_hostname"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrInvalidField):
		return "invalid_field"
	}
	return "other"
}
