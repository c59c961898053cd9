package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can map them to a response.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindPolicyBlocked       ErrorKind = "policy_blocked"
	KindApprovalRequired    ErrorKind = "approval_required"
	KindExternalFailure     ErrorKind = "external_failure"
	KindCheckpointChallenge ErrorKind = "checkpoint_challenge"
	KindLoginFailed         ErrorKind = "login_failed"
)

// Error is the typed failure returned across package boundaries.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NotFound reports a missing record.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput reports a request that failed validation.
func InvalidInput(field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ExternalFailure wraps a failure of a collaborator outside the process.
func ExternalFailure(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindExternalFailure, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CheckpointChallenge reports that the remote site asked for manual
// verification. It must never be retried automatically.
func CheckpointChallenge(message string) *Error {
	return &Error{Kind: KindCheckpointChallenge, Message: message}
}

// LoginFailed reports rejected credentials.
func LoginFailed(message string) *Error {
	return &Error{Kind: KindLoginFailed, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
