// Package errors defines the error taxonomy shared by the SDK packages.
//
// Construction-time problems (malformed secret material, bad options) are
// InvalidCredentialError. Transient failures talking to the platform
// (token exchange, key-set fetch) are CredentialError and may be retried.
// Caller input problems are InvalidArgumentError. Identity-token
// verification failures are InvalidIDTokenError carrying a reason tag so
// callers can tell an expired token from a fraudulent one.
package errors

import (
	"errors"
	"fmt"
)

// VerificationReason tags an InvalidIDTokenError with the specific check
// that failed.
type VerificationReason string

const (
	ReasonMalformed      VerificationReason = "malformed"
	ReasonExpired        VerificationReason = "expired"
	ReasonIssuedInFuture VerificationReason = "issued in future"
	ReasonWrongAudience  VerificationReason = "wrong audience"
	ReasonWrongIssuer    VerificationReason = "wrong issuer"
	ReasonBadSignature   VerificationReason = "bad signature"
	ReasonBadAlgorithm   VerificationReason = "bad algorithm"
	ReasonBadSubject     VerificationReason = "bad subject"
)

// Remote user API failures mapped from backend error codes.
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailExists            = errors.New("email already exists")
	ErrUIDExists              = errors.New("uid already exists")
	ErrInsufficientPermission = errors.New("insufficient permission to access the user API")
)

// InvalidCredentialError reports malformed or missing secret material.
// It is fatal at construction time and never retryable.
type InvalidCredentialError struct {
	Message string
}

func (e *InvalidCredentialError) Error() string {
	return "invalid credential: " + e.Message
}

// NewInvalidCredential builds an InvalidCredentialError with a formatted message.
func NewInvalidCredential(format string, args ...any) *InvalidCredentialError {
	return &InvalidCredentialError{Message: fmt.Sprintf(format, args...)}
}

// CredentialError reports a transient failure fetching a token or key set.
// The caller may retry the operation.
type CredentialError struct {
	Op      string
	Message string
	Cause   error
}

func (e *CredentialError) Error() string {
	msg := fmt.Sprintf("credential error [%s]: %s", e.Op, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CredentialError) Unwrap() error {
	return e.Cause
}

// InvalidArgumentError reports caller-supplied input that fails validation.
type InvalidArgumentError struct {
	Argument string
	Message  string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Argument, e.Message)
}

// InvalidIDTokenError reports a failed identity-token verification check.
// Two InvalidIDTokenErrors match under errors.Is when their reasons match,
// so callers can branch on the reason without string comparisons.
type InvalidIDTokenError struct {
	Reason  VerificationReason
	Message string
}

func (e *InvalidIDTokenError) Error() string {
	return fmt.Sprintf("identity token verification failed (%s): %s", e.Reason, e.Message)
}

func (e *InvalidIDTokenError) Is(target error) bool {
	var other *InvalidIDTokenError
	if !errors.As(target, &other) {
		return false
	}
	return other.Reason == "" || other.Reason == e.Reason
}

// InternalError reports inconsistent backend state, such as a freshly
// created user record that cannot be fetched back.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	msg := "internal error: " + e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}
