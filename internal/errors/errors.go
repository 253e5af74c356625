/*
Package errors - Typed Error Taxonomy for the SII Compliance Core

==============================================================================
FILE: internal/errors/errors.go
==============================================================================

DESCRIPTION:
    Typed error definitions for the ingestion and process engine. Replaces
    string-based error checking with type assertions so the ingestion
    coordinator and execution engine can decide retry/skip/abort behavior
    from the error's Kind instead of parsing messages.

USAGE:
    return errors.Wrap(err, errors.ErrPortalTimeout)

    if errors.Is(err, errors.ErrDecryptionFailed) {
        // fatal: abort the sync run
    }

DEVELOPER GUIDELINES:
    OK to modify: add new Kinds as new failure modes are identified
    CAUTION: changing Recoverable on an existing Kind changes retry behavior
    DO NOT modify: AppError's Error()/Unwrap()/Is() contract

==============================================================================
*/
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
)

// Kind classifies an AppError into one of the failure categories the
// ingestion coordinator and execution engine reason about.
type Kind string

const (
	KindConfig          Kind = "CONFIG"
	KindNoCredentials   Kind = "NO_CREDENTIALS"
	KindCredsDisabled   Kind = "CREDENTIALS_DISABLED"
	KindAuth            Kind = "AUTH"
	KindPortalTimeout   Kind = "PORTAL_TIMEOUT"
	KindPortalTransient Kind = "PORTAL_TRANSIENT"
	KindValidation      Kind = "VALIDATION"
	KindMapping         Kind = "MAPPING"
	KindUpsertConflict  Kind = "UPSERT_CONFLICT"
	KindDecryption      Kind = "DECRYPTION_FAILED"
	KindConditionUnmet  Kind = "CONDITION_UNMET"
	KindCancelled       Kind = "CANCELLATION_REQUESTED"
	KindInternal        Kind = "INTERNAL"
)

// AppError is an application-level error carrying a Kind, a recoverability
// hint, and an optional wrapped cause.
type AppError struct {
	Kind        Kind
	Message     string
	Recoverable bool
	Err         error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is() based on Kind equality.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewAppError creates a new AppError.
func NewAppError(kind Kind, message string, recoverable bool) *AppError {
	return &AppError{Kind: kind, Message: message, Recoverable: recoverable}
}

// Wrap attaches an underlying cause to a copy of a sentinel AppError.
func Wrap(err error, sentinel *AppError) *AppError {
	return &AppError{
		Kind:        sentinel.Kind,
		Message:     sentinel.Message,
		Recoverable: sentinel.Recoverable,
		Err:         err,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{Kind: e.Kind, Message: msg, Recoverable: e.Recoverable, Err: e.Err}
}

// ============================================================================
// Sentinel errors, one per row of the error handling design.
// ============================================================================

var (
	ErrConfig = NewAppError(KindConfig, "invalid or missing configuration", false)

	ErrNoCredentials      = NewAppError(KindNoCredentials, "no SII credentials on file for taxpayer", false)
	ErrCredentialsDisabled = NewAppError(KindCredsDisabled, "SII credentials are disabled", false)

	ErrAuth = NewAppError(KindAuth, "portal authentication failed", false)

	ErrPortalTimeout   = NewAppError(KindPortalTimeout, "portal call timed out", true)
	ErrPortalTransient = NewAppError(KindPortalTransient, "transient portal error", true)

	ErrValidation     = NewAppError(KindValidation, "document failed validation", false)
	ErrMapping        = NewAppError(KindMapping, "document failed to map to canonical form", false)
	ErrUpsertConflict = NewAppError(KindUpsertConflict, "document upsert conflict", false)

	ErrDecryptionFailed = NewAppError(KindDecryption, "credential decryption failed", false)

	ErrConditionUnmet = NewAppError(KindConditionUnmet, "execution condition not satisfied", false)
	ErrCancelled      = NewAppError(KindCancelled, "operation cancelled", false)

	ErrInternal = NewAppError(KindInternal, "internal error", false)
)

// IsRecoverable reports whether err (if an *AppError) should be retried by
// the coordinator's exponential backoff loop.
func IsRecoverable(err error) bool {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// KindOf returns the Kind of err, or KindInternal if err is not an *AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
