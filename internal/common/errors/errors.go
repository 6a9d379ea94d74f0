package errors

import (
	"fmt"
	"time"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	// Generic
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Handles and profiles
	ErrCodeInvalidHandle     ErrorCode = "INVALID_HANDLE"
	ErrCodeHandleTaken       ErrorCode = "HANDLE_TAKEN"
	ErrCodeRecipientNotFound ErrorCode = "RECIPIENT_NOT_FOUND"

	// Content policy
	ErrCodeEmptyMessage      ErrorCode = "EMPTY_MESSAGE"
	ErrCodeMessageTooLong    ErrorCode = "MESSAGE_TOO_LONG"
	ErrCodeTooManyLinks      ErrorCode = "TOO_MANY_LINKS"
	ErrCodeProfanityDetected ErrorCode = "PROFANITY_DETECTED"
	ErrCodeInvalidBody       ErrorCode = "INVALID_BODY"

	// Payments
	ErrCodeInvalidPaymentProof ErrorCode = "INVALID_PAYMENT_PROOF"
	ErrCodePaymentNotConfirmed ErrorCode = "PAYMENT_NOT_CONFIRMED"
	ErrCodeTransactionFailed   ErrorCode = "TRANSACTION_FAILED"
	ErrCodeTransferMismatch    ErrorCode = "TRANSFER_MISMATCH"
	ErrCodeIntentNotFound      ErrorCode = "INTENT_NOT_FOUND"

	// Auth nonces
	ErrCodeNonceNotFound ErrorCode = "NONCE_NOT_FOUND"
	ErrCodeNonceExpired  ErrorCode = "NONCE_EXPIRED"

	// Rate limiting
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// AppError is the typed error carried across service boundaries. Public
// operations recover it at the HTTP edge and translate it into a
// structured {code, reason} body; nothing else crosses that boundary.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Reason     string    `json:"reason,omitempty"`
	RetryAfter time.Duration
	Cause      error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Reason, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Reason)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether the error is caller-fixable input.
func (e *AppError) IsValidation() bool {
	switch e.Code {
	case ErrCodeValidation, ErrCodeInvalidHandle, ErrCodeInvalidBody,
		ErrCodeEmptyMessage, ErrCodeMessageTooLong, ErrCodeTooManyLinks,
		ErrCodeProfanityDetected, ErrCodeInvalidPaymentProof:
		return true
	}
	return false
}

// IsNotFound reports whether the error names an absent resource.
func (e *AppError) IsNotFound() bool {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeRecipientNotFound, ErrCodeIntentNotFound, ErrCodeNonceNotFound:
		return true
	}
	return false
}

// IsConflict reports whether a state precondition was not met.
func (e *AppError) IsConflict() bool {
	switch e.Code {
	case ErrCodeHandleTaken, ErrCodePaymentNotConfirmed, ErrCodeTransactionFailed, ErrCodeTransferMismatch:
		return true
	}
	return false
}

func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal
}

// New creates a typed application error.
func New(code ErrorCode, reason string) *AppError {
	return &AppError{Code: code, Reason: reason}
}

// Newf creates a typed application error with a formatted reason.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new typed error. The cause is logged but
// never serialized to callers.
func Wrap(err error, code ErrorCode, reason string) *AppError {
	return &AppError{Code: code, Reason: reason, Cause: err}
}

// NewInternal wraps an unexpected error. The reason shown to callers is
// generic; the cause stays server-side.
func NewInternal(err error) *AppError {
	return &AppError{Code: ErrCodeInternal, Reason: "internal error", Cause: err}
}

// NewRateLimited builds a RATE_LIMITED error carrying a retry-after hint.
func NewRateLimited(purpose string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       ErrCodeRateLimited,
		Reason:     fmt.Sprintf("rate limit exceeded for %s", purpose),
		RetryAfter: retryAfter,
	}
}

// AsAppError extracts an *AppError from err, if it is one.
func AsAppError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	appErr, ok := err.(*AppError)
	return appErr, ok
}
