package util

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced in API responses. The announcement send pipeline needs
// CANONICAL_WRITE_FAILED and FANOUT_FAILED kept distinct: the first means
// nothing was persisted, the second means the announcement exists but some or
// all recipients are missing their notification stub.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeInternal            = "INTERNAL_ERROR"
	CodeNoRecipients        = "NO_RECIPIENTS"
	CodeCanonicalWrite      = "CANONICAL_WRITE_FAILED"
	CodeFanout              = "FANOUT_FAILED"
	CodeReadTracking        = "READ_TRACKING_FAILED"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeTimeout             = "TIMEOUT"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewNoRecipients signals that a targeting rule resolved to an empty set.
// Recoverable: the operator adjusts the rule and retries.
func NewNoRecipients(details map[string]any) error {
	return NewDomainError(CodeNoRecipients, "targeting rule matched no recipients", http.StatusUnprocessableEntity, details)
}

// NewCanonicalWriteError signals a phase-1 failure: the canonical record was
// not persisted and no partial state exists.
func NewCanonicalWriteError(err error) error {
	return &DomainError{
		Code:       CodeCanonicalWrite,
		Message:    "announcement could not be persisted; nothing was sent",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewFanoutError signals a phase-2 failure after the canonical record was
// committed. Details carry the announcement id so operators can re-fan-out.
func NewFanoutError(err error, announcementID string) error {
	return &DomainError{
		Code:       CodeFanout,
		Message:    "announcement sent but recipient notifications may be missing",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"announcement_id": announcementID},
		Err:        err,
	}
}

// NewReadTrackingError wraps a failed read-receipt update. Safe to retry.
func NewReadTrackingError(err error) error {
	return &DomainError{
		Code:       CodeReadTracking,
		Message:    "failed to record read receipt",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewPermissionDenied reports an authorization rejection with enough context
// for diagnosis. Never swallowed.
func NewPermissionDenied(resource, action string) error {
	return &DomainError{
		Code:       CodePermissionDenied,
		Message:    "permission denied",
		HTTPStatus: http.StatusForbidden,
		Details:    map[string]any{"resource": resource, "action": action},
	}
}

// NewTimeout reports a bounded write that exceeded its deadline, distinct
// from the phase-level write errors.
func NewTimeout(op string, err error) error {
	return &DomainError{
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("%s timed out", op),
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// IsTimeout reports whether err stems from a context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
