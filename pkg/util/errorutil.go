package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API callers.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInconsistentState = "INCONSISTENT_STATE"
	CodeMalformedHistory  = "MALFORMED_HISTORY"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeTimeout           = "QUERY_TIMEOUT"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrStoreUnavailable marks failures of the backing store. Wrap it so callers
// can classify with errors.Is.
var ErrStoreUnavailable = errors.New("store unavailable")

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
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
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

// NewInconsistentState describes a denormalized field that disagrees with the
// history. It is a warning payload: queries keep returning results.
func NewInconsistentState(ticketID, field string, denormalized, derived any) *DomainError {
	return &DomainError{
		Code:       CodeInconsistentState,
		Message:    fmt.Sprintf("ticket %s: %s disagrees with history", ticketID, field),
		HTTPStatus: http.StatusOK,
		Details: map[string]any{
			"ticket_id":    ticketID,
			"field":        field,
			"denormalized": denormalized,
			"derived":      derived,
		},
	}
}

// NewMalformedHistory describes a data-quality problem in one ticket's history.
func NewMalformedHistory(ticketID string, index int, reason string) *DomainError {
	return &DomainError{
		Code:       CodeMalformedHistory,
		Message:    fmt.Sprintf("ticket %s: malformed history at event %d: %s", ticketID, index, reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"ticket_id":   ticketID,
			"event_index": index,
			"reason":      reason,
		},
	}
}

func NewStoreUnavailable(err error) *DomainError {
	return &DomainError{
		Code:       CodeStoreUnavailable,
		Message:    "backing store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) *DomainError {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
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
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &DomainError{
			Code:       CodeTimeout,
			Message:    "query cancelled before completion",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return NewStoreUnavailable(err)
	}
	return NewInternalError(err)
}
