package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers.
const (
	CodeValidationFailed         = "VALIDATION_FAILED"
	CodeNotFound                 = "NOT_FOUND"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeConflict                 = "CONFLICT"
	CodeInternal                 = "INTERNAL_ERROR"
	CodeInvalidTransition        = "INVALID_TRANSITION"
	CodeTicketClosed             = "TICKET_CLOSED"
	CodeMissingRequiredInput     = "MISSING_REQUIRED_INPUT"
	CodeSlotConflict             = "SLOT_CONFLICT"
	CodeUnknownEngineer          = "UNKNOWN_ENGINEER"
	CodeUnknownWorkflowReference = "UNKNOWN_WORKFLOW_REFERENCE"
	CodeWorkflowInUse            = "WORKFLOW_IN_USE"
)

// Sentinels for errors.Is checks. Matching is by code, so a DomainError carrying
// details still matches its sentinel.
var (
	ErrNotFound                 = &DomainError{Code: CodeNotFound}
	ErrConflict                 = &DomainError{Code: CodeConflict}
	ErrInvalidTransition        = &DomainError{Code: CodeInvalidTransition}
	ErrTicketClosed             = &DomainError{Code: CodeTicketClosed}
	ErrMissingRequiredInput     = &DomainError{Code: CodeMissingRequiredInput}
	ErrSlotConflict             = &DomainError{Code: CodeSlotConflict}
	ErrUnknownEngineer          = &DomainError{Code: CodeUnknownEngineer}
	ErrUnknownWorkflowReference = &DomainError{Code: CodeUnknownWorkflowReference}
	ErrWorkflowInUse            = &DomainError{Code: CodeWorkflowInUse}
	ErrValidation               = &DomainError{Code: CodeValidationFailed}
	ErrUnauthorized             = &DomainError{Code: CodeUnauthorized}
	ErrForbidden                = &DomainError{Code: CodeForbidden}
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
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
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

func NewInvalidTransition(ticketID, transitionID string) error {
	return NewDomainError(CodeInvalidTransition, "transition not available from current stage", http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "transition_id": transitionID})
}

func NewTicketClosed(ticketID string) error {
	return NewDomainError(CodeTicketClosed, "ticket is closed", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

// NewMissingRequiredInput reports the gate and the fields the caller must supply.
func NewMissingRequiredInput(gate string, fields ...string) error {
	return NewDomainError(CodeMissingRequiredInput, fmt.Sprintf("transition requires %s input", gate), http.StatusUnprocessableEntity,
		map[string]any{"requires_input": gate, "fields": fields})
}

func NewSlotConflict(message string, details map[string]any) error {
	return NewDomainError(CodeSlotConflict, message, http.StatusConflict, details)
}

func NewUnknownEngineer(engineerID string) error {
	return NewDomainError(CodeUnknownEngineer, "engineer not found", http.StatusUnprocessableEntity,
		map[string]any{"engineer_id": engineerID})
}

func NewUnknownWorkflowReference(message string, details map[string]any) error {
	return NewDomainError(CodeUnknownWorkflowReference, message, http.StatusUnprocessableEntity, details)
}

func NewWorkflowInUse(message string, details map[string]any) error {
	return NewDomainError(CodeWorkflowInUse, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
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
		if domainErr.HTTPStatus == 0 {
			domainErr.HTTPStatus = http.StatusInternalServerError
		}
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts err to a DomainError while keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsCode reports whether err carries a DomainError with code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
