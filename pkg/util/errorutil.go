package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes for ticket workflow failures.
const (
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeDuplicateTicket        = "DUPLICATE_TICKET"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeChannelProvisionFailed = "CHANNEL_PROVISION_FAILED"
	CodePersistenceFailed      = "PERSISTENCE_FAILED"
	CodeDeliveryDegraded       = "DELIVERY_DEGRADED"
	CodeAlreadyClaimed         = "ALREADY_CLAIMED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInternal               = "INTERNAL_ERROR"
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

// NewDuplicateTicket reports an already-open ticket, referencing its channel.
func NewDuplicateTicket(channelID string) error {
	return NewDomainError(CodeDuplicateTicket, "you already have an open ticket", http.StatusConflict,
		map[string]any{"channel_id": channelID})
}

// NewInvalidTransition signals a lifecycle guard violation. The status
// detail is logged; users see only the generic message.
func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition, "ticket is not in a state that allows this action",
		http.StatusConflict, map[string]any{"from": from, "to": to})
}

// NewAlreadyClaimed rejects a claim attempt on a ticket someone else
// already owns.
func NewAlreadyClaimed(claimantID string) error {
	return NewDomainError(CodeAlreadyClaimed, "this ticket is already claimed", http.StatusConflict,
		map[string]any{"claimant_id": claimantID})
}

func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

func NewChannelProvisionFailed(err error) error {
	return &DomainError{
		Code:       CodeChannelProvisionFailed,
		Message:    "could not create the ticket channel",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewPersistenceFailed(err error) error {
	return &DomainError{
		Code:       CodePersistenceFailed,
		Message:    "could not save the ticket",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewDeliveryDegraded reports a notification that could not be
// delivered where the flow cannot proceed without it.
func NewDeliveryDegraded(err error) error {
	return &DomainError{
		Code:       CodeDeliveryDegraded,
		Message:    "a required notification could not be delivered",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
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
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
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

func MapError(err error) error {
	return ToDomainError(err)
}

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
