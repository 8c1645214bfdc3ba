package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrConflict            = errors.New("resource conflict")
	ErrBadRequest          = errors.New("bad request")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInternalServer      = errors.New("internal server error")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")

	// Business errors
	ErrRideFull          = errors.New("ride is full")
	ErrRideCompleted     = errors.New("ride is already completed")
	ErrNoSuccessor       = errors.New("no eligible host successor")
	ErrRideCodeExhausted = errors.New("could not allocate a unique ride code")
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	kind       error
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap exposes the taxonomy sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	return e.kind
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func newKind(kind error, code, message string, statusCode int) *APIError {
	e := NewAPIError(code, message, statusCode)
	e.kind = kind
	return e
}

// Common API errors
func NotFound(resource string) *APIError {
	return newKind(ErrNotFound, "not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return newKind(ErrBadRequest, "bad_request", message, http.StatusBadRequest)
}

// Validation reports missing or malformed input fields.
func Validation(message string) *APIError {
	return newKind(ErrBadRequest, "validation_error", message, http.StatusBadRequest)
}

func Conflict(message string) *APIError {
	return newKind(ErrConflict, "conflict", message, http.StatusConflict)
}

// InvalidState reports a lifecycle transition the ride cannot take.
func InvalidState(message string) *APIError {
	return newKind(ErrInvalidState, "invalid_state", message, http.StatusBadRequest)
}

func Forbidden(message string) *APIError {
	return newKind(ErrForbidden, "forbidden", message, http.StatusForbidden)
}

func InternalError(message string) *APIError {
	return newKind(ErrInternalServer, "internal_error", message, http.StatusInternalServerError)
}

func Unauthorized(message string) *APIError {
	return newKind(ErrUnauthorized, "unauthorized", message, http.StatusUnauthorized)
}

func IdempotencyConflict() *APIError {
	return newKind(ErrIdempotencyConflict, "idempotency_conflict", "idempotency key already used with different request", http.StatusConflict)
}

func RideFull() *APIError {
	return InvalidState("ride is full")
}

func RideCompleted() *APIError {
	return InvalidState("ride is already completed")
}

func HostHasActiveRide() *APIError {
	return Conflict("you cannot create a ride while hosting or riding in an active ride")
}

func AlreadyMember() *APIError {
	return Conflict("you are already a member of this ride")
}

func AlreadyRequested() *APIError {
	return Conflict("you have already requested to join this ride")
}

func NotParticipant() *APIError {
	return Conflict("you are not a member of this ride")
}

func HostOnly(action string) *APIError {
	return Forbidden(fmt.Sprintf("only the host can %s this ride", action))
}
