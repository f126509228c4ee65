package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
	ErrValidation   = errors.New("validation error")

	// Workflow rule violations
	ErrSequencingViolation    = errors.New("sequencing violation")
	ErrDuplicateIngreso       = errors.New("duplicate ingreso")
	ErrClaimClosed            = errors.New("claim closed")
	ErrMissingEmployer        = errors.New("missing employer")
	ErrTerminalState          = errors.New("terminal state violation")
	ErrConsultationMismatch   = errors.New("consultation mismatch")
	ErrConsultationNotFound   = errors.New("consultation not found")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
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

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation creates a validation error with field details
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// SequencingViolation creates a consultation sequencing rule error
func SequencingViolation(message string) *AppError {
	return &AppError{
		Err:        ErrSequencingViolation,
		Message:    message,
		Code:       "SEQUENCING_VIOLATION",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// DuplicateIngreso creates an error for an INGRESO attempted while the
// case is already open
func DuplicateIngreso() *AppError {
	return &AppError{
		Err:        ErrDuplicateIngreso,
		Message:    "case already has an open admission",
		Code:       "DUPLICATE_INGRESO",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// ClaimClosed creates an error for a consultation attempted on a closed claim
func ClaimClosed() *AppError {
	return &AppError{
		Err:        ErrClaimClosed,
		Message:    "insurance claim is closed, only a re-admission may reopen it",
		Code:       "CLAIM_CLOSED",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// MissingEmployer creates an error for an ART consultation without an
// employer reference
func MissingEmployer() *AppError {
	return &AppError{
		Err:        ErrMissingEmployer,
		Message:    "employer reference is required for work-injury consultations",
		Code:       "MISSING_EMPLOYER",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// TerminalState creates an error for a transition attempted from a
// terminal appointment status
func TerminalState(status string) *AppError {
	return &AppError{
		Err:        ErrTerminalState,
		Message:    fmt.Sprintf("appointment is %s and can no longer change status", status),
		Code:       "TERMINAL_STATE",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]string{"status": status},
	}
}

// ConsultationMismatch creates an error for a completion consultation
// belonging to a different patient
func ConsultationMismatch() *AppError {
	return &AppError{
		Err:        ErrConsultationMismatch,
		Message:    "consultation belongs to a different patient",
		Code:       "CONSULTATION_MISMATCH",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// ConsultationNotFound creates an error for an unresolvable completion
// consultation reference
func ConsultationNotFound(id string) *AppError {
	return &AppError{
		Err:        ErrConsultationNotFound,
		Message:    "completion consultation not found",
		Code:       "CONSULTATION_NOT_FOUND",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]string{"consultation_id": id},
	}
}

// ConcurrentModification creates an error for an optimistic-lock conflict
func ConcurrentModification(resource string) *AppError {
	return &AppError{
		Err:        ErrConcurrentModification,
		Message:    fmt.Sprintf("%s was modified by another user, please retry", resource),
		Code:       "CONCURRENT_MODIFICATION",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"resource": resource},
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}
