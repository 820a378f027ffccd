package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeInsufficientLimit ErrorType = "insufficient_limit"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeInvalidState      ErrorType = "invalid_state"
	ErrorTypeExhaustedPlan     ErrorType = "exhausted_plan"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeConcurrency       ErrorType = "concurrency"
	ErrorTypeInternal          ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

// NewInsufficientLimitError is returned when a purchase exceeds the card's
// available limit. Client-correctable, never retried.
func NewInsufficientLimitError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientLimit,
		Code:       "INSUFFICIENT_LIMIT",
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

// NewInvalidStateError is returned when an operation targets a plan that is
// not in the status the operation requires.
func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidState,
		Code:       "INVALID_PLAN_STATE",
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

// NewExhaustedPlanError is returned when a payment is attempted against a
// plan with zero remaining installments.
func NewExhaustedPlanError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExhaustedPlan,
		Code:       "PLAN_EXHAUSTED",
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CONFLICT",
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

// NewConcurrencyError is returned when the atomic card+plan commit lost a
// race. Callers should retry the whole operation, not assume partial effect.
func NewConcurrencyError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConcurrency,
		Code:       "CONCURRENT_UPDATE",
		Message:    message,
		Retryable:  true,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// Predefined common errors
var (
	ErrCardNotFound     = NewNotFoundError("credit card")
	ErrPlanNotFound     = NewNotFoundError("installment plan")
	ErrCategoryNotFound = NewNotFoundError("category")
	ErrInvalidInput     = NewValidationError("INVALID_INPUT", "Invalid input provided")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
