package serverutils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeQuota        ErrorType = "quota"
	ErrorTypeUpstream     ErrorType = "upstream"
	ErrorTypeInternal     ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: status, Cause: cause}
}

func NewValidationError(message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

func NewUnauthorizedError(message string) *AppError {
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, nil)
}

func NewNotFoundError(message string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, nil)
}

func NewConflictError(message string, cause error) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, cause)
}

func NewRateLimitError(cause error) *AppError {
	return newAppError(ErrorTypeRateLimit, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", cause)
}

func NewQuotaError(cause error) *AppError {
	return newAppError(ErrorTypeQuota, http.StatusPaymentRequired, "AI credits exhausted. Please add credits to continue.", cause)
}

func NewUpstreamError(message string, cause error) *AppError {
	return newAppError(ErrorTypeUpstream, http.StatusBadGateway, message, cause)
}

func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// AsAppError unwraps err to an *AppError, or wraps it as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err.Error(), err)
}
