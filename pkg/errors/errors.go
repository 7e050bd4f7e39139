package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"splitstream/internal/core/domain"
)

// ErrorCode is the machine-readable code returned in API error bodies.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidSource      ErrorCode = "INVALID_SOURCE"
	ErrCodeDuplicateVideo     ErrorCode = "DUPLICATE_VIDEO"
	ErrCodeCapacityExceeded   ErrorCode = "CAPACITY_EXCEEDED"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeSessionClosed      ErrorCode = "SESSION_CLOSED"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError carries an error code and HTTP status alongside the cause.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// domainMapping is checked in order; the first sentinel in err's chain wins.
var domainMapping = []struct {
	target error
	code   ErrorCode
	status int
}{
	{domain.ErrInvalidSource, ErrCodeInvalidSource, http.StatusBadRequest},
	{domain.ErrInvalidCapacity, ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrDuplicateVideo, ErrCodeDuplicateVideo, http.StatusConflict},
	{domain.ErrCapacityExceeded, ErrCodeCapacityExceeded, http.StatusConflict},
	{domain.ErrAlreadyExists, ErrCodeAlreadyExists, http.StatusConflict},
	{domain.ErrStreamNotFound, ErrCodeNotFound, http.StatusNotFound},
	{domain.ErrSessionNotFound, ErrCodeNotFound, http.StatusNotFound},
	{domain.ErrSessionClosed, ErrCodeSessionClosed, http.StatusGone},
	{domain.ErrAuthRequired, ErrCodeUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, ErrCodeForbidden, http.StatusForbidden},
	{domain.ErrShareUnsupported, ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
}

// FromDomain converts err into an AppError. Existing AppErrors pass through;
// unknown errors become INTERNAL_ERROR without exposing the cause message.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}
	for _, m := range domainMapping {
		if stderrors.Is(err, m.target) {
			return WrapError(err, m.code, m.target.Error(), m.status)
		}
	}
	return WrapError(err, ErrCodeInternal, "internal server error", http.StatusInternalServerError)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError extracts the first AppError from err's chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
