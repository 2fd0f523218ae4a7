package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrInternalServer             ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrInvalidInput               ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData         ErrorCode = "INVALID_REQUEST_DATA"
	ErrUnauthorized               ErrorCode = "UNAUTHORIZED"
	ErrTokenExpired               ErrorCode = "TOKEN_EXPIRED"
	ErrInvalidTokenFormat         ErrorCode = "INVALID_TOKEN_FORMAT"
	ErrMissingAuthorizationHeader ErrorCode = "MISSING_AUTHORIZATION_HEADER"
	ErrForbidden                  ErrorCode = "FORBIDDEN"
	ErrNotFound                   ErrorCode = "NOT_FOUND"
	ErrAlreadyExists              ErrorCode = "ALREADY_EXISTS"

	// Sync error kinds. These classify failures talking to Google so the sync
	// engines can decide severity without parsing messages.
	ErrAuthFailed ErrorCode = "AUTH_FAILED" // missing/invalid credentials, not recoverable by refresh
	ErrNetwork    ErrorCode = "NETWORK"     // transport failure or timeout
	ErrRemoteAPI  ErrorCode = "REMOTE_API"  // non-2xx remote response, Status carries the code
	ErrValidation ErrorCode = "VALIDATION"  // malformed local data
)

// AppError is the error envelope returned by services. Status is only set for
// ErrRemoteAPI and carries the remote HTTP status code.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewAPIError wraps a non-2xx remote response.
func NewAPIError(status int, message string) *AppError {
	return &AppError{Code: ErrRemoteAPI, Message: message, Status: status}
}

// AsAppError extracts an *AppError from err's chain, or wraps err as an
// internal error so callers always get a classified value.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(ErrInternalServer, err.Error(), err)
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// RemoteStatus returns the remote HTTP status carried by err, or 0 when err
// is not an ErrRemoteAPI AppError.
func RemoteStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == ErrRemoteAPI {
		return appErr.Status
	}
	return 0
}
