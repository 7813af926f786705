package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for the custody core. Detail strings carry identifiers only
// (user_id, public_key), never key material or ciphertext.
const (
	ErrCodeInvalidKeyLength      = "invalid_key_length"
	ErrCodeWalletNotFound        = "wallet_not_found"
	ErrCodeAuthenticationFailure = "authentication_failure"
	ErrCodeStorageFailure        = "storage_failure"
	ErrCodeMalformedInput        = "malformed_input"
	ErrCodeBadRequest            = "bad_request"
	ErrCodeRateLimited           = "rate_limited"
	ErrCodeInternalError         = "internal_error"
)

// Predefined errors
var (
	ErrInvalidKeyLength = &AppError{
		Code:       ErrCodeInvalidKeyLength,
		Message:    "Master key must be exactly 32 bytes",
		StatusCode: http.StatusInternalServerError,
	}

	ErrAuthenticationFailure = &AppError{
		Code:       ErrCodeAuthenticationFailure,
		Message:    "Ciphertext failed authentication",
		StatusCode: http.StatusInternalServerError,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrRateLimited = &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// WalletNotFound creates a wallet not found error
func WalletNotFound(userID string) *AppError {
	return &AppError{
		Code:       ErrCodeWalletNotFound,
		Message:    "Wallet not found",
		Detail:     fmt.Sprintf("user_id: %s", userID),
		StatusCode: http.StatusNotFound,
	}
}

// AuthenticationFailure creates a decryption authentication error.
// It signals record tampering or a master-key mismatch for that record
// and must never be retried with the same inputs.
func AuthenticationFailure(userID string) *AppError {
	return &AppError{
		Code:       ErrCodeAuthenticationFailure,
		Message:    "Stored key material failed authentication",
		Detail:     fmt.Sprintf("user_id: %s", userID),
		StatusCode: http.StatusInternalServerError,
	}
}

// StorageFailure wraps a persistence collaborator error. Retry policy, if
// any, belongs to the caller.
func StorageFailure(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeStorageFailure,
		Message:    "Storage operation failed",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// MalformedInput creates an error for structurally invalid ciphertext,
// nonce, or tag material. Same severity as an authentication failure.
func MalformedInput(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeMalformedInput,
		Message:    "Malformed encryption metadata",
		Detail:     detail,
		StatusCode: http.StatusInternalServerError,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}
