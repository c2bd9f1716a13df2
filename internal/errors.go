package internal

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeStorage    ErrorType = "STORAGE_ERROR"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeInvalidAmount  ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidDate    ErrorCode = "INVALID_DATE"
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeStorageFailed  ErrorCode = "STORAGE_FAILED"
	ErrCodeImageFailed    ErrorCode = "IMAGE_FAILED"
)

// AppError is the error value used across the data layer. Load-bearing
// failures carry a type and code so callers can branch without string
// matching; optional faults are swallowed at the repository instead of
// being wrapped in one of these.
type AppError struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Cause   error
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

// Is makes sentinel comparison work through errors.Is by matching on code.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	return &AppError{Type: e.Type, Code: e.Code, Message: e.Message, Cause: cause}
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{Type: ErrorTypeValidation, Code: code, Message: message}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Code: code, Message: message}
}

func NewStorageError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeStorage, Code: ErrCodeStorageFailed, Message: message, Cause: cause}
}

var (
	ErrInvalidAmount  = NewValidationError("amount must be greater than 0", ErrCodeInvalidAmount)
	ErrRecordNotFound = NewNotFoundError("expense record not found", ErrCodeRecordNotFound)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
