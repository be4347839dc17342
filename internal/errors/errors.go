package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an application error.
type ErrorType string

const (
	// ErrTypeValidation marks bad run parameters (granularity, feed type,
	// chunk sizing). These reject the whole run.
	ErrTypeValidation ErrorType = "VALIDATION"
	// ErrTypeFeed marks a failed fetch from the upstream feed source.
	ErrTypeFeed ErrorType = "FEED"
	// ErrTypeIntegrity marks a feed-consistency violation, such as a record
	// dated inside a range owned by a different feed segment. Fatal: the
	// reconciliation keys are only meaningful per segment.
	ErrTypeIntegrity ErrorType = "INTEGRITY"
	// ErrTypeParsing marks unparseable feed content that could not be
	// recovered locally.
	ErrTypeParsing ErrorType = "PARSING"
	// ErrTypeStorage marks export/write failures.
	ErrTypeStorage ErrorType = "STORAGE"
	// ErrTypeConfig marks configuration load failures.
	ErrTypeConfig ErrorType = "CONFIG"
)

// AppError is the application error carrying a type, a message, an optional
// cause and free-form context.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair to the error and returns it.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewValidationError creates a run-parameter validation error.
func NewValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewFeedError creates a feed access error.
func NewFeedError(message string, cause error) *AppError {
	return NewAppError(ErrTypeFeed, message, cause)
}

// NewIntegrityError creates a feed-consistency error.
func NewIntegrityError(message string) *AppError {
	return NewAppError(ErrTypeIntegrity, message, nil)
}

// NewParsingError creates a parsing error.
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage error.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsFatal reports whether err must halt the whole run. Validation and
// integrity errors are fatal; everything else is recorded per batch and the
// run continues.
func IsFatal(err error) bool {
	return IsType(err, ErrTypeValidation) || IsType(err, ErrTypeIntegrity) ||
		IsType(err, ErrTypeConfig)
}
