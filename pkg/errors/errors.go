package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = NewError("VALIDATION_ERROR", "event validation failed")
	ErrHandlerNotFound  = NewError("HANDLER_NOT_FOUND", "handler not found")
	ErrDuplicateHandler = NewError("DUPLICATE_HANDLER", "handler id already registered")
	ErrConfiguration    = NewError("CONFIGURATION_ERROR", "invalid configuration")
	ErrProcessing       = NewError("PROCESSING_ERROR", "handler processing failed")
	ErrTimeout          = NewError("TIMEOUT", "handler attempt timed out")
	ErrCircuitOpen      = NewError("CIRCUIT_OPEN", "circuit breaker is open")
	ErrCancelled        = NewError("CANCELLED", "processing cancelled")
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

// Error is the coded error type used across the engine. Values created from
// the sentinels above compare equal to them via errors.Is on Code.
type Error struct {
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so wrapped copies of a sentinel still satisfy
// errors.Is(err, sentinel).
func (e *Error) Is(target error) bool {
	var appErr *Error
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	switch e.Code {
	case ErrValidation.Code, ErrCircuitOpen.Code, ErrCancelled.Code,
		ErrConfiguration.Code, ErrDuplicateHandler.Code, ErrHandlerNotFound.Code:
		return false
	}
	return true
}

func (e *Error) IsFatal() bool {
	return !e.IsRetryable()
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	err := *e
	err.Message = fmt.Sprintf(format, args...)
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

func IsCircuitOpen(err error) bool {
	return hasCode(err, ErrCircuitOpen.Code)
}

func IsTimeout(err error) bool {
	return hasCode(err, ErrTimeout.Code)
}

func IsCancelled(err error) bool {
	return hasCode(err, ErrCancelled.Code)
}

func IsDuplicateHandler(err error) bool {
	return hasCode(err, ErrDuplicateHandler.Code)
}

func IsHandlerNotFound(err error) bool {
	return hasCode(err, ErrHandlerNotFound.Code)
}

// IsRetryable reports whether err may be retried. Unknown error types
// default to retryable, matching the retry package's treatment.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.IsRetryable()
	}
	var fatalErr FatalError
	if errors.As(err, &fatalErr) {
		return !fatalErr.IsFatal()
	}
	return true
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
