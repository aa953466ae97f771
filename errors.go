package gambit

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCategory classifies provider errors by how they should be handled.
type ErrorCategory string

const (
	// ErrorTransient indicates the error is temporary and the operation can be retried.
	// Examples: rate limits, temporary network issues, server overload.
	ErrorTransient ErrorCategory = "transient"

	// ErrorPermanent indicates the error is not recoverable through retry.
	// Examples: invalid API key, insufficient permissions, model not found.
	ErrorPermanent ErrorCategory = "permanent"

	// ErrorUserInput indicates the request itself was invalid.
	ErrorUserInput ErrorCategory = "user_input"
)

// CategorizedError is an error that provides information about how it should be handled.
type CategorizedError interface {
	error
	Category() ErrorCategory
	StatusCode() int
	RetryAfter() time.Duration
}

// Error is a categorized error with metadata for error handling decisions.
type Error struct {
	Msg        string
	Cat        ErrorCategory
	Code       int           // HTTP status code, 0 if not applicable
	RetryDelay time.Duration // from Retry-After header, 0 if not available
	Cause      error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Msg {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// Category returns the error category.
func (e *Error) Category() ErrorCategory { return e.Cat }

// StatusCode returns the HTTP status code, or 0 if not applicable.
func (e *Error) StatusCode() int { return e.Code }

// RetryAfter returns the suggested retry delay, or 0 if not available.
func (e *Error) RetryAfter() time.Duration { return e.RetryDelay }

// NewTransientError creates a transient error that can be retried.
func NewTransientError(msg string, statusCode int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorTransient, Code: statusCode, Cause: cause}
}

// NewTransientErrorWithRetry creates a transient error with a suggested retry delay.
func NewTransientErrorWithRetry(msg string, statusCode int, retryAfter time.Duration, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorTransient, Code: statusCode, RetryDelay: retryAfter, Cause: cause}
}

// NewPermanentError creates a permanent error that should not be retried.
func NewPermanentError(msg string, statusCode int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorPermanent, Code: statusCode, Cause: cause}
}

// NewUserInputError creates an error indicating an invalid request.
func NewUserInputError(msg string, statusCode int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorUserInput, Code: statusCode, Cause: cause}
}

// CategorizeStatusCode maps an HTTP status code to an error category.
func CategorizeStatusCode(code int) ErrorCategory {
	switch {
	case code == 429, code == 408:
		return ErrorTransient
	case code >= 500 && code < 600:
		return ErrorTransient
	case code == 400 || code == 404 || code == 422:
		return ErrorUserInput
	default:
		return ErrorPermanent
	}
}

// NewStatusError builds a categorized error from an HTTP status code.
func NewStatusError(msg string, statusCode int, retryAfter time.Duration, cause error) *Error {
	return &Error{
		Msg:        msg,
		Cat:        CategorizeStatusCode(statusCode),
		Code:       statusCode,
		RetryDelay: retryAfter,
		Cause:      cause,
	}
}

// IsTransient returns true if the error is categorized as transient.
func IsTransient(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorTransient
	}
	return false
}

// IsPermanent returns true if the error is categorized as permanent.
func IsPermanent(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorPermanent
	}
	return false
}

// StatusCodeOf returns the HTTP status code from a categorized error, or 0.
func StatusCodeOf(err error) int {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.StatusCode()
	}
	return 0
}

// RetryAfterOf returns the retry delay from a categorized error, or 0.
func RetryAfterOf(err error) time.Duration {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.RetryAfter()
	}
	return 0
}

// ModelFailure classifies a failed model call.
type ModelFailure string

const (
	ModelRateLimited     ModelFailure = "rate_limited"
	ModelTransport       ModelFailure = "transport"
	ModelInvalidResponse ModelFailure = "invalid_response"
)

// ClassifyModelError maps a categorized provider error to a ModelFailure.
// Uncategorized errors are treated as InvalidResponse.
func ClassifyModelError(err error) ModelFailure {
	var ce CategorizedError
	if !errors.As(err, &ce) {
		return ModelInvalidResponse
	}
	switch {
	case ce.StatusCode() == 429:
		return ModelRateLimited
	case ce.Category() == ErrorTransient:
		return ModelTransport
	default:
		return ModelInvalidResponse
	}
}

// ErrorKind is the kind of failure recorded for a step or a run.
type ErrorKind string

const (
	KindParse           ErrorKind = "parse_error"
	KindValidation      ErrorKind = "validation_error"
	KindSecurity        ErrorKind = "security_violation"
	KindRuntime         ErrorKind = "runtime_error"
	KindTimeout         ErrorKind = "timeout_error"
	KindTool            ErrorKind = "tool_error"
	KindModel           ErrorKind = "model_error"
	KindCancelled       ErrorKind = "cancelled"
	KindBudgetExhausted ErrorKind = "budget_exhausted"
)

// Recoverable reports whether a failure of this kind is fed back to the
// model as an observation rather than ending the run.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case KindParse, KindValidation, KindSecurity, KindRuntime, KindTimeout, KindTool:
		return true
	}
	return false
}

// ExecutionError is a classified failure of one step or of a whole run.
type ExecutionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// NewExecutionError creates an ExecutionError of the given kind.
func NewExecutionError(kind ErrorKind, message string, cause error) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: message, Cause: cause}
}

// Error returns "<kind>: <message>".
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error { return e.Cause }

// KindOf returns the ErrorKind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
