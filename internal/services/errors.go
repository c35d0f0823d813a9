package services

import (
	"errors"
	"fmt"
)

// Error codes recorded in generation_error_logs and returned in API bodies.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeInvalidConfig         = "INVALID_CONFIG"
	CodeInvalidSystemMessage  = "INVALID_SYSTEM_MESSAGE"
	CodeInvalidUserMessage    = "INVALID_USER_MESSAGE"
	CodeInvalidState          = "INVALID_STATE"
	CodeAPIError              = "API_ERROR"
	CodeNetworkError          = "NETWORK_ERROR"
	CodeEmptyResponse         = "EMPTY_RESPONSE"
	CodeResponseParse         = "RESPONSE_PARSE_ERROR"
	CodeInvalidResponseFormat = "INVALID_RESPONSE_FORMAT"
	CodePersistence           = "PERSISTENCE_ERROR"
	CodeUnexpected            = "UNEXPECTED_ERROR"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for field, msg := range e.Fields {
		return fmt.Sprintf("validation error: %s: %s", field, msg)
	}
	return "validation error"
}

func (e *ValidationError) ErrorCode() string { return CodeValidation }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// ConfigurationError reports a completion client that cannot be built or used
// with its current settings.
type ConfigurationError struct{ Message string }

func (e *ConfigurationError) Error() string     { return "invalid configuration: " + e.Message }
func (e *ConfigurationError) ErrorCode() string { return CodeInvalidConfig }

// InvalidMessageError is returned when a system or user message is empty.
type InvalidMessageError struct {
	Code    string
	Message string
}

func (e *InvalidMessageError) Error() string     { return e.Message }
func (e *InvalidMessageError) ErrorCode() string { return e.Code }

// InvalidStateError is returned when a request is sent without both messages.
type InvalidStateError struct{ Message string }

func (e *InvalidStateError) Error() string     { return e.Message }
func (e *InvalidStateError) ErrorCode() string { return CodeInvalidState }

// CompletionError wraps a failed completion call. StatusCode is the upstream
// HTTP status when one was received.
type CompletionError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion failed (%d): %s", e.StatusCode, e.Message)
	}
	return "completion failed: " + e.Message
}

func (e *CompletionError) Unwrap() error     { return e.Err }
func (e *CompletionError) ErrorCode() string { return e.Code }

type ResponseParseError struct {
	Message string
	Err     error
}

func (e *ResponseParseError) Error() string     { return "failed to parse AI response: " + e.Message }
func (e *ResponseParseError) Unwrap() error     { return e.Err }
func (e *ResponseParseError) ErrorCode() string { return CodeResponseParse }

type InvalidResponseFormatError struct{ Message string }

func (e *InvalidResponseFormatError) Error() string     { return "invalid AI response format: " + e.Message }
func (e *InvalidResponseFormatError) ErrorCode() string { return CodeInvalidResponseFormat }

// PersistenceError wraps a storage failure together with the operation name.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string     { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error     { return e.Err }
func (e *PersistenceError) ErrorCode() string { return CodePersistence }

type codedError interface {
	ErrorCode() string
}

// ErrorCode returns the code carried by err or any error it wraps.
func ErrorCode(err error) string {
	var coded codedError
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return CodeUnexpected
}
