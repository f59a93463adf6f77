package core

import (
	"errors"
	"fmt"
)

// Error is the canonical error carried across the assistant pipeline and
// the gateway surface.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	// RetryAfter carries the suggested backoff in seconds for rate limit
	// responses.
	RetryAfter *int `json:"retry_after,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest  ErrorType = "invalid_request_error"
	ErrAuthentication  ErrorType = "authentication_error"
	ErrNotFound        ErrorType = "not_found_error"
	ErrSessionTerminal ErrorType = "session_terminal_error"
	ErrEmptyTranscript ErrorType = "empty_transcript_error"
	ErrTranscription   ErrorType = "transcription_error"
	ErrGeneration      ErrorType = "generation_error"
	ErrSynthesis       ErrorType = "synthesis_error"
	ErrTimeout         ErrorType = "timeout_error"
	ErrStorage         ErrorType = "storage_error"
	ErrRateLimit       ErrorType = "rate_limit_error"
	ErrAPI             ErrorType = "api_error"
)

// IsType reports whether err carries a canonical *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var ce *Error
	return errors.As(err, &ce) && ce != nil && ce.Type == t
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message, Param: param}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewSessionTerminalError creates an error for operations on a session in a
// terminal state.
func NewSessionTerminalError(state string) *Error {
	return &Error{
		Type:    ErrSessionTerminal,
		Message: fmt.Sprintf("session is %s and accepts no further operations", state),
		Code:    state,
	}
}

// NewEmptyTranscriptError creates an error for turns whose audio produced no
// usable transcript.
func NewEmptyTranscriptError() *Error {
	return &Error{Type: ErrEmptyTranscript, Message: "transcription produced an empty transcript"}
}

// NewTranscriptionError wraps a speech-to-text provider failure.
func NewTranscriptionError(underlying error) *Error {
	return &Error{
		Type:    ErrTranscription,
		Message: fmt.Sprintf("transcription failed: %v", underlying),
		cause:   underlying,
	}
}

// NewGenerationError wraps an assistant engine failure.
func NewGenerationError(underlying error) *Error {
	return &Error{
		Type:    ErrGeneration,
		Message: fmt.Sprintf("generation failed: %v", underlying),
		cause:   underlying,
	}
}

// NewSynthesisError wraps a text-to-speech provider failure.
func NewSynthesisError(underlying error) *Error {
	return &Error{
		Type:    ErrSynthesis,
		Message: fmt.Sprintf("synthesis failed: %v", underlying),
		cause:   underlying,
	}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string) *Error {
	return &Error{Type: ErrTimeout, Message: message}
}

// NewStorageError wraps a session store failure after retries are exhausted.
func NewStorageError(underlying error) *Error {
	return &Error{
		Type:    ErrStorage,
		Message: fmt.Sprintf("session store: %v", underlying),
		cause:   underlying,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *Error {
	return &Error{Type: ErrRateLimit, Message: message}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}
