package types

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable classification attached to every failure the
// engine reports. Codes appear in manifests and logs and must not change
// between releases.
type ErrorCode string

const (
	ErrAuthFailed             ErrorCode = "AUTH_FAILED"
	ErrHTTPRetryableExhausted ErrorCode = "HTTP_RETRYABLE_EXHAUSTED"
	ErrHTTPNonRetryable       ErrorCode = "HTTP_NON_RETRYABLE"
	ErrParse                  ErrorCode = "PARSE_ERROR"
	ErrCacheLoadFailed        ErrorCode = "CACHE_LOAD_FAILED"
	ErrExtractorTimeout       ErrorCode = "EXTRACTOR_TIMEOUT"
	ErrCanceled               ErrorCode = "CANCELED"
	ErrDataConsistency        ErrorCode = "DATA_CONSISTENCY"
	ErrWriteFailed            ErrorCode = "WRITE_FAILED"
)

// ExtractError is the typed error carried through extraction results and
// written to the manifest. Context holds small diagnostic values (object IDs,
// endpoints, page numbers).
type ExtractError struct {
	Code      ErrorCode         `json:"code"`
	Extractor string            `json:"extractor,omitempty"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`

	wrapped error
}

// NewError creates an ExtractError with the given code and message.
func NewError(code ErrorCode, msg string) *ExtractError {
	return &ExtractError{Code: code, Message: msg}
}

// WrapError creates an ExtractError wrapping an underlying cause.
func WrapError(code ErrorCode, msg string, err error) *ExtractError {
	e := &ExtractError{Code: code, Message: msg, wrapped: err}
	if err != nil && msg == "" {
		e.Message = err.Error()
	}
	return e
}

// WithContext attaches a diagnostic key/value pair and returns the error.
func (e *ExtractError) WithContext(key, value string) *ExtractError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithExtractor records which extractor produced the error.
func (e *ExtractError) WithExtractor(name string) *ExtractError {
	e.Extractor = name
	return e
}

func (e *ExtractError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.wrapped
}

// CodeOf returns the ErrorCode of err when it is (or wraps) an ExtractError,
// or the empty string otherwise.
func CodeOf(err error) ErrorCode {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
