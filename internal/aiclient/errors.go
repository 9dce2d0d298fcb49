package aiclient

import (
	"errors"
	"fmt"
)

// Common errors for remote AI calls.
var (
	// ErrTransport is returned when the connection fails or the status is not 200.
	ErrTransport = errors.New("transport failure")

	// ErrEmptyResult is returned when a call succeeded but carried no usable text.
	ErrEmptyResult = errors.New("empty result")

	// ErrTruncatedBody is returned when a binary body ends before its declared length.
	ErrTruncatedBody = errors.New("response body shorter than declared length")

	// ErrUnknownLength is returned when a binary response does not declare its length.
	ErrUnknownLength = errors.New("response did not declare a content length")

	// ErrBodyTooLarge is returned when a declared binary body exceeds the allowed size.
	ErrBodyTooLarge = errors.New("response body exceeds the audio buffer limit")
)

// RequestError describes a failed exchange with one endpoint.
type RequestError struct {
	// Path is the endpoint path, e.g. /stt_raw.
	Path string

	// StatusCode is the HTTP status, or 0 when no response arrived.
	StatusCode int

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Path, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Cause)
	}
	return e.Path + ": request failed"
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Is reports every RequestError as a transport failure.
func (e *RequestError) Is(target error) bool {
	return target == ErrTransport
}
