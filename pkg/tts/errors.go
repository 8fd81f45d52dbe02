package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoBaseURL is returned when the backend URL is missing.
	ErrNoBaseURL = errors.New("tts: base URL required")

	// ErrBackendUnavailable is returned when the backend cannot be reached.
	ErrBackendUnavailable = errors.New("tts: backend unavailable")

	// ErrSynthesisRequestFailed matches any *RequestError.
	ErrSynthesisRequestFailed = errors.New("tts: synthesis request failed")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("tts: stream closed")
)

// maxErrorBody caps how much of an error response body is retained.
const maxErrorBody = 4 << 10

// RequestError is a non-success response from the backend.
type RequestError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the (possibly truncated) response body.
	Body string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tts: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("tts: request failed with status %d: %s", e.StatusCode, e.Body)
}

// Is reports whether target is ErrSynthesisRequestFailed.
func (e *RequestError) Is(target error) bool {
	return target == ErrSynthesisRequestFailed
}
