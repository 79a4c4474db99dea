// ABOUTME: Error taxonomy for remote service calls.
// ABOUTME: Distinguishes network, persistence, and translation failures.

package api

import (
	"errors"
	"fmt"
)

// ErrNetworkUnavailable indicates the request never reached the server.
var ErrNetworkUnavailable = errors.New("network unavailable")

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// PersistError indicates a durable write on the message service failed.
// It is the only error class surfaced synchronously to SendMessage
// callers; the typed text must be restored so it is not lost.
type PersistError struct {
	StatusCode int
	Message    string
}

func (e *PersistError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("persist failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("persist failed (status %d)", e.StatusCode)
}

// TranslationError indicates the translation service failed. Callers
// absorb it and fall back to the source-language text.
type TranslationError struct {
	StatusCode int
	Message    string
}

func (e *TranslationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("translation failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("translation failed (status %d)", e.StatusCode)
}
