package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrFetchUnavailable marks a source-scoped fetch failure. The orchestrator
// records it and moves on to the next source.
var ErrFetchUnavailable = errors.New("fetch unavailable")

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrFetchUnavailable) match every HTTP failure.
func (e *HTTPError) Is(target error) bool {
	return target == ErrFetchUnavailable
}

// FetchError wraps a transport or decoding failure for one vendor handle.
type FetchError struct {
	Kind   ATSKind
	Handle string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch for %s: %v", e.Kind, e.Handle, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchUnavailable, e.Err}
}
