package feed

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind string

// Fetch failure kinds.
const (
	KindTransport Kind = "transport" // network failure or timeout
	KindStatus    Kind = "status"    // non-success HTTP status
	KindShape     Kind = "shape"     // required payload field absent
)

// ErrFetch is the sentinel all fetch errors wrap.
var ErrFetch = errors.New("fetch failed")

// FetchError describes a failed feed request. Fetches are read-only, so any
// FetchError is safe to retry.
type FetchError struct {
	Kind   Kind
	URL    string
	Status int    // HTTP status, set for KindStatus
	Field  string // missing field, set for KindShape
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	case KindShape:
		return fmt.Sprintf("fetch %s: response missing %s", e.URL, e.Field)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrFetch
}

// Is lets errors.Is(err, ErrFetch) match any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

func transportError(url string, err error) *FetchError {
	return &FetchError{Kind: KindTransport, URL: url, Err: err}
}

func statusError(url string, status int) *FetchError {
	return &FetchError{Kind: KindStatus, URL: url, Status: status}
}

func shapeError(url, field string) *FetchError {
	return &FetchError{Kind: KindShape, URL: url, Field: field}
}
