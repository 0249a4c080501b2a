package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every profile fetch failure.
	ErrFetch = errors.New("profile fetch failed")
	// ErrUserNotFound is the cause when the API returns no user.
	ErrUserNotFound = errors.New("user not found")
)

// FetchError describes a failed fetch for one user. StatusCode is zero when
// no HTTP response was received.
type FetchError struct {
	Username   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: %s: status %d: %v", ErrFetch, e.Username, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrFetch, e.Username, e.Err)
}

// Unwrap exposes ErrFetch and the cause.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}
