package upstream

import (
	"errors"
	"fmt"
)

// RejectedError is a definitive 4xx from the upstream service. Never retried:
// it reflects client or tenant misconfiguration, not a transient fault, and
// the upstream's own status and body are surfaced to the caller.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upstream rejected request: status %d: %s", e.Status, e.Body)
}

// UnavailableError means the retry budget was exhausted without a usable
// response: repeated 5xx responses or transport failures.
type UnavailableError struct {
	LastStatus int
	LastBody   string
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream unavailable: %v", e.Err)
	}
	return fmt.Sprintf("upstream unavailable: last status %d", e.LastStatus)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is an exhausted-retries upstream failure.
// Reads may fall back to the local cache on this condition.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsRejected reports whether err is a definitive upstream 4xx.
func IsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
