package dictionary

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the source has no entry for the item.
	ErrNotFound = errors.New("dictionary: entry not found")
	// ErrMalformed means the source answered with something unparseable.
	ErrMalformed = errors.New("dictionary: malformed response")
	// ErrRejected means the source refused the request (4xx other than 404/429).
	ErrRejected = errors.New("dictionary: request rejected")
)

// TransientError is a failure worth retrying: a network error, a timeout,
// a 5xx or a 429 response.
type TransientError struct {
	Source string
	Status int // 0 for network errors
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transient status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("%s: transient error: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformed) || errors.Is(err, ErrRejected)
}

// statusError maps a non-200 HTTP status to the error taxonomy.
func statusError(source string, status int) error {
	switch {
	case status == 404 || status == 410:
		return ErrNotFound
	case status == 429 || status >= 500:
		return &TransientError{Source: source, Status: status}
	default:
		return fmt.Errorf("%w: %s returned status %d", ErrRejected, source, status)
	}
}
