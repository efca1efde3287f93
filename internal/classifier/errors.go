package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when the service could not be reached or
	// kept failing after every attempt.
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrTimeout is returned when the last attempt ran out of time.
	ErrTimeout = errors.New("classifier timed out")
	// ErrRejected is returned for 4xx responses. These are not retried.
	ErrRejected = errors.New("classifier rejected request")
)

// StatusError is a non-2xx reply from the classifier.
type StatusError struct {
	StatusCode int
	// Message is the "error" field of the reply, if it had one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("classifier returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("classifier returned %d", e.StatusCode)
}

// Unwrap lets errors.Is match ErrRejected for client errors and
// ErrUnavailable for server errors.
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return ErrRejected
	}
	return ErrUnavailable
}
