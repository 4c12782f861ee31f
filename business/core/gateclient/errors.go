package gateclient

import (
	"errors"
	"fmt"
)

// Set of error variables for talking to the gate.
var (
	ErrNetwork           = errors.New("network failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// RejectedError is returned when the gate refuses a solution that was
// submitted without any transport problems.
type RejectedError struct {
	Status  string
	Message string
}

// Error implements the error interface.
func (re *RejectedError) Error() string {
	if re.Message == "" {
		return fmt.Sprintf("solution rejected: status %q", re.Status)
	}
	return fmt.Sprintf("solution rejected: %s", re.Message)
}

// IsRejected checks if an error of type RejectedError exists.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsRetryable reports whether the user can try the flow again. Every failure
// the gate can produce is retryable except a cancelled context.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrMalformedResponse) || IsRejected(err)
}
