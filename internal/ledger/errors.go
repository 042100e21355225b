package ledger

import (
	"errors"
	"fmt"
)

// ErrInvalidAmount is returned before any request is made when a write
// carries a non-positive amount.
var ErrInvalidAmount = errors.New("amount must be a positive integer")

// NetworkError reports that the kas service could not be reached or did not
// answer within the client timeout.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ledger %s: network: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a response body that is not a well-formed ledger payload.
type DecodeError struct {
	Op     string
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ledger %s: decode response (status %d): %v", e.Op, e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is, or wraps, a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsDecode reports whether err is, or wraps, a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
