package hal

import (
	"errors"
	"fmt"
)

// ErrNoSuchDevice is returned for handles the backend does not know.
var ErrNoSuchDevice = errors.New("hal: no such device")

// ErrUnknownProperty is returned when a property does not exist at an address.
var ErrUnknownProperty = errors.New("hal: unknown property")

// StatusError wraps a raw failure status from the audio subsystem together
// with the logical operation that produced it.
type StatusError struct {
	Code int32
	Op   string
	Addr *Address
}

func (e *StatusError) Error() string {
	if e.Addr != nil {
		return fmt.Sprintf("hal: %s %s failed with status %d", e.Op, e.Addr, e.Code)
	}
	return fmt.Sprintf("hal: %s failed with status %d", e.Op, e.Code)
}

// NewStatusError builds a StatusError, copying addr when given.
func NewStatusError(code int32, op string, addr *Address) *StatusError {
	e := &StatusError{Code: code, Op: op}
	if addr != nil {
		a := *addr
		e.Addr = &a
	}
	return e
}
