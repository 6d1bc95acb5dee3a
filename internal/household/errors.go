package household

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service matches exactly one of these
// with errors.Is.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrAlreadyInHousehold = errors.New("already in a household")
	ErrNotInHousehold     = errors.New("not in a household")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidAssignment  = errors.New("invalid assignment")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// Error carries the operation, the kind and a message fit for the user.
type Error struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Msg != "" {
		base += ": " + e.Msg
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

func storeError(op string, err error) error {
	return &Error{Op: op, Kind: ErrStoreUnavailable, Msg: "Server error, please try again.", Err: err}
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "Server error, please try again."
}
