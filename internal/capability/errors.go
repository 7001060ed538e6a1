package capability

import (
	"errors"
	"fmt"
)

var (
	ErrNotRegistered    = errors.New("capability: not registered")
	ErrNotAuthorized    = errors.New("capability: not authorized")
	ErrInvalidArguments = errors.New("capability: invalid arguments")
)

// NotRegisteredError reports a requested name that resolves to no entry under
// any spelling convention. It keeps the raw requested name so callers can
// echo it back.
type NotRegisteredError struct {
	Requested string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("capability: %q is not registered", e.Requested)
}

func (e *NotRegisteredError) Unwrap() error { return ErrNotRegistered }

// NotAuthorizedError reports a caller role outside a capability's allowed set.
type NotAuthorizedError struct {
	Name string
	Role string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("capability: role %q may not call %q", e.Role, e.Name)
}

func (e *NotAuthorizedError) Unwrap() error { return ErrNotAuthorized }

// InvalidArgumentsError reports arguments rejected by the parameter schema.
type InvalidArgumentsError struct {
	Name string
	Err  error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("capability: invalid arguments for %q: %v", e.Name, e.Err)
}

func (e *InvalidArgumentsError) Unwrap() error { return ErrInvalidArguments }

// HandlerError wraps a failure raised by the capability's own logic. The
// underlying message is considered safe to return to the caller.
type HandlerError struct {
	Name string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("capability: %s failed: %v", e.Name, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
