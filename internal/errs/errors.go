package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	// ErrInvalid marks malformed or missing caller input (HTTP 400).
	ErrInvalid = errors.New("invalid")
	// ErrNotFound marks an operation addressed at a record that does not exist (HTTP 404).
	ErrNotFound = errors.New("not_found")
	// ErrDuplicate marks a create that collided with an existing id (HTTP 409).
	ErrDuplicate = errors.New("duplicate")
)

// FieldError is a validation failure tied to one input field. It unwraps to ErrInvalid.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Msg }

func (e *FieldError) Unwrap() error { return ErrInvalid }

// Invalid builds a FieldError.
func Invalid(field, msg string) error { return &FieldError{Field: field, Msg: msg} }
