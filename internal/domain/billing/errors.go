package billing

import "errors"

var (
	// ErrValidation is returned when input is missing or malformed
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = errors.New("not found")
)

// Error carries a client-facing message and the kind it belongs to.
// errors.Is(err, ErrValidation) and errors.Is(err, ErrNotFound) match on the kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Validation returns a validation error with the given message
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NotFound returns a not-found error with the given message
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// Message extracts the client-facing message from err, or "" when err
// is not a billing error.
func Message(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return ""
}
