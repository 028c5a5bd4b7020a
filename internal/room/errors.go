package room

import "fmt"

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindInvariant
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindForbidden:
		return "forbidden"
	case KindInvariant:
		return "invariant violation"
	case KindValidation:
		return "validation error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the failure returned to the actor that issued a rejected request.
// Message is safe to show to that actor.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrInvariant  = &Error{Kind: KindInvariant}
	ErrValidation = &Error{Kind: KindValidation}
)

func notFound(msg string) error   { return &Error{Kind: KindNotFound, Message: msg} }
func forbidden(msg string) error  { return &Error{Kind: KindForbidden, Message: msg} }
func invariant(msg string) error  { return &Error{Kind: KindInvariant, Message: msg} }
func validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

// Message returns the text to send back on an ack.
func Message(err error) string {
	if e, ok := err.(*Error); ok && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
