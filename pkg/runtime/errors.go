package runtime

import (
	"errors"
	"fmt"
)

// ErrorKind classifies evaluation failures.
type ErrorKind string

const (
	SyntaxError    ErrorKind = "SyntaxError"
	UnboundSymbol  ErrorKind = "UnboundSymbol"
	TypeError      ErrorKind = "TypeError"
	ArityError     ErrorKind = "ArityError"
	RecursionLimit ErrorKind = "RecursionLimit"
)

// Error is a recoverable failure of a single top-level expression.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds an *Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the taxonomy kind from err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var kinded interface{ ErrorKind() ErrorKind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind(), true
	}
	return "", false
}

// ErrorKind lets *Error satisfy the interface KindOf looks for.
func (e *Error) ErrorKind() ErrorKind { return e.Kind }

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}
