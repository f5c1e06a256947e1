package parser

import (
	"errors"
	"fmt"

	"github.com/mizuy/microlisp/pkg/runtime"
)

// ErrEndOfInput signals that the source holds no further expression.
var ErrEndOfInput = errors.New("end of input")

// SourceLocation is a 1-based line and column.
type SourceLocation struct {
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// ParseError includes a message plus the location where reading failed.
type ParseError struct {
	Message  string
	Location SourceLocation
	// Truncated is set when the source ended inside an unfinished list.
	Truncated bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s at %s", runtime.SyntaxError, e.Message, e.Location)
}

// ErrorKind classifies every parse failure as a syntax error.
func (e *ParseError) ErrorKind() runtime.ErrorKind {
	return runtime.SyntaxError
}

// Unwrap lets errors.Is match ErrEndOfInput for truncated input.
func (e *ParseError) Unwrap() error {
	if e.Truncated {
		return ErrEndOfInput
	}
	return nil
}
