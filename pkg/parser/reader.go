package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/mizuy/microlisp/pkg/runtime"
)

type tokenKind int

const (
	tokenOpen tokenKind = iota
	tokenClose
	tokenAtom
)

type token struct {
	kind tokenKind
	text string
	loc  SourceLocation
}

// Reader turns a character stream into expressions, one per Read call.
// It needs only "next character" and "push back one character" from its
// source, which io.RuneScanner provides.
type Reader struct {
	src      io.RuneScanner
	pos      SourceLocation
	prev     SourceLocation
	maxDepth int
}

// DefaultMaxDepth bounds list nesting for readers that are not configured.
const DefaultMaxDepth = 10000

// NewReader wraps r; sources that are not already rune scanners are buffered.
func NewReader(r io.Reader) *Reader {
	src, ok := r.(io.RuneScanner)
	if !ok {
		src = bufio.NewReader(r)
	}
	return &Reader{src: src, pos: SourceLocation{Line: 1, Column: 1}, maxDepth: DefaultMaxDepth}
}

// SetMaxDepth bounds how deeply lists may nest; n <= 0 keeps the current bound.
func (r *Reader) SetMaxDepth(n int) {
	if n > 0 {
		r.maxDepth = n
	}
}

// Location reports the position of the next unread character.
func (r *Reader) Location() SourceLocation {
	return r.pos
}

func (r *Reader) getc() (rune, error) {
	ch, _, err := r.src.ReadRune()
	if err != nil {
		return 0, err
	}
	r.prev = r.pos
	if ch == '\n' {
		r.pos.Line++
		r.pos.Column = 1
	} else {
		r.pos.Column++
	}
	return ch, nil
}

func (r *Reader) ungetc() error {
	if err := r.src.UnreadRune(); err != nil {
		return err
	}
	r.pos = r.prev
	return nil
}

// AtEOF reports whether the source is exhausted without consuming anything.
func (r *Reader) AtEOF() (bool, error) {
	_, err := r.getc()
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, r.ungetc()
}

func (r *Reader) nextToken() (token, error) {
	ch, err := r.getc()
	for err == nil && unicode.IsSpace(ch) {
		ch, err = r.getc()
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return token{}, ErrEndOfInput
		}
		return token{}, fmt.Errorf("read: %w", err)
	}
	loc := r.prev
	switch ch {
	case '(':
		return token{kind: tokenOpen, text: "(", loc: loc}, nil
	case ')':
		return token{kind: tokenClose, text: ")", loc: loc}, nil
	}

	var b strings.Builder
	for {
		b.WriteRune(ch)
		ch, err = r.getc()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return token{}, fmt.Errorf("read: %w", err)
		}
		if unicode.IsSpace(ch) {
			break
		}
		if ch == '(' || ch == ')' {
			if err := r.ungetc(); err != nil {
				return token{}, fmt.Errorf("read: %w", err)
			}
			break
		}
	}
	return token{kind: tokenAtom, text: b.String(), loc: loc}, nil
}

// Read returns the next expression. ErrEndOfInput is returned when the source
// is exhausted before a token starts; a list cut short by the end of input is
// a *ParseError that also matches ErrEndOfInput. Lists nested past the
// reader's bound are skipped whole and reported as a RecursionLimit error.
func (r *Reader) Read() (runtime.Value, error) {
	tok, err := r.nextToken()
	if err != nil {
		return nil, err
	}
	switch tok.kind {
	case tokenOpen:
		return r.readTail(tok.loc, 1)
	case tokenClose:
		return nil, &ParseError{Message: "unexpected ')'", Location: tok.loc}
	default:
		return runtime.NewAtom(tok.text), nil
	}
}

// readTail reads list elements up to the matching close paren. The opening
// location is kept for reporting unterminated lists; depth counts the lists
// currently open, this one included.
func (r *Reader) readTail(open SourceLocation, depth int) (*runtime.Pair, error) {
	var elements []runtime.Value
	for {
		tok, err := r.nextToken()
		if errors.Is(err, ErrEndOfInput) {
			return nil, &ParseError{
				Message:   "unexpected end of input, list opened here is missing ')'",
				Location:  open,
				Truncated: true,
			}
		}
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenClose:
			return runtime.List(elements...), nil
		case tokenOpen:
			if depth >= r.maxDepth {
				if err := r.skipLists(depth + 1); err != nil {
					return nil, err
				}
				return nil, runtime.Errorf(runtime.RecursionLimit, "list nesting exceeds %d levels at %s", r.maxDepth, tok.loc)
			}
			nested, err := r.readTail(tok.loc, depth+1)
			if err != nil {
				return nil, err
			}
			elements = append(elements, nested)
		default:
			elements = append(elements, runtime.NewAtom(tok.text))
		}
	}
}

// skipLists discards tokens until open lists are closed, leaving the reader
// at the start of the next expression. Running out of input is not an error.
func (r *Reader) skipLists(open int) error {
	for open > 0 {
		tok, err := r.nextToken()
		if errors.Is(err, ErrEndOfInput) {
			return nil
		}
		if err != nil {
			return err
		}
		switch tok.kind {
		case tokenOpen:
			open++
		case tokenClose:
			open--
		}
	}
	return nil
}

// ReadAll reads every expression in source.
func ReadAll(source string) ([]runtime.Value, error) {
	r := NewReader(strings.NewReader(source))
	var out []runtime.Value
	for {
		expr, err := r.Read()
		if err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				return out, parseErr
			}
			if errors.Is(err, ErrEndOfInput) {
				return out, nil
			}
			return out, err
		}
		out = append(out, expr)
	}
}

// ReadString reads exactly one expression from source.
func ReadString(source string) (runtime.Value, error) {
	exprs, err := ReadAll(source)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 {
		return nil, &ParseError{
			Message:  fmt.Sprintf("expected one expression, found %d", len(exprs)),
			Location: SourceLocation{Line: 1, Column: 1},
		}
	}
	return exprs[0], nil
}
