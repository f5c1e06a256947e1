package driver

import (
	"errors"
	"fmt"
	"io"

	"github.com/mizuy/microlisp/pkg/interpreter"
	"github.com/mizuy/microlisp/pkg/parser"
	"github.com/mizuy/microlisp/pkg/runtime"
)

// Stats counts what a session has processed.
type Stats struct {
	Expressions int
	Errors      int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d expression(s) read, %d error(s) reported", s.Expressions, s.Errors)
}

// Session runs the read-evaluate-print loop over one input stream.
type Session struct {
	interp *interpreter.Interpreter
	reader *parser.Reader
	out    io.Writer
	errOut io.Writer
	prompt string
	stats  Stats
}

// NewSession prepares a loop reading from in. Results go to out and
// diagnostics to errOut; prompt is written to out before each read.
func NewSession(interp *interpreter.Interpreter, in io.Reader, out, errOut io.Writer, prompt string) *Session {
	reader := parser.NewReader(in)
	reader.SetMaxDepth(interp.MaxDepth())
	return &Session{
		interp: interp,
		reader: reader,
		out:    out,
		errOut: errOut,
		prompt: prompt,
	}
}

// Stats reports the counters accumulated so far.
func (s *Session) Stats() Stats {
	return s.stats
}

// Run loops until the input is exhausted. Evaluation and syntax errors are
// reported and the loop continues; only failures of the input stream itself
// are returned.
func (s *Session) Run() error {
	for {
		eof, err := s.reader.AtEOF()
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if eof {
			return nil
		}
		if err := s.writePrompt(); err != nil {
			return err
		}
		expr, err := s.reader.Read()
		if err != nil {
			var parseErr *parser.ParseError
			if errors.As(err, &parseErr) {
				s.report(parseErr)
				if parseErr.Truncated {
					return nil
				}
				continue
			}
			if _, ok := runtime.KindOf(err); ok {
				s.report(err)
				continue
			}
			if errors.Is(err, parser.ErrEndOfInput) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		s.stats.Expressions++
		val, err := s.interp.Eval(expr)
		if err != nil {
			s.report(err)
			continue
		}
		if _, err := fmt.Fprintln(s.out, runtime.Render(val)); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
}

func (s *Session) writePrompt() error {
	if s.prompt == "" {
		return nil
	}
	if _, err := io.WriteString(s.out, s.prompt); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	if f, ok := s.out.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("write prompt: %w", err)
		}
	}
	return nil
}

func (s *Session) report(err error) {
	s.stats.Errors++
	if _, ok := runtime.KindOf(err); !ok {
		fmt.Fprintf(s.errOut, "error: %v\n", err)
		return
	}
	fmt.Fprintln(s.errOut, err.Error())
}
