package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// linePrompter is the part of *liner.State the line source needs.
type linePrompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Terminal is an interactive line editor on standard input.
type Terminal struct {
	state   *liner.State
	history string
}

// Interactive reports whether standard input is a terminal liner can drive.
func Interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	if !liner.TerminalSupported() {
		return false
	}
	_, err = liner.TerminalMode()
	return err == nil
}

// OpenTerminal starts line editing, loading history from historyFile when
// set. The terminal is usable even when the returned history error is non-nil.
func OpenTerminal(historyFile string) (*Terminal, error) {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	return &Terminal{state: state, history: historyFile}, loadHistory(state, historyFile)
}

type historyReader interface {
	ReadHistory(r io.Reader) (int, error)
}

// loadHistory feeds path into h. A missing file is not an error.
func loadHistory(h historyReader, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load history: %w", err)
	}
	defer f.Close()
	if _, err := h.ReadHistory(f); err != nil {
		return fmt.Errorf("load history %s: %w", path, err)
	}
	return nil
}

// Close restores the terminal and saves history.
func (t *Terminal) Close() error {
	var saveErr error
	if t.history != "" {
		f, err := os.Create(t.history)
		if err != nil {
			saveErr = fmt.Errorf("save history: %w", err)
		} else {
			if _, err := t.state.WriteHistory(f); err != nil {
				saveErr = fmt.Errorf("save history: %w", err)
			}
			f.Close()
		}
	}
	if err := t.state.Close(); err != nil {
		return err
	}
	return saveErr
}

// Input returns a stream of the lines typed at the terminal. prompt starts
// each expression; continuation is shown while a list is still open.
func (t *Terminal) Input(prompt, continuation string) io.Reader {
	return newLineSource(t.state, prompt, continuation)
}

// lineSource feeds prompted lines to the reader one at a time.
type lineSource struct {
	prompter     linePrompter
	prompt       string
	continuation string
	depth        int
	pending      string
	done         bool
}

func newLineSource(p linePrompter, prompt, continuation string) *lineSource {
	return &lineSource{prompter: p, prompt: prompt, continuation: continuation}
}

func (l *lineSource) Read(p []byte) (int, error) {
	for l.pending == "" {
		if l.done {
			return 0, io.EOF
		}
		prompt := l.prompt
		if l.depth > 0 {
			prompt = l.continuation
		}
		line, err := l.prompter.Prompt(prompt)
		if err != nil {
			// Ctrl-C and Ctrl-D both end the session.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				l.done = true
				return 0, io.EOF
			}
			return 0, err
		}
		if strings.TrimSpace(line) != "" {
			l.prompter.AppendHistory(line)
		}
		l.track(line)
		l.pending = line + "\n"
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// track follows paren nesting so the continuation prompt shows inside lists.
func (l *lineSource) track(line string) {
	for _, ch := range line {
		switch ch {
		case '(':
			l.depth++
		case ')':
			if l.depth > 0 {
				l.depth--
			}
		}
	}
}
