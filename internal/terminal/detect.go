// Package terminal wraps the controlling terminal used by the run and install commands.
package terminal

import (
	"os"

	"golang.org/x/term"
)

var (
	isTerminalFn = term.IsTerminal
	makeRawFn    = term.MakeRaw
	restoreFn    = term.Restore
	getSizeFn    = term.GetSize
)

// IsInteractive reports whether stdin and stdout are both interactive terminals.
func IsInteractive() bool {
	return isTerminalFn(int(os.Stdin.Fd())) && isTerminalFn(int(os.Stdout.Fd()))
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && isTerminalFn(int(f.Fd()))
}

// MakeRaw switches f into raw mode and returns a func that restores the previous state.
// When f is not a terminal the returned restore func is a no-op.
func MakeRaw(f *os.File) (func(), error) {
	if !IsTerminal(f) {
		return func() {}, nil
	}
	fd := int(f.Fd())
	state, err := makeRawFn(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = restoreFn(fd, state) }, nil
}

// Size returns the rows and columns of f, or the fallback when f is not a terminal.
func Size(f *os.File, fallbackRows, fallbackCols int) (rows, cols int) {
	if !IsTerminal(f) {
		return fallbackRows, fallbackCols
	}
	width, height, err := getSizeFn(int(f.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return fallbackRows, fallbackCols
	}
	return height, width
}
