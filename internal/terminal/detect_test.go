package terminal

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

func stubTerminal(t *testing.T, isTTY bool) {
	t.Helper()
	orig := isTerminalFn
	t.Cleanup(func() { isTerminalFn = orig })
	isTerminalFn = func(int) bool { return isTTY }
}

func TestIsInteractive(t *testing.T) {
	stubTerminal(t, true)
	assert.True(t, IsInteractive())

	stubTerminal(t, false)
	assert.False(t, IsInteractive())
}

func TestIsTerminalNilFile(t *testing.T) {
	stubTerminal(t, true)
	assert.False(t, IsTerminal(nil))
}

func TestMakeRawNotTerminal(t *testing.T) {
	stubTerminal(t, false)
	restore, err := MakeRaw(os.Stdin)
	require.NoError(t, err)
	require.NotNil(t, restore)
	restore()
}

func TestMakeRawRestores(t *testing.T) {
	stubTerminal(t, true)
	origRaw, origRestore := makeRawFn, restoreFn
	t.Cleanup(func() { makeRawFn, restoreFn = origRaw, origRestore })

	state := &term.State{}
	restored := false
	makeRawFn = func(int) (*term.State, error) { return state, nil }
	restoreFn = func(_ int, s *term.State) error {
		restored = s == state
		return nil
	}

	restore, err := MakeRaw(os.Stdin)
	require.NoError(t, err)
	restore()
	assert.True(t, restored)
}

func TestMakeRawError(t *testing.T) {
	stubTerminal(t, true)
	orig := makeRawFn
	t.Cleanup(func() { makeRawFn = orig })
	makeRawFn = func(int) (*term.State, error) { return nil, errors.New("ioctl") }

	_, err := MakeRaw(os.Stdin)
	require.Error(t, err)
}

func TestSize(t *testing.T) {
	stubTerminal(t, false)
	rows, cols := Size(os.Stdout, 24, 80)
	assert.Equal(t, 24, rows)
	assert.Equal(t, 80, cols)

	stubTerminal(t, true)
	orig := getSizeFn
	t.Cleanup(func() { getSizeFn = orig })
	getSizeFn = func(int) (int, int, error) { return 132, 43, nil }
	rows, cols = Size(os.Stdout, 24, 80)
	assert.Equal(t, 43, rows)
	assert.Equal(t, 132, cols)

	getSizeFn = func(int) (int, int, error) { return 0, 0, errors.New("enotty") }
	rows, cols = Size(os.Stdout, 24, 80)
	assert.Equal(t, 24, rows)
	assert.Equal(t, 80, cols)
}
