package install

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "environment.lock")
	first, err := acquireFileLock(path)
	require.NoError(t, err)

	origTimeout, origSleep := lockWaitTimeout, lockSleep
	t.Cleanup(func() { lockWaitTimeout, lockSleep = origTimeout, origSleep })
	lockWaitTimeout = 0
	lockSleep = func(time.Duration) {}

	_, err = acquireFileLock(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	require.NoError(t, first.release())
	second, err := acquireFileLock(path)
	require.NoError(t, err)
	require.NoError(t, second.release())
	assert.FileExists(t, path)
}

func TestFileLockUnexpectedFlockError(t *testing.T) {
	orig := flockFn
	t.Cleanup(func() { flockFn = orig })
	flockFn = func(int, int) error { return unix.ENOLCK }

	_, err := acquireFileLock(filepath.Join(t.TempDir(), "environment.lock"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, unix.ENOLCK))
}

func TestFileLockOpenError(t *testing.T) {
	_, err := acquireFileLock(filepath.Join(t.TempDir(), "missing", "environment.lock"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileLockReleaseNil(t *testing.T) {
	var lock *fileLock
	assert.NoError(t, lock.release())
}
