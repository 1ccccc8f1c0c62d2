package lockpair

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/alpine-term/internal/config"
)

func TestSysfsWakeLock(t *testing.T) {
	dir := t.TempDir()
	lock := &SysfsWakeLock{Dir: dir, Tag: "alpine-term"}

	assert.ErrorIs(t, lock.Release(), ErrNotHeld)
	require.NoError(t, lock.Acquire())
	got, err := os.ReadFile(filepath.Join(dir, "wake_lock"))
	require.NoError(t, err)
	assert.Equal(t, "alpine-term", string(got))

	require.NoError(t, lock.Release())
	got, err = os.ReadFile(filepath.Join(dir, "wake_unlock"))
	require.NoError(t, err)
	assert.Equal(t, "alpine-term", string(got))
	assert.Equal(t, "wake lock", lock.Name())
}

func TestSysfsWakeLockWriteFailure(t *testing.T) {
	orig := writeFileFn
	t.Cleanup(func() { writeFileFn = orig })
	writeFileFn = func(string, []byte, os.FileMode) error { return os.ErrPermission }

	lock := &SysfsWakeLock{Tag: "alpine-term"}
	err := lock.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "/sys/power/wake_lock")
}

func TestFileLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.lock")
	first := &FileLock{Path: path}
	second := &FileLock{Path: path}

	require.NoError(t, first.Acquire())
	require.NoError(t, first.Acquire())
	err := second.Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "held by another process")

	require.NoError(t, first.Release())
	assert.ErrorIs(t, first.Release(), ErrNotHeld)
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestFileLockOpenFailure(t *testing.T) {
	lock := &FileLock{Path: filepath.Join(t.TempDir(), "missing", "network.lock")}
	err := lock.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCommandResource(t *testing.T) {
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })
	var ran [][]string
	runCommand = func(argv []string) ([]byte, error) {
		ran = append(ran, argv)
		return nil, nil
	}

	res := &CommandResource{
		Label:          "wake lock",
		AcquireCommand: []string{"termux-wake-lock"},
		ReleaseCommand: []string{"termux-wake-unlock"},
	}
	assert.ErrorIs(t, res.Release(), ErrNotHeld)
	require.NoError(t, res.Acquire())
	require.NoError(t, res.Acquire())
	require.NoError(t, res.Release())
	assert.Equal(t, [][]string{{"termux-wake-lock"}, {"termux-wake-unlock"}}, ran)
}

func TestCommandResourceFailure(t *testing.T) {
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })
	runCommand = func([]string) ([]byte, error) { return []byte("api not installed\n"), errors.New("exit status 1") }

	res := &CommandResource{Label: "wake lock", AcquireCommand: []string{"termux-wake-lock", "-v"}}
	err := res.Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "termux-wake-lock -v")
	assert.Contains(t, err.Error(), "api not installed")

	empty := &CommandResource{Label: "network lock"}
	err = empty.Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network lock command is not configured")
}

func TestCommandResourceRealProcess(t *testing.T) {
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("no /bin/true")
	}
	res := &CommandResource{Label: "wake lock", AcquireCommand: []string{"/bin/true"}, ReleaseCommand: []string{"/bin/true"}}
	require.NoError(t, res.Acquire())
	require.NoError(t, res.Release())
}

func TestNoop(t *testing.T) {
	n := &Noop{Label: "network lock"}
	assert.ErrorIs(t, n.Release(), ErrNotHeld)
	require.NoError(t, n.Acquire())
	require.NoError(t, n.Release())
	assert.Equal(t, "network lock", n.Name())
}

func TestBuild(t *testing.T) {
	paths := config.DefaultPaths("/data")

	wake, network, err := Build(config.Default().Locks, paths)
	require.NoError(t, err)
	assert.IsType(t, &SysfsWakeLock{}, wake)
	require.IsType(t, &FileLock{}, network)
	assert.Equal(t, "/data/network.lock", network.(*FileLock).Path)

	wake, network, err = Build(config.LocksConfig{
		Wake:                  config.BackendCommand,
		WakeAcquireCommand:    []string{"a"},
		WakeReleaseCommand:    []string{"b"},
		Network:               config.BackendCommand,
		NetworkAcquireCommand: []string{"c"},
		NetworkReleaseCommand: []string{"d"},
	}, paths)
	require.NoError(t, err)
	assert.Equal(t, "wake lock", wake.Name())
	assert.Equal(t, "network lock", network.Name())

	wake, network, err = Build(config.LocksConfig{Wake: config.BackendNone, Network: config.BackendNone}, paths)
	require.NoError(t, err)
	assert.IsType(t, &Noop{}, wake)
	assert.IsType(t, &Noop{}, network)

	_, _, err = Build(config.LocksConfig{Wake: "magic"}, paths)
	assert.Error(t, err)
	_, _, err = Build(config.LocksConfig{Wake: config.BackendNone, Network: "magic"}, paths)
	assert.Error(t, err)
}

func TestManagerWithRealResources(t *testing.T) {
	dir := t.TempDir()
	m := New(&SysfsWakeLock{Dir: dir, Tag: "t"}, &FileLock{Path: filepath.Join(dir, "network.lock")}, nil)
	require.NoError(t, m.Acquire())

	other := New(&Noop{Label: "wake lock"}, &FileLock{Path: filepath.Join(dir, "network.lock")}, nil)
	err := other.Acquire()
	assert.ErrorIs(t, err, ErrAcquireFailed)
	assert.False(t, other.Held())

	require.NoError(t, m.Release())
	require.NoError(t, other.Acquire())
	require.NoError(t, other.Release())
}
