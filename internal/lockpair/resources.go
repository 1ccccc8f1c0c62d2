package lockpair

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/alpine-term/internal/config"
	"github.com/conn-castle/alpine-term/internal/messages"
)

var (
	writeFileFn = os.WriteFile
	flockFn     = unix.Flock
	runCommand  = func(argv []string) ([]byte, error) {
		return exec.Command(argv[0], argv[1:]...).CombinedOutput()
	}
)

// SysfsWakeLock holds a kernel wakelock through /sys/power.
type SysfsWakeLock struct {
	// Dir defaults to /sys/power.
	Dir string
	Tag string

	mu   sync.Mutex
	held bool
}

// Name implements Resource.
func (l *SysfsWakeLock) Name() string {
	return messages.LockWakeResourceName
}

// Acquire writes the tag to wake_lock.
func (l *SysfsWakeLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil
	}
	if err := l.write("wake_lock"); err != nil {
		return err
	}
	l.held = true
	return nil
}

// Release writes the tag to wake_unlock.
func (l *SysfsWakeLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return ErrNotHeld
	}
	if err := l.write("wake_unlock"); err != nil {
		return err
	}
	l.held = false
	return nil
}

func (l *SysfsWakeLock) write(file string) error {
	dir := l.Dir
	if dir == "" {
		dir = "/sys/power"
	}
	path := filepath.Join(dir, file)
	if err := writeFileFn(path, []byte(l.Tag), 0o644); err != nil {
		return fmt.Errorf(messages.LockSysfsWriteFmt, path, err)
	}
	return nil
}

// FileLock claims an exclusive advisory lock on Path. A second host on the same
// data directory fails to acquire instead of waiting.
type FileLock struct {
	Path string

	mu   sync.Mutex
	file *os.File
}

// Name implements Resource.
func (l *FileLock) Name() string {
	return messages.LockNetworkResourceName
}

// Acquire opens Path and takes LOCK_EX without blocking.
func (l *FileLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return nil
	}
	file, err := os.OpenFile(l.Path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf(messages.LockFlockOpenFmt, l.Path, err)
	}
	if err := flockFn(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return fmt.Errorf(messages.LockBusyFmt, l.Path)
		}
		return fmt.Errorf(messages.LockFlockFmt, l.Path, err)
	}
	l.file = file
	return nil
}

// Release unlocks and closes the lock file.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrNotHeld
	}
	file := l.file
	l.file = nil
	if err := flockFn(int(file.Fd()), unix.LOCK_UN); err != nil {
		_ = file.Close()
		return fmt.Errorf(messages.LockFlockFmt, l.Path, err)
	}
	return file.Close()
}

// CommandResource runs external commands to acquire and release,
// e.g. termux-wake-lock and termux-wake-unlock.
type CommandResource struct {
	Label          string
	AcquireCommand []string
	ReleaseCommand []string

	mu   sync.Mutex
	held bool
}

// Name implements Resource.
func (c *CommandResource) Name() string {
	return c.Label
}

// Acquire runs AcquireCommand.
func (c *CommandResource) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held {
		return nil
	}
	if err := c.run(c.AcquireCommand); err != nil {
		return err
	}
	c.held = true
	return nil
}

// Release runs ReleaseCommand.
func (c *CommandResource) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.held {
		return ErrNotHeld
	}
	if err := c.run(c.ReleaseCommand); err != nil {
		return err
	}
	c.held = false
	return nil
}

func (c *CommandResource) run(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf(messages.LockCommandEmptyFmt, c.Label)
	}
	out, err := runCommand(argv)
	if err != nil {
		return fmt.Errorf(messages.LockCommandFailedFmt, strings.Join(argv, " "), err, bytes.TrimSpace(out))
	}
	return nil
}

// Noop tracks held state without touching the system.
type Noop struct {
	Label string

	mu   sync.Mutex
	held bool
}

// Name implements Resource.
func (n *Noop) Name() string {
	return n.Label
}

// Acquire marks the resource held.
func (n *Noop) Acquire() error {
	n.mu.Lock()
	n.held = true
	n.mu.Unlock()
	return nil
}

// Release clears the held mark.
func (n *Noop) Release() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.held {
		return ErrNotHeld
	}
	n.held = false
	return nil
}

// Build selects the wake and network resources named by cfg.
func Build(cfg config.LocksConfig, paths config.Paths) (wake Resource, network Resource, err error) {
	switch cfg.Wake {
	case config.BackendSysfs:
		wake = &SysfsWakeLock{Tag: messages.LockWakeTag}
	case config.BackendCommand:
		wake = &CommandResource{Label: messages.LockWakeResourceName, AcquireCommand: cfg.WakeAcquireCommand, ReleaseCommand: cfg.WakeReleaseCommand}
	case config.BackendNone, "":
		wake = &Noop{Label: messages.LockWakeResourceName}
	default:
		return nil, nil, fmt.Errorf(messages.LockUnknownBackendFmt, "wake", cfg.Wake)
	}

	switch cfg.Network {
	case config.BackendFlock:
		network = &FileLock{Path: paths.NetworkLock}
	case config.BackendCommand:
		network = &CommandResource{Label: messages.LockNetworkResourceName, AcquireCommand: cfg.NetworkAcquireCommand, ReleaseCommand: cfg.NetworkReleaseCommand}
	case config.BackendNone, "":
		network = &Noop{Label: messages.LockNetworkResourceName}
	default:
		return nil, nil, fmt.Errorf(messages.LockUnknownBackendFmt, "network", cfg.Network)
	}
	return wake, network, nil
}
