package session

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/conn-castle/alpine-term/internal/messages"
)

// ExitCodeSpawnFailed is the exit code of a session whose process never started.
const ExitCodeSpawnFailed = -1

var (
	// ErrSpawnFailed wraps the cause when a session process could not be started.
	ErrSpawnFailed = errors.New(messages.SessionSpawnFailed)
	// ErrNotRunning is returned by Write and Resize after the process exited.
	ErrNotRunning = errors.New(messages.SessionNotRunning)
)

var (
	startPTY    = pty.StartWithSize
	setSize     = pty.Setsize
	drainWindow = 250 * time.Millisecond
)

// Config describes the process a session runs.
type Config struct {
	Executable string
	// Args is the full argv, including argv[0].
	Args []string
	Env  []string
	Dir  string
	Name string
	Rows uint16
	Cols uint16
}

// Session is one console process. The handle is fixed at creation and the
// running state moves from running to exited exactly once.
type Session struct {
	handle   string
	emulator Emulator
	notify   NotifyFunc

	mu       sync.Mutex
	name     string
	title    string
	running  bool
	exitCode int
	spawnErr error
	cmd      *exec.Cmd
	pty      *os.File

	done chan struct{}
}

// Spawn starts cfg under a new pseudo-terminal. It always returns a session:
// when the process cannot be started the session is already exited with
// ExitCodeSpawnFailed, SpawnErr reports why, and no events are emitted.
func Spawn(cfg Config, factory EmulatorFactory, notify NotifyFunc) *Session {
	if notify == nil {
		notify = func(Event) {}
	}
	s := &Session{
		handle:   uuid.NewString(),
		name:     cfg.Name,
		notify:   notify,
		exitCode: ExitCodeSpawnFailed,
		done:     make(chan struct{}),
	}
	if factory == nil {
		factory = DiscardEmulator
	}
	s.emulator = factory(emulatorClient{s})

	if cfg.Executable == "" {
		s.failSpawn(cfg, errors.New(messages.SessionNoExecutable))
		return s
	}

	cmd := exec.Command(cfg.Executable)
	if len(cfg.Args) > 0 {
		cmd.Args = cfg.Args
	}
	cmd.Env = cfg.Env
	cmd.Dir = cfg.Dir

	size := &pty.Winsize{Rows: cfg.Rows, Cols: cfg.Cols}
	if size.Rows == 0 || size.Cols == 0 {
		size = &pty.Winsize{Rows: 24, Cols: 80}
	}
	ptmx, err := startPTY(cmd, size)
	if err != nil {
		s.failSpawn(cfg, err)
		return s
	}

	s.cmd = cmd
	s.pty = ptmx
	s.running = true
	s.exitCode = 0

	readDone := make(chan struct{})
	go s.readLoop(ptmx, readDone)
	go s.waitLoop(cmd, ptmx, readDone)
	return s
}

func (s *Session) failSpawn(cfg Config, err error) {
	s.spawnErr = fmt.Errorf(messages.SessionSpawnFailedFmt, ErrSpawnFailed, cfg.Executable, err)
	close(s.done)
}

func (s *Session) readLoop(ptmx *os.File, readDone chan<- struct{}) {
	defer close(readDone)
	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.emulator.Append(chunk)
			s.notify(Event{Kind: EventTextChanged, Session: s, Data: chunk})
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) waitLoop(cmd *exec.Cmd, ptmx *os.File, readDone <-chan struct{}) {
	err := cmd.Wait()
	code := exitCodeOf(cmd.ProcessState, err)

	// Give the reader a moment to deliver output written just before exit.
	// Descendants may keep the terminal open, so ptmx is closed regardless.
	select {
	case <-readDone:
	case <-time.After(drainWindow):
	}
	_ = ptmx.Close()

	s.mu.Lock()
	s.running = false
	s.exitCode = code
	s.mu.Unlock()
	close(s.done)

	s.notify(Event{Kind: EventFinished, Session: s})
}

// exitCodeOf reports the exit status, or the negated signal number when the
// process was killed by a signal.
func exitCodeOf(state *os.ProcessState, err error) int {
	if state == nil {
		if err != nil {
			return ExitCodeSpawnFailed
		}
		return 0
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return -int(status.Signal())
	}
	return state.ExitCode()
}

// Handle is the session's unique, immutable identifier.
func (s *Session) Handle() string {
	return s.handle
}

// Name is the display name given at creation or by SetName.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName changes the display name.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Title is the last title set by the program through an escape sequence.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// DisplayName is Name, falling back to Title, then to "[n]" with n the 1-based position.
func (s *Session) DisplayName(index int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.name != "":
		return s.name
	case s.title != "":
		return s.title
	default:
		return fmt.Sprintf(messages.SessionUnnamedTitleFmt, index+1)
	}
}

// Running reports whether the process has not yet exited.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ExitCode is the exit status once the session has exited.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// SpawnErr is non-nil when the process never started.
func (s *Session) SpawnErr() error {
	return s.spawnErr
}

// Done is closed once the session has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Emulator returns the collaborator fed with the session's output.
func (s *Session) Emulator() Emulator {
	return s.emulator
}

// Write sends input to the process.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	running, ptmx := s.running, s.pty
	s.mu.Unlock()
	if !running {
		return 0, ErrNotRunning
	}
	n, err := ptmx.Write(p)
	if err != nil {
		return n, fmt.Errorf(messages.SessionWriteFmt, s.handle, err)
	}
	return n, nil
}

// Resize updates the terminal size seen by the process.
func (s *Session) Resize(rows, cols uint16) error {
	s.mu.Lock()
	running, ptmx := s.running, s.pty
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	if err := setSize(ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf(messages.SessionResizeFmt, s.handle, err)
	}
	return nil
}

// FinishIfRunning kills the process if it is still running. The exit is
// reported through the usual Finished event.
func (s *Session) FinishIfRunning() {
	s.mu.Lock()
	running, cmd := s.running, s.cmd
	s.mu.Unlock()
	if !running || cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

type emulatorClient struct {
	s *Session
}

func (c emulatorClient) SetTitle(title string) {
	c.s.mu.Lock()
	c.s.title = title
	c.s.mu.Unlock()
	c.s.notify(Event{Kind: EventTitleChanged, Session: c.s, Text: title})
}

func (c emulatorClient) Bell() {
	c.s.notify(Event{Kind: EventBell, Session: c.s})
}

func (c emulatorClient) CopyToClipboard(text string) {
	c.s.notify(Event{Kind: EventClipboard, Session: c.s, Text: text})
}

func (c emulatorClient) ColorsChanged() {
	c.s.notify(Event{Kind: EventColorsChanged, Session: c.s})
}
