// Package host runs the session host: it owns the main loop, the session
// registry, the lock pair, and the status surface, and executes host commands.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/conn-castle/alpine-term/internal/command"
	"github.com/conn-castle/alpine-term/internal/config"
	"github.com/conn-castle/alpine-term/internal/envfile"
	"github.com/conn-castle/alpine-term/internal/install"
	"github.com/conn-castle/alpine-term/internal/lockpair"
	"github.com/conn-castle/alpine-term/internal/logging"
	"github.com/conn-castle/alpine-term/internal/mainloop"
	"github.com/conn-castle/alpine-term/internal/messages"
	"github.com/conn-castle/alpine-term/internal/notify"
	"github.com/conn-castle/alpine-term/internal/observer"
	"github.com/conn-castle/alpine-term/internal/registry"
	"github.com/conn-castle/alpine-term/internal/session"
)

// ErrTerminated is returned by calls made after the host shut down.
var ErrTerminated = errors.New(messages.HostTerminated)

var loadEnvFn = envfile.Load

// Options configures a Host.
type Options struct {
	Paths  config.Paths
	Config config.Config
	// Locks defaults to the backends selected by Config.Locks.
	Locks *lockpair.Manager
	// Publisher defaults to a FilePublisher writing Paths.Status.
	Publisher notify.Publisher
	// Spawn overrides process creation; nil spawns under a PTY.
	Spawn registry.SpawnFunc
	// Scratch is the filesystem used to clear the tmp directory; nil uses the OS.
	Scratch install.System
	Rows    uint16
	Cols    uint16
	Logger  *slog.Logger
}

// Host is the process-wide session host. Create it with New and drive it with Run.
type Host struct {
	paths  config.Paths
	cfg    config.Config
	extra  map[string]string
	rows   uint16
	cols   uint16
	logger *slog.Logger

	loop     *mainloop.Loop
	bridge   *observer.Bridge
	registry *registry.Registry
	locks    *lockpair.Manager
	sync     *notify.Synchronizer
	display  *Display
	handlers map[command.Command]func() error

	wantsToStop atomic.Bool
	terminated  atomic.Bool
	done        chan struct{}
}

// New builds a host. Nothing runs until Run is called.
func New(opts Options) (*Host, error) {
	logger := logging.OrDiscard(opts.Logger)

	extra, err := loadEnvFn(opts.Paths.SessionEnv)
	if err != nil {
		return nil, fmt.Errorf(messages.HostLoadSessionEnvFmt, opts.Paths.SessionEnv, err)
	}

	locks := opts.Locks
	if locks == nil {
		wake, network, err := lockpair.Build(opts.Config.Locks, opts.Paths)
		if err != nil {
			return nil, err
		}
		locks = lockpair.New(wake, network, logger)
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = notify.FilePublisher{Path: opts.Paths.Status}
	}

	scratch := opts.Scratch
	if scratch == nil {
		scratch = install.RealSystem{}
	}

	h := &Host{
		paths:   opts.Paths,
		cfg:     opts.Config,
		extra:   extra,
		rows:    opts.Rows,
		cols:    opts.Cols,
		logger:  logger,
		loop:    mainloop.New(),
		bridge:  &observer.Bridge{},
		locks:   locks,
		display: newDisplay(),
		done:    make(chan struct{}),
	}
	h.sync = notify.NewSynchronizer(publisher, h.terminate, logger)
	h.registry = registry.New(registry.Options{
		Loop:     h.loop,
		Bridge:   h.bridge,
		Spawn:    opts.Spawn,
		Emulator: session.NewPassthroughFactory(opts.Config.Session.TranscriptBytes),
		Logger:   logger,
		Hooks: registry.Hooks{
			Republish: h.republish,
			Terminate: h.terminate,
			ClearScratch: func() error {
				return install.ClearScratch(scratch, opts.Paths.TmpDir())
			},
			LockHeld: locks.Held,
			Finished: func(*session.Session) { h.display.ResetFontSize() },
		},
	})
	h.locks.OnChange(func(bool) { h.republish() })
	h.handlers = map[command.Command]func() error{
		command.Stop:        h.stop,
		command.LockAcquire: h.locks.Acquire,
		command.LockRelease: h.locks.Release,
	}
	return h, nil
}

// Run publishes the initial status and runs the main loop until the host
// terminates or ctx is cancelled. Cancellation shuts the host down.
func (h *Host) Run(ctx context.Context) error {
	h.loop.Post(func() {
		h.sync.PublishInitial(h.state())
	})
	err := h.loop.Run(ctx)
	// The loop has stopped, so shutdown runs on this goroutine alone.
	h.terminate()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Done is closed once the host has terminated.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Terminated reports whether the host has shut down.
func (h *Host) Terminated() bool {
	return h.terminated.Load()
}

// WantsToStop reports whether a Stop command was received. Front ends use it
// to exit instead of switching sessions when one finishes.
func (h *Host) WantsToStop() bool {
	return h.wantsToStop.Load()
}

// Post schedules fn on the main loop. It reports false once the host has terminated.
func (h *Host) Post(fn func()) bool {
	return h.loop.Post(fn)
}

// Display returns the shared front end view state.
func (h *Host) Display() *Display {
	return h.display
}

// LockHeld reports whether the lock pair is held.
func (h *Host) LockHeld() bool {
	return h.locks.Held()
}

// Attach forwards session events to sink until the returned function is called.
func (h *Host) Attach(sink observer.Sink) (detach func()) {
	return h.bridge.Attach(sink)
}

// Dispatch executes cmd on the main loop.
func (h *Host) Dispatch(ctx context.Context, cmd command.Command) error {
	handler, ok := h.handlers[cmd]
	if !ok {
		return fmt.Errorf(messages.HostUnknownCommandFmt, cmd.String(), strings.Join(command.Names(), ", "))
	}
	var err error
	if doErr := h.do(ctx, func() { err = handler() }); doErr != nil {
		return doErr
	}
	if err != nil {
		h.logger.Warn(messages.HostLogCommandFailed, "command", cmd.String(), "error", err)
	}
	return err
}

// Launch starts the serial consoles followed by the QEMU monitor session.
// Sessions whose process could not be started stay registered as exited;
// their errors are returned joined.
func (h *Host) Launch(ctx context.Context, monitor session.Kind) error {
	var errs []error
	err := h.do(ctx, func() {
		for i := 0; i < h.cfg.Session.SerialConsoles; i++ {
			s := h.create(session.KindSerial, i, fmt.Sprintf(messages.HostSerialSessionFmt, i))
			if err := s.SpawnErr(); err != nil {
				errs = append(errs, fmt.Errorf(messages.HostLaunchFailedFmt, s.Name(), err))
			}
		}
		s := h.create(monitor, 0, messages.HostMonitorSessionName)
		if err := s.SpawnErr(); err != nil {
			errs = append(errs, fmt.Errorf(messages.HostLaunchFailedFmt, s.Name(), err))
		}
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

// CreateSession starts one session of kind.
func (h *Host) CreateSession(ctx context.Context, kind session.Kind, number int, name string) (*session.Session, error) {
	var s *session.Session
	if err := h.do(ctx, func() { s = h.create(kind, number, name) }); err != nil {
		return nil, err
	}
	return s, nil
}

// RemoveSession removes the session and returns the one now occupying its
// slot, or nil when none are left.
func (h *Host) RemoveSession(ctx context.Context, handle string) (*session.Session, error) {
	var (
		next      *session.Session
		removeErr error
	)
	err := h.do(ctx, func() {
		var index int
		index, removeErr = h.registry.Remove(handle)
		if removeErr == nil {
			next = h.registry.AfterRemoval(index)
		}
	})
	if err != nil {
		return nil, err
	}
	return next, removeErr
}

// Sessions returns the registered sessions in order.
func (h *Host) Sessions(ctx context.Context) ([]*session.Session, error) {
	var all []*session.Session
	if err := h.do(ctx, func() { all = h.registry.All() }); err != nil {
		return nil, err
	}
	return all, nil
}

// IndexOf returns the position of handle, or -1.
func (h *Host) IndexOf(ctx context.Context, handle string) (int, error) {
	index := -1
	if err := h.do(ctx, func() { index = h.registry.IndexOf(handle) }); err != nil {
		return -1, err
	}
	return index, nil
}

// Next returns the session after (or before) focused, wrapping around.
func (h *Host) Next(ctx context.Context, focused string, forward bool) (*session.Session, error) {
	var s *session.Session
	if err := h.do(ctx, func() { s = h.registry.Next(focused, forward) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (h *Host) create(kind session.Kind, number int, name string) *session.Session {
	cfg := session.BuildConfig(session.LaunchSpec{
		Kind:   kind,
		Number: number,
		Name:   name,
		Paths:  h.paths,
		Config: h.cfg,
		Extra:  h.extra,
		Rows:   h.rows,
		Cols:   h.cols,
	})
	return h.registry.Create(cfg)
}

func (h *Host) do(ctx context.Context, fn func()) error {
	if h.terminated.Load() {
		return ErrTerminated
	}
	if err := h.loop.Do(ctx, fn); err != nil {
		if errors.Is(err, mainloop.ErrClosed) {
			return ErrTerminated
		}
		return err
	}
	return nil
}

func (h *Host) state() notify.State {
	return notify.State{Sessions: h.registry.Len(), LockHeld: h.locks.Held()}
}

func (h *Host) republish() {
	if h.terminated.Load() {
		return
	}
	h.sync.Republish(h.state())
}

func (h *Host) stop() error {
	h.wantsToStop.Store(true)
	h.terminate()
	return nil
}

// terminate shuts the host down once: it kills every session, drops the
// locks, clears the status, and stops the loop.
func (h *Host) terminate() {
	if !h.terminated.CompareAndSwap(false, true) {
		return
	}
	h.logger.Info(messages.HostLogTerminating, "sessions", h.registry.Len(), "lock_held", h.locks.Held())
	h.registry.FinishAll()
	if err := h.locks.Stop(); err != nil {
		h.logger.Warn(messages.LockLogReleaseFailed, "error", err)
	}
	h.sync.Clear()
	close(h.done)
	h.loop.Close()
}
