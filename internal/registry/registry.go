// Package registry owns the ordered set of sessions run by the host.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/conn-castle/alpine-term/internal/logging"
	"github.com/conn-castle/alpine-term/internal/messages"
	"github.com/conn-castle/alpine-term/internal/observer"
	"github.com/conn-castle/alpine-term/internal/session"
)

// ErrNotFound is returned for handles that are not registered.
var ErrNotFound = errors.New(messages.RegistryNotFound)

// Poster schedules fn on the goroutine that owns the registry.
type Poster interface {
	Post(fn func()) bool
}

// SpawnFunc starts the process for a new session.
type SpawnFunc func(cfg session.Config, notify session.NotifyFunc) *session.Session

// Hooks connect the registry to its owner. Any hook may be nil.
type Hooks struct {
	// Republish refreshes the status surface after a change.
	Republish func()
	// Terminate is called when the last session is removed.
	Terminate func()
	// ClearScratch clears the scratch directory before the first session of a cold start.
	ClearScratch func() error
	// LockHeld reports whether the lock pair is held.
	LockHeld func() bool
	// Finished runs on the owning goroutine after a registered session exits.
	Finished func(s *session.Session)
}

// Options configures a Registry.
type Options struct {
	Loop     Poster
	Bridge   *observer.Bridge
	Spawn    SpawnFunc
	Emulator session.EmulatorFactory
	Hooks    Hooks
	Logger   *slog.Logger
}

// Registry keeps sessions in creation order, compacted on removal. It is not
// safe for concurrent use: every method must run on the owning goroutine
// (the host's main loop). Session events are posted there before they are
// forwarded.
type Registry struct {
	loop     Poster
	bridge   *observer.Bridge
	spawn    SpawnFunc
	hooks    Hooks
	logger   *slog.Logger
	sessions []*session.Session
}

// New returns an empty registry.
func New(opts Options) *Registry {
	r := &Registry{
		loop:   opts.Loop,
		bridge: opts.Bridge,
		spawn:  opts.Spawn,
		hooks:  opts.Hooks,
		logger: logging.OrDiscard(opts.Logger),
	}
	if r.bridge == nil {
		r.bridge = &observer.Bridge{}
	}
	if r.spawn == nil {
		factory := opts.Emulator
		r.spawn = func(cfg session.Config, notify session.NotifyFunc) *session.Session {
			return session.Spawn(cfg, factory, notify)
		}
	}
	return r
}

// Create spawns a session for cfg and appends it. A session whose process
// could not be started is still registered, already exited.
func (r *Registry) Create(cfg session.Config) *session.Session {
	if len(r.sessions) == 0 && !r.lockHeld() && r.hooks.ClearScratch != nil {
		if err := r.hooks.ClearScratch(); err != nil {
			r.logger.Warn(messages.RegistryLogScratchFailed, "error", err)
		}
	}

	s := r.spawn(cfg, r.post)
	if err := s.SpawnErr(); err != nil {
		r.logger.Error(messages.RegistryLogSpawnFailed, "session", s.Handle(), "executable", cfg.Executable, "error", err)
	} else {
		r.logger.Debug(messages.RegistryLogCreated, "session", s.Handle(), "name", cfg.Name)
	}
	r.sessions = append(r.sessions, s)
	r.republish()
	return s
}

// Remove unregisters the session and returns the index it held. A running
// process is killed. Removing the last session terminates the host.
func (r *Registry) Remove(handle string) (int, error) {
	index := r.IndexOf(handle)
	if index < 0 {
		return -1, fmt.Errorf(messages.RegistryNotFoundFmt, ErrNotFound, handle)
	}
	s := r.sessions[index]
	s.FinishIfRunning()
	r.sessions = slices.Delete(r.sessions, index, index+1)
	r.logger.Debug(messages.RegistryLogRemoved, "session", handle, "index", index)

	if len(r.sessions) == 0 {
		if r.hooks.Terminate != nil {
			r.hooks.Terminate()
		}
		return index, nil
	}
	r.republish()
	return index, nil
}

// IndexOf returns the position of handle, or -1.
func (r *Registry) IndexOf(handle string) int {
	return slices.IndexFunc(r.sessions, func(s *session.Session) bool {
		return s.Handle() == handle
	})
}

// Get returns the session for handle.
func (r *Registry) Get(handle string) (*session.Session, error) {
	index := r.IndexOf(handle)
	if index < 0 {
		return nil, fmt.Errorf(messages.RegistryNotFoundFmt, ErrNotFound, handle)
	}
	return r.sessions[index], nil
}

// All returns the sessions in order. The slice is a copy.
func (r *Registry) All() []*session.Session {
	return slices.Clone(r.sessions)
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// At returns the session at index, or nil when out of range.
func (r *Registry) At(index int) *session.Session {
	if index < 0 || index >= len(r.sessions) {
		return nil
	}
	return r.sessions[index]
}

// Next returns the session after (or before) focused, wrapping around.
// When focused is not registered the first session is returned.
func (r *Registry) Next(focused string, forward bool) *session.Session {
	n := len(r.sessions)
	if n == 0 {
		return nil
	}
	index := r.IndexOf(focused)
	if index < 0 {
		return r.sessions[0]
	}
	if forward {
		index++
	} else {
		index--
	}
	return r.sessions[(index+n)%n]
}

// AfterRemoval returns the session now occupying removedIndex, or the last
// session when the removed one was at the end.
func (r *Registry) AfterRemoval(removedIndex int) *session.Session {
	n := len(r.sessions)
	if n == 0 {
		return nil
	}
	return r.sessions[min(max(removedIndex, 0), n-1)]
}

// FinishAll kills every running session. Sessions stay registered.
func (r *Registry) FinishAll() {
	for _, s := range r.sessions {
		s.FinishIfRunning()
	}
}

// Bridge returns the observer bridge events are forwarded to.
func (r *Registry) Bridge() *observer.Bridge {
	return r.bridge
}

// post runs on session goroutines and hands the event to the owning goroutine.
func (r *Registry) post(ev session.Event) {
	if r.loop == nil {
		return
	}
	r.loop.Post(func() { r.forward(ev) })
}

func (r *Registry) forward(ev session.Event) {
	r.bridge.Dispatch(ev)
	if ev.Kind != session.EventFinished {
		return
	}
	// Removed sessions still get the Finished hook but are not republished.
	if r.hooks.Finished != nil {
		r.hooks.Finished(ev.Session)
	}
	if r.IndexOf(ev.Session.Handle()) < 0 {
		return
	}
	r.logger.Info(messages.RegistryLogFinished, "session", ev.Session.Handle(), "exit_code", ev.Session.ExitCode())
	r.republish()
}

func (r *Registry) lockHeld() bool {
	return r.hooks.LockHeld != nil && r.hooks.LockHeld()
}

func (r *Registry) republish() {
	if r.hooks.Republish != nil {
		r.hooks.Republish()
	}
}
