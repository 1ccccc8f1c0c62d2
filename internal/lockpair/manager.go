// Package lockpair holds the wake lock and the network lock as a single unit:
// either both are held or neither is.
package lockpair

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/conn-castle/alpine-term/internal/logging"
	"github.com/conn-castle/alpine-term/internal/messages"
)

var (
	// ErrNotHeld is returned by a Resource released without a matching acquire.
	ErrNotHeld = errors.New(messages.LockNotHeld)
	// ErrAcquireFailed wraps the cause when the pair could not be taken.
	ErrAcquireFailed = errors.New(messages.LockAcquireFailed)
)

// Resource is one half of the pair.
type Resource interface {
	Name() string
	Acquire() error
	Release() error
}

// Manager acquires and releases the pair.
type Manager struct {
	mu       sync.Mutex
	wake     Resource
	network  Resource
	held     bool
	onChange func(held bool)
	logger   *slog.Logger
}

// New returns a Manager over wake and network. Neither is held initially.
func New(wake Resource, network Resource, logger *slog.Logger) *Manager {
	return &Manager{
		wake:    wake,
		network: network,
		logger:  logging.OrDiscard(logger),
	}
}

// OnChange registers fn to run after every successful transition.
// fn is called without the manager's lock held and may call Held.
func (m *Manager) OnChange(fn func(held bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Held reports whether both resources are held.
func (m *Manager) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// Acquire takes the wake resource, then the network resource. If the network
// resource fails the wake resource is released again and held stays false.
// Acquire while held is a no-op.
func (m *Manager) Acquire() error {
	m.mu.Lock()
	if m.held {
		m.mu.Unlock()
		return nil
	}
	if err := m.wake.Acquire(); err != nil {
		m.mu.Unlock()
		return m.acquireFailed(m.wake, err)
	}
	if err := m.network.Acquire(); err != nil {
		if rerr := m.wake.Release(); rerr != nil && !errors.Is(rerr, ErrNotHeld) {
			m.logger.Warn(messages.LockLogRollbackFailed, "resource", m.wake.Name(), "error", rerr)
		}
		m.mu.Unlock()
		return m.acquireFailed(m.network, err)
	}
	m.held = true
	hook := m.onChange
	m.mu.Unlock()

	m.logger.Info(messages.LockLogAcquired)
	if hook != nil {
		hook(true)
	}
	return nil
}

func (m *Manager) acquireFailed(res Resource, err error) error {
	wrapped := fmt.Errorf(messages.LockAcquireFailedFmt, ErrAcquireFailed, res.Name(), err)
	m.logger.Error(messages.LockLogAcquireFailed, "resource", res.Name(), "error", err)
	return wrapped
}

// Release drops both resources. Release while not held is a no-op.
// A resource reporting ErrNotHeld is treated as already released. Any other
// failure keeps the pair held, without invoking the OnChange hook, so a later
// Release retries; the resource that did release reports ErrNotHeld then.
func (m *Manager) Release() error {
	m.mu.Lock()
	if !m.held {
		m.mu.Unlock()
		return nil
	}
	err := m.releaseLocked()
	hook := m.onChange
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.logger.Info(messages.LockLogReleased)
	if hook != nil {
		hook(false)
	}
	return nil
}

// Stop releases the pair if held without invoking the OnChange hook.
// It is used while the host is shutting down.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		return nil
	}
	return m.releaseLocked()
}

func (m *Manager) releaseLocked() error {
	var errs []error
	for _, res := range []Resource{m.wake, m.network} {
		if err := res.Release(); err != nil && !errors.Is(err, ErrNotHeld) {
			m.logger.Warn(messages.LockLogReleaseFailed, "resource", res.Name(), "error", err)
			errs = append(errs, fmt.Errorf(messages.LockReleaseFailedFmt, res.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.held = false
	return nil
}
