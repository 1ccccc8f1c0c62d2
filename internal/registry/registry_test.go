package registry

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/alpine-term/internal/mainloop"
	"github.com/conn-castle/alpine-term/internal/observer"
	"github.com/conn-castle/alpine-term/internal/session"
)

// queue is a Poster whose functions run when the test drains it.
type queue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *queue) Post(fn func()) bool {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
	return true
}

type hookCounts struct {
	republish int
	terminate int
	scratch   int
	finished  []string
}

func newTestRegistry(t *testing.T, lockHeld bool) (*Registry, *hookCounts) {
	t.Helper()
	counts := &hookCounts{}
	r := New(Options{
		Loop: &queue{},
		// Sessions without an executable are born exited, which keeps these
		// tests free of child processes.
		Spawn: func(cfg session.Config, notify session.NotifyFunc) *session.Session {
			return session.Spawn(session.Config{Name: cfg.Name}, nil, notify)
		},
		Hooks: Hooks{
			Republish:    func() { counts.republish++ },
			Terminate:    func() { counts.terminate++ },
			ClearScratch: func() error { counts.scratch++; return nil },
			LockHeld:     func() bool { return lockHeld },
			Finished:     func(s *session.Session) { counts.finished = append(counts.finished, s.Handle()) },
		},
	})
	return r, counts
}

func createN(r *Registry, n int) []*session.Session {
	out := make([]*session.Session, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.Create(session.Config{}))
	}
	return out
}

func TestCreateAppendsInOrder(t *testing.T) {
	r, counts := newTestRegistry(t, false)
	sessions := createN(r, 3)

	require.Equal(t, 3, r.Len())
	assert.Equal(t, sessions, r.All())
	for i, s := range sessions {
		assert.Equal(t, i, r.IndexOf(s.Handle()))
	}
	assert.Equal(t, 3, counts.republish)
}

func TestCreateSpawnFailureIsRegisteredExited(t *testing.T) {
	r, _ := newTestRegistry(t, false)
	s := r.Create(session.Config{Executable: "/nonexistent"})
	assert.False(t, s.Running())
	assert.Equal(t, session.ExitCodeSpawnFailed, s.ExitCode())
	assert.Equal(t, 0, r.IndexOf(s.Handle()))
}

func TestScratchClearedOnlyForColdStartWithoutLock(t *testing.T) {
	r, counts := newTestRegistry(t, false)
	createN(r, 2)
	assert.Equal(t, 1, counts.scratch)

	locked, lockedCounts := newTestRegistry(t, true)
	createN(locked, 1)
	assert.Equal(t, 0, lockedCounts.scratch)
}

func TestScratchFailureIsNotFatal(t *testing.T) {
	r := New(Options{
		Spawn: func(cfg session.Config, notify session.NotifyFunc) *session.Session {
			return session.Spawn(cfg, nil, notify)
		},
		Hooks: Hooks{ClearScratch: func() error { return errors.New("read-only") }},
	})
	r.Create(session.Config{})
	assert.Equal(t, 1, r.Len())
}

func TestRemoveCompactsIndices(t *testing.T) {
	r, counts := newTestRegistry(t, false)
	sessions := createN(r, 4)

	index, err := r.Remove(sessions[1].Handle())
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	require.Equal(t, 3, r.Len())

	assert.Equal(t, 0, r.IndexOf(sessions[0].Handle()))
	assert.Equal(t, 1, r.IndexOf(sessions[2].Handle()))
	assert.Equal(t, 2, r.IndexOf(sessions[3].Handle()))
	assert.Equal(t, -1, r.IndexOf(sessions[1].Handle()))
	assert.Equal(t, 5, counts.republish)
	assert.Equal(t, 0, counts.terminate)
}

func TestRemoveUnknownHandle(t *testing.T) {
	r, _ := newTestRegistry(t, false)
	createN(r, 1)
	index, err := r.Remove("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, -1, index)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemovedHandleIsNotFound(t *testing.T) {
	r, _ := newTestRegistry(t, false)
	sessions := createN(r, 2)
	_, err := r.Remove(sessions[0].Handle())
	require.NoError(t, err)

	_, err = r.Get(sessions[0].Handle())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Remove(sessions[0].Handle())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveLastTerminatesOnce(t *testing.T) {
	r, counts := newTestRegistry(t, false)
	sessions := createN(r, 2)

	_, err := r.Remove(sessions[0].Handle())
	require.NoError(t, err)
	assert.Equal(t, 0, counts.terminate)

	_, err = r.Remove(sessions[1].Handle())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.terminate)
	assert.Equal(t, 0, r.Len())
}

func TestNextWrapsAround(t *testing.T) {
	r, _ := newTestRegistry(t, false)
	sessions := createN(r, 3)

	assert.Same(t, sessions[1], r.Next(sessions[0].Handle(), true))
	assert.Same(t, sessions[0], r.Next(sessions[2].Handle(), true))
	assert.Same(t, sessions[2], r.Next(sessions[0].Handle(), false))
	assert.Same(t, sessions[0], r.Next("gone", true))
	assert.Same(t, sessions[0], r.Next("gone", false))

	empty, _ := newTestRegistry(t, false)
	assert.Nil(t, empty.Next("anything", true))
}

func TestAfterRemoval(t *testing.T) {
	r, _ := newTestRegistry(t, false)
	sessions := createN(r, 3)

	index, err := r.Remove(sessions[2].Handle())
	require.NoError(t, err)
	assert.Same(t, sessions[1], r.AfterRemoval(index))

	index, err = r.Remove(sessions[0].Handle())
	require.NoError(t, err)
	assert.Same(t, sessions[1], r.AfterRemoval(index))
	assert.Same(t, sessions[1], r.At(0))
	assert.Nil(t, r.At(1))
}

func TestAllReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry(t, false)
	createN(r, 2)
	all := r.All()
	all[0] = nil
	assert.NotNil(t, r.At(0))
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
}

func runLoop(t *testing.T) *mainloop.Loop {
	t.Helper()
	loop := mainloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

func TestEventsForwardedThroughLoop(t *testing.T) {
	requireShell(t)
	loop := runLoop(t)
	bridge := &observer.Bridge{}
	events := make(chan session.Event, 64)
	bridge.Attach(observer.SinkFunc(func(ev session.Event) { events <- ev }))

	var republished, finished int
	r := New(Options{
		Loop:   loop,
		Bridge: bridge,
		Hooks: Hooks{
			Republish: func() { republished++ },
			Finished:  func(*session.Session) { finished++ },
		},
	})

	var s *session.Session
	require.NoError(t, loop.Do(context.Background(), func() {
		s = r.Create(session.Config{Executable: "/bin/sh", Args: []string{"sh", "-c", "printf done"}})
	}))
	require.NoError(t, s.SpawnErr())

	deadline := time.After(10 * time.Second)
	sawText := false
	for {
		select {
		case ev := <-events:
			assert.Same(t, s, ev.Session)
			if ev.Kind == session.EventTextChanged {
				sawText = true
			}
			if ev.Kind != session.EventFinished {
				continue
			}
		case <-deadline:
			t.Fatal("no finished event")
		}
		break
	}
	assert.True(t, sawText)

	require.NoError(t, loop.Do(context.Background(), func() {
		assert.Equal(t, 1, finished)
		assert.Equal(t, 2, republished)
		assert.Equal(t, 1, r.Len())
	}))
}

func TestRemoveRunningKillsAndRunsFinishedWithoutRepublish(t *testing.T) {
	requireShell(t)
	loop := runLoop(t)
	var finished, terminated, republished int
	r := New(Options{
		Loop: loop,
		Hooks: Hooks{
			Terminate: func() { terminated++ },
			Finished:  func(*session.Session) { finished++ },
			Republish: func() { republished++ },
		},
	})

	var s *session.Session
	require.NoError(t, loop.Do(context.Background(), func() {
		s = r.Create(session.Config{Executable: "/bin/sh", Args: []string{"sh", "-c", "sleep 30"}})
	}))
	require.NoError(t, s.SpawnErr())
	var before int
	require.NoError(t, loop.Do(context.Background(), func() {
		_, err := r.Remove(s.Handle())
		assert.NoError(t, err)
		before = republished
	}))

	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("removed session was not killed")
	}
	assert.Equal(t, -9, s.ExitCode())

	require.Eventually(t, func() bool {
		n := 0
		_ = loop.Do(context.Background(), func() { n = finished })
		return n == 1
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, loop.Do(context.Background(), func() {
		assert.Equal(t, 1, finished)
		assert.Equal(t, 1, terminated)
		assert.Equal(t, before, republished)
	}))
}

func TestFinishAllKeepsSessionsRegistered(t *testing.T) {
	requireShell(t)
	loop := runLoop(t)
	r := New(Options{Loop: loop})

	var sessions []*session.Session
	require.NoError(t, loop.Do(context.Background(), func() {
		for i := 0; i < 2; i++ {
			sessions = append(sessions, r.Create(session.Config{Executable: "/bin/sh", Args: []string{"sh", "-c", "sleep 30"}}))
		}
		r.FinishAll()
	}))
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-time.After(10 * time.Second):
			t.Fatal("session not finished")
		}
	}
	require.NoError(t, loop.Do(context.Background(), func() {
		assert.Equal(t, 2, r.Len())
	}))
}
