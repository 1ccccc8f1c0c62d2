// Package observer forwards session events to whichever sink is currently attached.
package observer

import (
	"sync/atomic"

	"github.com/conn-castle/alpine-term/internal/session"
)

// Sink receives session events, typically a front end showing one session.
type Sink interface {
	HandleEvent(ev session.Event)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ev session.Event)

// HandleEvent implements Sink.
func (f SinkFunc) HandleEvent(ev session.Event) {
	f(ev)
}

// sinkBox gives each Attach call a distinct identity, so a stale Detach
// cannot clear a sink attached after it.
type sinkBox struct {
	sink Sink
}

// Bridge holds at most one sink. It may be attached, replaced, and cleared
// from any goroutine; each Dispatch reads a single snapshot.
type Bridge struct {
	current atomic.Pointer[sinkBox]
}

// Attach makes sink current and returns a detach function that clears it
// only while it is still the current sink. A nil sink detaches.
func (b *Bridge) Attach(sink Sink) (detach func()) {
	if sink == nil {
		b.Detach()
		return func() {}
	}
	box := &sinkBox{sink: sink}
	b.current.Store(box)
	return func() {
		b.current.CompareAndSwap(box, nil)
	}
}

// Detach clears the current sink unconditionally.
func (b *Bridge) Detach() {
	b.current.Store(nil)
}

// Attached reports whether a sink is attached.
func (b *Bridge) Attached() bool {
	return b.current.Load() != nil
}

// Dispatch delivers ev to the current sink and reports whether one was attached.
func (b *Bridge) Dispatch(ev session.Event) bool {
	box := b.current.Load()
	if box == nil {
		return false
	}
	box.sink.HandleEvent(ev)
	return true
}
