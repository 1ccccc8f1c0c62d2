package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"golang.org/x/sys/unix"

	"github.com/conn-castle/alpine-term/internal/command"
	"github.com/conn-castle/alpine-term/internal/host"
	"github.com/conn-castle/alpine-term/internal/messages"
	"github.com/conn-castle/alpine-term/internal/observer"
	"github.com/conn-castle/alpine-term/internal/registry"
	"github.com/conn-castle/alpine-term/internal/session"
	"github.com/conn-castle/alpine-term/internal/terminal"
)

// Escape sequences relayed to the outer terminal for the focused session.
const (
	oscTitle     = "\x1b]0;"
	oscClipboard = "\x1b]52;c;"
	oscEnd       = "\a"
	bell         = "\a"
)

// Console key bindings. Bindings are entered after the prefix key.
const (
	keyPrefix = 0x01 // Ctrl-A
	keyNext   = 'n'
	keyPrev   = 'p'
	keyLock   = 'l'
	keyQuit   = 'q'
)

type keyAction int

const (
	actionNone keyAction = iota
	actionNext
	actionPrev
	actionToggleLock
	actionStop
)

var keyBindings = map[byte]keyAction{
	keyNext: actionNext,
	keyPrev: actionPrev,
	keyLock: actionToggleLock,
	keyQuit: actionStop,
}

// keyEvent is either input for the focused session or a console action.
type keyEvent struct {
	data   []byte
	action keyAction
}

// keyParser splits terminal input into session input and prefixed bindings.
// A prefix at the end of one read applies to the first byte of the next.
type keyParser struct {
	prefixed bool
}

func (k *keyParser) feed(p []byte) []keyEvent {
	var events []keyEvent
	var pending []byte
	flush := func() {
		if len(pending) > 0 {
			events = append(events, keyEvent{data: pending})
			pending = nil
		}
	}
	for _, b := range p {
		if !k.prefixed {
			if b == keyPrefix {
				k.prefixed = true
			} else {
				pending = append(pending, b)
			}
			continue
		}
		k.prefixed = false
		if b == keyPrefix {
			pending = append(pending, keyPrefix)
			continue
		}
		if action, ok := keyBindings[b]; ok {
			flush()
			events = append(events, keyEvent{action: action})
		}
	}
	flush()
	return events
}

// consoleHost is the part of the host the console drives.
type consoleHost interface {
	Attach(sink observer.Sink) (detach func())
	Sessions(ctx context.Context) ([]*session.Session, error)
	IndexOf(ctx context.Context, handle string) (int, error)
	Next(ctx context.Context, focused string, forward bool) (*session.Session, error)
	RemoveSession(ctx context.Context, handle string) (*session.Session, error)
	Dispatch(ctx context.Context, cmd command.Command) error
	LockHeld() bool
	WantsToStop() bool
	Done() <-chan struct{}
}

var makeRawFn = terminal.MakeRaw

// console attaches the terminal to one session at a time. Output of the
// focused session is copied to out; input goes to the focused session.
type console struct {
	host consoleHost
	in   io.Reader
	out  io.Writer

	outMu    sync.Mutex
	focused  atomic.Pointer[session.Session]
	finished chan *session.Session
	done     chan struct{}
}

func newConsole(h consoleHost, in io.Reader, out io.Writer) *console {
	return &console{
		host:     h,
		in:       in,
		out:      out,
		finished: make(chan *session.Session),
		done:     make(chan struct{}),
	}
}

// Run attaches until the host stops, the last session is removed, input
// ends, or ctx is done.
func (c *console) Run(ctx context.Context) error {
	defer close(c.done)
	if f, ok := c.in.(*os.File); ok {
		restore, err := makeRawFn(f)
		if err != nil {
			return err
		}
		defer restore()
	}

	detach := c.host.Attach(observer.SinkFunc(c.handleEvent))
	defer detach()

	sessions, err := c.host.Sessions(ctx)
	if err != nil {
		return ignoreTerminated(err)
	}
	if len(sessions) == 0 {
		return nil
	}
	c.write([]byte(messages.RunHelpBanner))
	c.focus(ctx, sessions[len(sessions)-1])
	// Sessions that exited before the sink was attached are handled like any other finish.
	for _, s := range sessions {
		if !s.Running() {
			c.handleEvent(session.Event{Kind: session.EventFinished, Session: s})
		}
	}

	input := make(chan []byte)
	go c.readInput(input)

	winch := make(chan os.Signal, 1)
	notifySignal(winch, unix.SIGWINCH)
	defer signal.Stop(winch)

	parser := &keyParser{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.host.Done():
			return nil
		case s := <-c.finished:
			stop, err := c.sessionFinished(ctx, s)
			if stop || err != nil {
				return err
			}
		case chunk, ok := <-input:
			if !ok {
				return nil
			}
			for _, ev := range parser.feed(chunk) {
				stop, err := c.handleKey(ctx, ev)
				if stop || err != nil {
					return err
				}
			}
		case <-winch:
			c.resize(c.focused.Load())
		}
	}
}

// handleEvent runs on the host's main loop and must not block on the console.
func (c *console) handleEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventTextChanged:
		c.writeFocused(ev.Session, ev.Data)
	case session.EventTitleChanged:
		c.writeFocused(ev.Session, []byte(oscTitle+ev.Text+oscEnd))
	case session.EventBell:
		c.writeFocused(ev.Session, []byte(bell))
	case session.EventClipboard:
		c.writeFocused(ev.Session, []byte(oscClipboard+base64.StdEncoding.EncodeToString([]byte(ev.Text))+oscEnd))
	case session.EventFinished:
		go func() {
			select {
			case c.finished <- ev.Session:
			case <-c.done:
			}
		}()
	}
}

// writeFocused passes p through to the outer terminal when s has focus.
func (c *console) writeFocused(s *session.Session, p []byte) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if s == c.focused.Load() {
		_, _ = c.out.Write(p)
	}
}

// sessionFinished removes s and focuses the session now in its slot.
func (c *console) sessionFinished(ctx context.Context, s *session.Session) (bool, error) {
	if c.host.WantsToStop() {
		return true, nil
	}
	next, err := c.host.RemoveSession(ctx, s.Handle())
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return false, nil
	case err != nil:
		return true, ignoreTerminated(err)
	case next == nil:
		return true, nil
	}
	c.focus(ctx, next)
	return false, nil
}

func (c *console) handleKey(ctx context.Context, ev keyEvent) (bool, error) {
	current := c.focused.Load()
	switch ev.action {
	case actionNone:
		if current == nil {
			return false, nil
		}
		if _, err := current.Write(ev.data); err != nil && !errors.Is(err, session.ErrNotRunning) {
			c.reportError(err)
		}
	case actionNext, actionPrev:
		next, err := c.host.Next(ctx, current.Handle(), ev.action == actionNext)
		if err != nil {
			return true, ignoreTerminated(err)
		}
		if next != nil && next != current {
			c.focus(ctx, next)
		}
	case actionToggleLock:
		cmd := command.LockAcquire
		if c.host.LockHeld() {
			cmd = command.LockRelease
		}
		if err := c.host.Dispatch(ctx, cmd); err != nil {
			if errors.Is(err, host.ErrTerminated) {
				return true, nil
			}
			c.reportError(err)
		}
	case actionStop:
		return true, ignoreTerminated(c.host.Dispatch(ctx, command.Stop))
	}
	return false, nil
}

// focus switches output to s, showing its name and the output it kept.
func (c *console) focus(ctx context.Context, s *session.Session) {
	index, err := c.host.IndexOf(ctx, s.Handle())
	if err != nil {
		index = -1
	}
	c.outMu.Lock()
	_, _ = fmt.Fprintf(c.out, messages.RunSwitchedFmt, s.DisplayName(index))
	if t, ok := s.Emulator().(interface{ Transcript() []byte }); ok {
		_, _ = c.out.Write(t.Transcript())
	}
	c.focused.Store(s)
	c.outMu.Unlock()
	c.resize(s)
}

func (c *console) resize(s *session.Session) {
	f, ok := c.in.(*os.File)
	if !ok || s == nil || !terminal.IsTerminal(f) {
		return
	}
	rows, cols := terminal.Size(f, 24, 80)
	_ = s.Resize(uint16(rows), uint16(cols))
}

func (c *console) readInput(input chan<- []byte) {
	defer close(input)
	buf := make([]byte, 1024)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case input <- chunk:
			case <-c.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *console) write(p []byte) {
	c.outMu.Lock()
	_, _ = c.out.Write(p)
	c.outMu.Unlock()
}

func (c *console) reportError(err error) {
	c.write([]byte("\r\n" + color.RedString(err.Error()) + "\r\n"))
}

func ignoreTerminated(err error) error {
	if errors.Is(err, host.ErrTerminated) {
		return nil
	}
	return err
}
