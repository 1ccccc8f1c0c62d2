// Package session runs one console process under a pseudo-terminal and reports
// what happens to it as events.
package session

import "fmt"

// EventKind identifies what changed in a session.
type EventKind int

// Event kinds.
const (
	EventTextChanged EventKind = iota + 1
	EventTitleChanged
	EventFinished
	EventClipboard
	EventBell
	EventColorsChanged
)

var eventNames = map[EventKind]string{
	EventTextChanged:   "text-changed",
	EventTitleChanged:  "title-changed",
	EventFinished:      "finished",
	EventClipboard:     "clipboard",
	EventBell:          "bell",
	EventColorsChanged: "colors-changed",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is emitted from session goroutines. Data carries the output chunk for
// EventTextChanged; Text carries the title or clipboard payload.
type Event struct {
	Kind    EventKind
	Session *Session
	Data    []byte
	Text    string
}

// NotifyFunc receives events. It is called from the session's own goroutines
// and must not block for long.
type NotifyFunc func(Event)
