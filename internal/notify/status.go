// Package notify derives the host status surface from session count and lock
// state, and publishes it or asks the host to stop when nothing is left to run.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/conn-castle/alpine-term/internal/command"
	"github.com/conn-castle/alpine-term/internal/messages"
)

// Priority orders status updates for the publisher.
type Priority int

// Priority levels.
const (
	PriorityLow Priority = iota
	PriorityHigh
)

var priorityNames = map[Priority]string{
	PriorityLow:  "low",
	PriorityHigh: "high",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	for value, name := range priorityNames {
		if name == strings.ToLower(string(text)) {
			*p = value
			return nil
		}
	}
	return fmt.Errorf(messages.NotifyPriorityInvalidFmt, string(text))
}

// Action is a user-triggerable command shown with the status.
type Action struct {
	Command command.Command `json:"command"`
	Label   string          `json:"label"`
	Icon    string          `json:"icon"`
}

// Status is the published status surface.
type Status struct {
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Priority  Priority  `json:"priority"`
	Ongoing   bool      `json:"ongoing"`
	Sessions  int       `json:"sessions"`
	LockHeld  bool      `json:"lock_held"`
	Actions   []Action  `json:"actions"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is the input Status is derived from.
type State struct {
	Sessions int
	LockHeld bool
}

// Idle reports whether the host has nothing left to keep alive.
func (s State) Idle() bool {
	return s.Sessions == 0 && !s.LockHeld
}

// Derive builds the Status for state. UpdatedAt is left zero.
func Derive(state State) Status {
	text := messages.HostNotInitializedText
	if state.Sessions > 0 {
		text = messages.HostRunningText
	}
	priority := PriorityLow
	toggle := Action{Command: command.LockAcquire, Label: messages.HostActionLock, Icon: messages.HostIconLock}
	if state.LockHeld {
		text += messages.HostLockHeldSuffix
		priority = PriorityHigh
		toggle = Action{Command: command.LockRelease, Label: messages.HostActionUnlock, Icon: messages.HostIconUnlock}
	}
	return Status{
		Title:    messages.HostTitle,
		Text:     text,
		Priority: priority,
		Ongoing:  true,
		Sessions: state.Sessions,
		LockHeld: state.LockHeld,
		Actions: []Action{
			{Command: command.Stop, Label: messages.HostActionExit, Icon: messages.HostIconExit},
			toggle,
		},
	}
}
