// Package command defines the closed set of host control commands.
package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conn-castle/alpine-term/internal/messages"
)

// Command is a host control request delivered from notification actions,
// signals, or the control socket.
type Command int

const (
	// Stop terminates the host.
	Stop Command = iota + 1
	// LockAcquire takes the wake and network locks together.
	LockAcquire
	// LockRelease drops both locks.
	LockRelease
)

var names = map[Command]string{
	Stop:        "stop",
	LockAcquire: "lock-acquire",
	LockRelease: "lock-release",
}

// String returns the wire name of c.
func (c Command) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	_, ok := names[c]
	return ok
}

// Parse maps a wire name back to a Command.
func Parse(name string) (Command, error) {
	for c, n := range names {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf(messages.HostUnknownCommandFmt, name, strings.Join(Names(), ", "))
}

// Names returns the wire names of every command in declaration order.
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = c.String()
	}
	return out
}

// All returns every command in declaration order.
func All() []Command {
	out := make([]Command, 0, len(names))
	for c := range names {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (c Command) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf(messages.HostUnknownCommandFmt, c.String(), strings.Join(Names(), ", "))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Command) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
