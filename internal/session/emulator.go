package session

import (
	"bytes"
	"encoding/base64"
	"strings"
	"sync"
)

// EmulatorClient receives the side effects an emulator finds in the output stream.
type EmulatorClient interface {
	SetTitle(title string)
	Bell()
	CopyToClipboard(text string)
	ColorsChanged()
}

// Emulator consumes process output. Append is called from the session's reader goroutine.
type Emulator interface {
	Append(p []byte)
}

// EmulatorFactory builds the emulator for a new session.
type EmulatorFactory func(client EmulatorClient) Emulator

// DiscardEmulator ignores all output.
func DiscardEmulator(EmulatorClient) Emulator {
	return discardEmulator{}
}

type discardEmulator struct{}

func (discardEmulator) Append([]byte) {}

const maxOSCLength = 64 * 1024

type parserState int

const (
	stateGround parserState = iota
	stateEscape
	stateCSI
	stateOSC
	stateOSCEscape
)

// PassthroughEmulator keeps a bounded transcript of the output and reacts to
// the handful of control sequences the host cares about: BEL, window title
// (OSC 0 and 2), clipboard (OSC 52), and palette changes (OSC 4, 10, 11, 104, 110, 111).
// It does not interpret screen layout.
type PassthroughEmulator struct {
	client EmulatorClient
	limit  int

	mu         sync.Mutex
	transcript []byte
	state      parserState
	osc        []byte
}

// NewPassthroughFactory returns a factory for emulators keeping at most limit bytes.
func NewPassthroughFactory(limit int) EmulatorFactory {
	return func(client EmulatorClient) Emulator {
		return &PassthroughEmulator{client: client, limit: limit}
	}
}

// Append implements Emulator.
func (e *PassthroughEmulator) Append(p []byte) {
	e.mu.Lock()
	e.appendTranscript(p)
	var effects []func()
	for _, b := range p {
		if fx := e.step(b); fx != nil {
			effects = append(effects, fx)
		}
	}
	e.mu.Unlock()

	for _, fx := range effects {
		fx()
	}
}

// Transcript returns a copy of the retained output.
func (e *PassthroughEmulator) Transcript() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bytes.Clone(e.transcript)
}

func (e *PassthroughEmulator) appendTranscript(p []byte) {
	if e.limit <= 0 {
		return
	}
	if len(p) >= e.limit {
		e.transcript = append(e.transcript[:0], p[len(p)-e.limit:]...)
		return
	}
	if overflow := len(e.transcript) + len(p) - e.limit; overflow > 0 {
		e.transcript = append(e.transcript[:0], e.transcript[overflow:]...)
	}
	e.transcript = append(e.transcript, p...)
}

// step advances the parser by one byte and returns a deferred client call, if any.
func (e *PassthroughEmulator) step(b byte) func() {
	switch e.state {
	case stateGround:
		switch b {
		case 0x07:
			return e.client.Bell
		case 0x1b:
			e.state = stateEscape
		}
	case stateEscape:
		switch b {
		case ']':
			e.state = stateOSC
			e.osc = e.osc[:0]
		case '[':
			e.state = stateCSI
		default:
			e.state = stateGround
		}
	case stateCSI:
		if b >= 0x40 && b <= 0x7e {
			e.state = stateGround
		}
	case stateOSC:
		switch b {
		case 0x07:
			e.state = stateGround
			return e.dispatchOSC()
		case 0x1b:
			e.state = stateOSCEscape
		default:
			if len(e.osc) < maxOSCLength {
				e.osc = append(e.osc, b)
			}
		}
	case stateOSCEscape:
		if b == '\\' {
			e.state = stateGround
			return e.dispatchOSC()
		}
		e.state = stateEscape
		return e.step(b)
	}
	return nil
}

func (e *PassthroughEmulator) dispatchOSC() func() {
	code, payload, _ := strings.Cut(string(e.osc), ";")
	switch code {
	case "0", "2":
		return func() { e.client.SetTitle(payload) }
	case "52":
		_, data, ok := strings.Cut(payload, ";")
		if !ok || data == "?" {
			return nil
		}
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil
		}
		text := string(decoded)
		return func() { e.client.CopyToClipboard(text) }
	case "4", "10", "11", "104", "110", "111":
		return e.client.ColorsChanged
	}
	return nil
}
