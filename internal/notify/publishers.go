package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/conn-castle/alpine-term/internal/fsutil"
	"github.com/conn-castle/alpine-term/internal/messages"
)

// TerminalPublisher prints a colored line whenever the visible status changes.
type TerminalPublisher struct {
	out io.Writer

	mu   sync.Mutex
	last string
}

// NewTerminalPublisher returns a TerminalPublisher writing to out.
func NewTerminalPublisher(out io.Writer) *TerminalPublisher {
	return &TerminalPublisher{out: out}
}

// Publish implements Publisher.
func (p *TerminalPublisher) Publish(status Status) error {
	line := statusLine(status)
	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return nil
	}
	p.last = line
	_, err := priorityColor(status.Priority).Fprint(p.out, line)
	return err
}

// Clear implements Publisher.
func (p *TerminalPublisher) Clear() error {
	p.mu.Lock()
	p.last = ""
	p.mu.Unlock()
	return nil
}

func statusLine(status Status) string {
	return fmt.Sprintf(messages.HostStatusFormatFmt, status.Title, status.Priority, status.Text)
}

func priorityColor(p Priority) *color.Color {
	if p == PriorityHigh {
		return color.New(color.FgYellow, color.Bold)
	}
	return color.New(color.FgCyan)
}

// FormatStatus writes status and its actions for the status command.
func FormatStatus(w io.Writer, status Status) error {
	if _, err := priorityColor(status.Priority).Fprint(w, statusLine(status)); err != nil {
		return err
	}
	labels := make([]string, 0, len(status.Actions))
	for _, action := range status.Actions {
		labels = append(labels, fmt.Sprintf("%s (%s)", action.Label, action.Command))
	}
	_, err := fmt.Fprintf(w, messages.HostStatusActionsFmt, strings.Join(labels, ", "))
	return err
}

// FilePublisher writes the status as JSON to Path, replacing it atomically.
type FilePublisher struct {
	Path string
}

// Publish implements Publisher.
func (p FilePublisher) Publish(status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf(messages.HostStatusEncodeFmt, err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(p.Path, data, 0o644); err != nil {
		return fmt.Errorf(messages.HostStatusWriteFmt, p.Path, err)
	}
	return nil
}

// Clear implements Publisher. A missing file is not an error.
func (p FilePublisher) Clear() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ErrNoStatus is returned by ReadStatus when nothing has been published.
var ErrNoStatus = errors.New(messages.NotifyNoStatus)

// ReadStatus loads a status written by FilePublisher.
func ReadStatus(path string) (Status, error) {
	var status Status
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return status, fmt.Errorf("%w: "+messages.HostStatusUnavailableFmt, ErrNoStatus, path)
		}
		return status, fmt.Errorf(messages.HostStatusReadFmt, path, err)
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, fmt.Errorf(messages.HostStatusDecodeFmt, path, err)
	}
	return status, nil
}

// Multi fans out to several publishers and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(status Status) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear implements Publisher.
func (m Multi) Clear() error {
	var errs []error
	for _, p := range m {
		if err := p.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
