package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"github.com/conn-castle/alpine-term/internal/command"
	"github.com/conn-castle/alpine-term/internal/messages"
)

const controlTimeout = 10 * time.Second

var removeSocketFn = os.Remove

// ListenControl listens on the unix socket at path, replacing a stale socket file.
func ListenControl(path string) (net.Listener, error) {
	if err := removeSocketFn(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(messages.HostControlRemoveFmt, path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf(messages.HostControlListenFmt, path, err)
	}
	return ln, nil
}

// ServeControl accepts one command name per connection and replies with
// "ok" or "error: <reason>". It returns when ctx is done or the host
// terminates, closing ln.
func (h *Host) ServeControl(ctx context.Context, ln net.Listener) error {
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		case <-stopped:
		}
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-h.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go h.handleControl(ctx, conn)
	}
}

func (h *Host) handleControl(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(controlTimeout))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return
	}
	name := strings.TrimSpace(line)

	reply := messages.HostControlReplyOK
	cmd, err := command.Parse(name)
	if err != nil {
		h.logger.Warn(messages.HostLogUnknownCommand, "command", name)
		reply = fmt.Sprintf(messages.HostControlReplyErrFmt, err)
	} else if err := h.Dispatch(ctx, cmd); err != nil {
		reply = fmt.Sprintf(messages.HostControlReplyErrFmt, err)
	}
	_, _ = fmt.Fprintln(conn, reply)
}

// SendControl delivers cmd to the host listening at path and waits for its reply.
func SendControl(ctx context.Context, path string, cmd command.Command) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf(messages.HostControlDialFmt, path, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(controlTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := fmt.Fprintln(conn, cmd.String()); err != nil {
		return fmt.Errorf(messages.HostControlWriteFmt, cmd, err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	reply = strings.TrimSpace(reply)
	if err != nil && reply == "" {
		return fmt.Errorf(messages.HostControlReadFmt, cmd, err)
	}
	if reply != messages.HostControlReplyOK {
		return fmt.Errorf(messages.HostControlRejectedFmt, cmd, reply)
	}
	return nil
}
