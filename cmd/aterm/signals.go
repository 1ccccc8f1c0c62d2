package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/alpine-term/internal/command"
	"github.com/conn-castle/alpine-term/internal/messages"
)

// signalCommands maps process signals to host commands.
var signalCommands = map[os.Signal]command.Command{
	unix.SIGUSR1: command.LockAcquire,
	unix.SIGUSR2: command.LockRelease,
	unix.SIGINT:  command.Stop,
	unix.SIGTERM: command.Stop,
}

// dispatcher is the part of the host signals are delivered to.
type dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) error
	Done() <-chan struct{}
}

var notifySignal = signal.Notify

// forwardSignals dispatches the mapped command for each signal received until
// ctx is done or the host terminates. The returned function stops delivery.
func forwardSignals(ctx context.Context, d dispatcher, logger *slog.Logger) func() {
	ch := make(chan os.Signal, len(signalCommands))
	sigs := make([]os.Signal, 0, len(signalCommands))
	for sig := range signalCommands {
		sigs = append(sigs, sig)
	}
	notifySignal(ch, sigs...)

	stopped := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				cmd := signalCommands[sig]
				logger.Info(messages.RunLogSignal, "signal", sig.String(), "command", cmd.String())
				if err := d.Dispatch(ctx, cmd); err != nil {
					logger.Warn(messages.HostLogCommandFailed, "command", cmd.String(), "error", err)
				}
			case <-ctx.Done():
				return
			case <-d.Done():
				return
			case <-stopped:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		select {
		case <-stopped:
		default:
			close(stopped)
		}
	}
}
