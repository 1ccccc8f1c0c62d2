package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/alpine-term/internal/host"
	"github.com/conn-castle/alpine-term/internal/install"
	"github.com/conn-castle/alpine-term/internal/messages"
	"github.com/conn-castle/alpine-term/internal/notify"
	"github.com/conn-castle/alpine-term/internal/session"
	"github.com/conn-castle/alpine-term/internal/terminal"
)

var (
	stdinFile  = os.Stdin
	newHostFn  = host.New
	listenFn   = host.ListenControl
	removeFile = os.Remove
)

// backgroundInstall runs the installer off the host's main loop and waits for
// the outcome the installer posts back to it.
type backgroundInstall struct {
	inst   *install.Installer
	poster install.Poster
}

// EnsureInstalled implements install.Ensurer.
func (b backgroundInstall) EnsureInstalled(ctx context.Context) (bool, error) {
	wasInstalled := b.inst.Installed()
	result := make(chan error, 1)
	b.inst.Start(ctx, b.poster,
		func() { result <- nil },
		func(err error) { result <- err },
	)
	select {
	case err := <-result:
		return err == nil && !wasInstalled, err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var sandbox bool
	var detached bool

	cmd := &cobra.Command{
		Use:   messages.RunUse,
		Short: messages.RunShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			attach := !detached && terminal.IsTerminal(stdinFile)
			return runHost(cmd.Context(), env, sandbox, attach, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&sandbox, "sandbox", false, messages.RunFlagSandbox)
	cmd.Flags().BoolVar(&detached, "detached", false, messages.RunFlagDetached)
	return cmd
}

// runHost installs if needed, starts the host with its consoles, serves the
// control socket, and either attaches the terminal or waits for the host to stop.
func runHost(parent context.Context, env *environment, sandbox bool, attach bool, stdout io.Writer, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	inst, err := newInstaller(env)
	if err != nil {
		return err
	}

	var publisher notify.Publisher = notify.FilePublisher{Path: env.paths.Status}
	if !attach {
		publisher = notify.Multi{publisher, notify.NewTerminalPublisher(stderr)}
	}
	rows, cols := terminal.Size(stdinFile, 24, 80)
	h, err := newHostFn(host.Options{
		Paths:     env.paths,
		Config:    *env.cfg,
		Publisher: publisher,
		Rows:      uint16(rows),
		Cols:      uint16(cols),
		Logger:    env.logger,
	})
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()
	shutdown := func() error {
		cancel()
		return <-runErr
	}

	if !inst.Installed() {
		_, _ = color.New(color.FgYellow).Fprintln(stderr, messages.InstallProgress)
	}
	if _, err := install.RunWithRecovery(ctx, backgroundInstall{inst: inst, poster: h}, recoveryPrompter(stderr), env.logger); err != nil {
		_ = shutdown()
		return installFailure(err)
	}

	ln, err := listenFn(env.paths.Socket)
	if err != nil {
		_ = shutdown()
		return err
	}
	defer func() { _ = removeFile(env.paths.Socket) }()
	go func() {
		if err := h.ServeControl(ctx, ln); err != nil {
			env.logger.Warn(messages.RunLogControlStopped, "error", err)
		}
	}()

	stopSignals := forwardSignals(ctx, h, env.logger)
	defer stopSignals()

	kind := session.KindQEMU
	if sandbox {
		kind = session.KindQEMUSandbox
	}
	if err := h.Launch(ctx, kind); err != nil {
		if errors.Is(err, host.ErrTerminated) {
			return shutdown()
		}
		_, _ = fmt.Fprintln(stderr, color.RedString(err.Error()))
	}

	if attach {
		c := newConsole(h, stdinFile, stdout)
		if err := c.Run(ctx); err != nil {
			_ = shutdown()
			return err
		}
	} else {
		select {
		case <-h.Done():
		case <-ctx.Done():
		}
	}
	return shutdown()
}
