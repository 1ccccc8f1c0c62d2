package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/alpine-term/internal/archive"
	"github.com/conn-castle/alpine-term/internal/install"
	"github.com/conn-castle/alpine-term/internal/messages"
	"github.com/conn-castle/alpine-term/internal/terminal"
)

var isInteractive = terminal.IsInteractive

// newInstaller builds the installer for env, reading assets from the configured directory.
func newInstaller(env *environment) (*install.Installer, error) {
	return install.New(install.Options{
		Paths:           env.paths,
		Assets:          os.DirFS(env.cfg.Environment.AssetsDir),
		SupportedArches: env.cfg.Environment.SupportedArches,
		Policy:          archive.DefaultPolicy(),
		System:          install.RealSystem{},
		Logger:          env.logger,
	})
}

// recoveryPrompter returns the interactive retry/exit prompt, or nil when
// there is no terminal to ask on.
func recoveryPrompter(stderr io.Writer) install.Prompter {
	if !isInteractive() {
		return nil
	}
	return &huhPrompter{out: stderr}
}

// installFailure adds the non-interactive hint to retryable install errors.
func installFailure(err error) error {
	var installErr *install.Error
	if errors.Is(err, install.ErrAbandoned) || !errors.As(err, &installErr) || !installErr.Retryable() {
		return err
	}
	if isInteractive() {
		return err
	}
	return fmt.Errorf(messages.InstallFailedHintFmt, err, messages.InstallNonInteractiveHint)
}

func newInstallCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   messages.InstallUse,
		Short: messages.InstallShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			inst, err := newInstaller(env)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !inst.Installed() {
				_, _ = color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), messages.InstallProgress)
			}
			installed, err := install.RunWithRecovery(cmd.Context(), inst, recoveryPrompter(cmd.ErrOrStderr()), env.logger)
			if err != nil {
				return installFailure(err)
			}
			if installed {
				_, _ = fmt.Fprintf(out, messages.InstallDoneFmt, env.paths.Root)
			} else {
				_, _ = fmt.Fprintf(out, messages.InstallUpToDateFmt, env.paths.Root)
			}
			return nil
		},
	}
}
