package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conn-castle/alpine-term/internal/command"
	"github.com/conn-castle/alpine-term/internal/host"
	"github.com/conn-castle/alpine-term/internal/messages"
)

var sendControlFn = host.SendControl

func newCtlCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       messages.CtlUse,
		Short:     messages.CtlShort,
		Args:      cobra.ExactArgs(1),
		ValidArgs: command.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := command.Parse(args[0])
			if err != nil {
				return err
			}
			paths, err := flags.resolvePaths()
			if err != nil {
				return err
			}
			if err := sendControlFn(cmd.Context(), paths.Socket, c); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), messages.CtlSentFmt, c)
			return nil
		},
	}
}
