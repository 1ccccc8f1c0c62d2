package main

import (
	"github.com/spf13/cobra"

	"github.com/conn-castle/alpine-term/internal/messages"
	"github.com/conn-castle/alpine-term/internal/notify"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   messages.StatusUse,
		Short: messages.StatusShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := flags.resolvePaths()
			if err != nil {
				return err
			}
			status, err := notify.ReadStatus(paths.Status)
			if err != nil {
				return err
			}
			return notify.FormatStatus(cmd.OutOrStdout(), status)
		},
	}
}
