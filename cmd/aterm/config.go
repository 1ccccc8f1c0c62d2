package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conn-castle/alpine-term/internal/messages"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   messages.ConfigUse,
		Short: messages.ConfigShort,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   messages.ConfigValidateUse,
		Short: messages.ConfigValidateShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := env.cfg.ValidatePaths(env.configPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), messages.ConfigValidOKFmt, env.configPath)
			return nil
		},
	})
	return cmd
}
