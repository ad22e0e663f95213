package main

import (
	"github.com/spf13/cobra"
)

func profileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the effective trust profile as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.cfg.Client.Profile.Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
