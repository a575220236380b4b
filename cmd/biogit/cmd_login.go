package main

import (
	"fmt"

	"github.com/biogit/biogit/pkg/remote"
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <user> <pass>",
		Short: "Log in to the repository's origin remote and cache the session token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			ep, err := resolveRemoteEndpoint(r, "origin")
			if err != nil {
				return err
			}
			token, err := remote.Login(ep, args[0], args[1])
			if err != nil {
				return err
			}
			if err := writeCachedToken(r, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", args[0])
			return nil
		},
	}
}
