package main

import (
	"fmt"

	"github.com/biogit/biogit/pkg/remote"
	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <user> <pass>",
		Short: "Register a new user on the repository's origin remote",
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
			if err := remote.Register(ep, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered user %s\n", args[0])
			return nil
		},
	}
}
