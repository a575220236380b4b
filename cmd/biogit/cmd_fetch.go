package main

import (
	"fmt"

	"github.com/biogit/biogit/pkg/remote"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <remote> [<ref>]",
		Short: "Download objects and refs from a remote",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			ep, err := resolveRemoteEndpoint(r, args[0])
			if err != nil {
				return err
			}
			token, err := requireToken(r)
			if err != nil {
				return err
			}
			var ref string
			if len(args) == 2 {
				ref = args[1]
			}
			result, err := remote.Fetch(r, ep, token, args[0], ref)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d object(s), updated %d ref(s)\n", result.Downloaded, len(result.UpdatedRefs))
			return nil
		},
	}
}
