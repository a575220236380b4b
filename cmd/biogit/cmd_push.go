package main

import (
	"fmt"
	"strings"

	"github.com/biogit/biogit/pkg/remote"
	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "push <remote> <local[:<remote-branch>]>",
		Short: "Upload local commits and refs to a remote",
		Args:  cobra.ExactArgs(2),
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

			localBranch, remoteBranch, hasRemote := strings.Cut(args[1], ":")
			if !hasRemote {
				remoteBranch = localBranch
			}

			result, err := remote.Push(r, ep, token, localBranch, "heads/"+remoteBranch, force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.UpToDate {
				fmt.Fprintln(out, "already up to date")
				return nil
			}
			fmt.Fprintf(out, "uploaded %d object(s): %s -> %s\n", result.Uploaded, shortHash(string(result.OldHash)), shortHash(string(result.NewHash)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite the remote ref even if not a fast-forward")
	return cmd
}
