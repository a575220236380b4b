package main

import (
	"fmt"

	"github.com/biogit/biogit/pkg/remote"
	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <remote> <branch>",
		Short: "Fetch a remote branch and merge it into the current branch",
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
			report, err := remote.Pull(r, ep, token, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if report.HasConflicts {
				fmt.Fprintf(out, "automatic merge failed: %d conflicting file(s); fix conflicts and commit\n", report.TotalConflicts)
				return nil
			}
			fmt.Fprintf(out, "merge commit %s\n", shortHash(string(report.MergeCommit)))
			return nil
		},
	}
}
