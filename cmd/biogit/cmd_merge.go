package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <name>",
		Short: "Merge a branch into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			report, err := r.Merge(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range report.Files {
				if f.Status != "clean" {
					fmt.Fprintf(out, "%s\t%s\n", f.Status, f.Path)
				}
			}
			if report.HasConflicts {
				fmt.Fprintf(out, "automatic merge failed: %d conflicting file(s); fix conflicts and commit\n", report.TotalConflicts)
				return nil
			}
			fmt.Fprintf(out, "merge commit %s\n", shortHash(string(report.MergeCommit)))
			return nil
		},
	}
}
