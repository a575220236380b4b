package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var deleteBranch string
	var forceDeleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [<name> [<start>]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			if name := deleteBranch + forceDeleteBranch; name != "" {
				if err := r.DeleteBranch(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted branch %s\n", name)
				return nil
			}

			if len(args) >= 1 {
				start := "HEAD"
				if len(args) == 2 {
					start = args[1]
				}
				startHash, err := r.Resolve(start)
				if err != nil {
					return fmt.Errorf("branch: %w", err)
				}
				return r.CreateBranch(args[0], startHash)
			}

			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			current, _ := r.CurrentBranch()
			out := cmd.OutOrStdout()
			for _, b := range branches {
				if b == current {
					fmt.Fprintf(out, "* %s\n", b)
				} else {
					fmt.Fprintf(out, "  %s\n", b)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	cmd.Flags().StringVarP(&forceDeleteBranch, "force-delete", "D", "", "force-delete the named branch")
	return cmd
}
