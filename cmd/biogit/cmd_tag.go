package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	var deleteTag string

	cmd := &cobra.Command{
		Use:   "tag [<name> [<commitish>]]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			if deleteTag != "" {
				if err := r.DeleteTag(deleteTag); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted tag %s\n", deleteTag)
				return nil
			}

			if len(args) >= 1 {
				target := "HEAD"
				if len(args) == 2 {
					target = args[1]
				}
				targetHash, err := r.Resolve(target)
				if err != nil {
					return fmt.Errorf("tag: %w", err)
				}
				return r.CreateTag(args[0], targetHash)
			}

			tags, err := r.ListTags()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range tags {
				fmt.Fprintln(out, t)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	return cmd
}
