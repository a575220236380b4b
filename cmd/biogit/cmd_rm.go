package main

import (
	"github.com/spf13/cobra"
)

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove files from the working tree and the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			return r.RemovePaths(args, false)
		},
	}
}

func newRmCachedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-cached <path>...",
		Short: "Unstage files, leaving the working tree untouched",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			return r.RemovePaths(args, true)
		},
	}
}
