package main

import (
	"fmt"
	"path"
	"strings"

	"github.com/biogit/biogit/pkg/remote"
	"github.com/spf13/cobra"
)

// provisionalCloneUser/Password are the hard-coded "clone user" credential
// the spec's Clone algorithm requires for the anonymous login that bootstraps
// a fresh checkout. They are never written into the new repository's
// configuration or token cache.
const (
	provisionalCloneUser     = "clone"
	provisionalCloneUserPass = "clone"
)

func newCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> [<dir>]",
		Short: "Clone a remote repository into a new directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := remote.ParseEndpoint(args[0])
			if err != nil {
				return err
			}

			dir := args[0]
			if len(args) == 2 {
				dir = args[1]
			} else {
				dir = path.Base(strings.TrimRight(ep.Repo, "/"))
			}
			if err := ensureEmptyDir(dir); err != nil {
				return err
			}

			r, err := remote.Clone(dir, ep, provisionalCloneUser, provisionalCloneUserPass)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cloned into %s\n", r.RootDir)
			return nil
		},
	}
}
