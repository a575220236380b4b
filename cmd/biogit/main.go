package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "biogit",
		Short:         "A distributed version control system",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newRmCmd(),
		newRmCachedCmd(),
		newCommitCmd(),
		newStatusCmd(),
		newLogCmd(),
		newShowCmd(),
		newBranchCmd(),
		newSwitchCmd(),
		newTagCmd(),
		newDiffCmd(),
		newMergeCmd(),
		newConfigCmd(),
		newCloneCmd(),
		newRemoteCmd(),
		newFetchCmd(),
		newPushCmd(),
		newPullCmd(),
		newRegisterCmd(),
		newLoginCmd(),
		newServerCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "biogit:", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}
