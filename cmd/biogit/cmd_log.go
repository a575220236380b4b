package main

import (
	"fmt"
	"io"

	"github.com/biogit/biogit/pkg/repo"
	"github.com/spf13/cobra"
)

// logDisplayLimit caps how many commits `log` walks and prints, matching
// the spec's display bound on history walks.
const logDisplayLimit = 50

func newLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show commit history starting at HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			head, err := r.ResolveRef("HEAD")
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}
			entries, err := r.Log(head, logDisplayLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				printLogEntry(out, e)
			}
			return nil
		},
	}
}

func printLogEntry(out io.Writer, e repo.LogEntry) {
	fmt.Fprintf(out, "commit %s\n", e.Hash)
	fmt.Fprintf(out, "Author: %s <%s>\n", e.Commit.Author.Name, e.Commit.Author.Email)
	fmt.Fprintf(out, "Date:   %d %s\n", e.Commit.Author.Timestamp, e.Commit.Author.TZOffset)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    %s\n\n", e.Commit.Message)
}
