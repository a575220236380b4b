package main

import (
	"fmt"
	"io"

	"github.com/biogit/biogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged, unstaged, and untracked changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			entries, err := r.Status()
			if err != nil {
				return err
			}
			branch, _ := r.CurrentBranch()
			out := cmd.OutOrStdout()
			if branch != "" {
				fmt.Fprintf(out, "On branch %s\n", branch)
			} else {
				fmt.Fprintln(out, "HEAD detached")
			}
			printStatusSection(out, "Changes to be committed", entries, func(e repo.StatusEntry) (repo.FileStatus, bool) {
				return e.IndexStatus, e.IndexStatus != repo.StatusClean
			})
			printStatusSection(out, "Changes not staged for commit", entries, func(e repo.StatusEntry) (repo.FileStatus, bool) {
				return e.WorkStatus, e.WorkStatus != repo.StatusClean && e.WorkStatus != repo.StatusUntracked
			})
			printStatusSection(out, "Untracked files", entries, func(e repo.StatusEntry) (repo.FileStatus, bool) {
				return e.WorkStatus, e.WorkStatus == repo.StatusUntracked
			})
			return nil
		},
	}
}

func printStatusSection(out io.Writer, title string, entries []repo.StatusEntry, pick func(repo.StatusEntry) (repo.FileStatus, bool)) {
	var lines []string
	for _, e := range entries {
		status, show := pick(e)
		if !show {
			continue
		}
		label := statusLabel(status)
		if e.Conflict {
			label = "conflict"
		}
		lines = append(lines, fmt.Sprintf("\t%s: %s", label, e.Path))
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}

func statusLabel(s repo.FileStatus) string {
	switch s {
	case repo.StatusNew:
		return "new file"
	case repo.StatusModified:
		return "modified"
	case repo.StatusConflict:
		return "conflict"
	case repo.StatusDeleted:
		return "deleted"
	case repo.StatusUntracked:
		return "untracked"
	case repo.StatusDirty:
		return "modified"
	default:
		return "clean"
	}
}
