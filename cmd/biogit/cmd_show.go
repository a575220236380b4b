package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/biogit/biogit/pkg/diff"
	"github.com/biogit/biogit/pkg/object"
	"github.com/biogit/biogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <hash-prefix>",
		Short: "Show a commit and the changes it introduced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			hash, err := r.Resolve(args[0])
			if err != nil {
				return err
			}
			commit, err := r.Store.ReadCommit(hash)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printLogEntry(out, repo.LogEntry{Hash: hash, Commit: commit})

			var before map[string][]byte
			if len(commit.Parents) > 0 {
				parent, err := r.Store.ReadCommit(commit.Parents[0])
				if err != nil {
					return err
				}
				before, err = snapshotFromTree(r, parent.TreeHash)
				if err != nil {
					return err
				}
			}
			after, err := snapshotFromTree(r, commit.TreeHash)
			if err != nil {
				return err
			}
			return printSnapshotDiff(out, before, after, nil)
		},
	}
}

// snapshotFromTree flattens a commit tree into path -> file content, for
// diffing against another snapshot (working tree, index, or another tree).
func snapshotFromTree(r *repo.Repo, treeHash object.Hash) (map[string][]byte, error) {
	files, err := r.FlattenTreeMap(treeHash)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(files))
	for path, f := range files {
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return nil, err
		}
		out[path] = blob.Data
	}
	return out, nil
}

// printSnapshotDiff renders a unified diff between two path->content
// snapshots, optionally restricted to paths matching one of filters.
func printSnapshotDiff(out io.Writer, before, after map[string][]byte, filters []string) error {
	seen := make(map[string]bool, len(before)+len(after))
	var paths []string
	for p := range before {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for p := range after {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		if !pathMatchesFilters(p, filters) {
			continue
		}
		fd := diff.DiffBytes(p, before[p], after[p])
		text := diff.FormatUnified(fd)
		if text == "" {
			continue
		}
		if _, err := fmt.Fprint(out, text); err != nil {
			return err
		}
	}
	return nil
}

func pathMatchesFilters(path string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if path == f {
			return true
		}
		if len(path) > len(f) && path[:len(f)+1] == f+"/" {
			return true
		}
	}
	return false
}
