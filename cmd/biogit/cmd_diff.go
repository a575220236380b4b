package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/biogit/biogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var staged bool

	cmd := &cobra.Command{
		Use:   "diff [--staged] [<c1> <c2>] [<path>...]",
		Short: "Show changes between commits, the index, or the working tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			var before, after map[string][]byte
			var filters []string

			if len(args) >= 2 {
				c1Hash, err := r.Resolve(args[0])
				if err != nil {
					return fmt.Errorf("diff: %w", err)
				}
				c2Hash, err := r.Resolve(args[1])
				if err != nil {
					return fmt.Errorf("diff: %w", err)
				}
				c1, err := r.Store.ReadCommit(c1Hash)
				if err != nil {
					return err
				}
				c2, err := r.Store.ReadCommit(c2Hash)
				if err != nil {
					return err
				}
				before, err = snapshotFromTree(r, c1.TreeHash)
				if err != nil {
					return err
				}
				after, err = snapshotFromTree(r, c2.TreeHash)
				if err != nil {
					return err
				}
				filters = args[2:]
			} else if staged {
				before, err = headSnapshot(r)
				if err != nil {
					return err
				}
				after, err = snapshotFromIndex(r)
				if err != nil {
					return err
				}
				filters = args
			} else {
				before, err = snapshotFromIndex(r)
				if err != nil {
					return err
				}
				after, err = snapshotFromWorkingTree(r)
				if err != nil {
					return err
				}
				filters = args
			}

			return printSnapshotDiff(cmd.OutOrStdout(), before, after, filters)
		},
	}

	cmd.Flags().BoolVar(&staged, "staged", false, "diff HEAD against the index instead of the working tree")
	return cmd
}

// headSnapshot flattens HEAD's tree, or returns an empty snapshot for a
// repository with no commits yet.
func headSnapshot(r *repo.Repo) (map[string][]byte, error) {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return map[string][]byte{}, nil
	}
	commit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return nil, err
	}
	return snapshotFromTree(r, commit.TreeHash)
}

// snapshotFromIndex reads the blob content behind every staged (non-
// conflicted) index entry.
func snapshotFromIndex(r *repo.Repo) (map[string][]byte, error) {
	idx, err := r.LoadIndex()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	for _, e := range idx.GetAllEntries() {
		if e.Conflict {
			continue
		}
		blob, err := r.Store.ReadBlob(e.BlobHash)
		if err != nil {
			return nil, err
		}
		out[e.Path] = blob.Data
	}
	return out, nil
}

// snapshotFromWorkingTree reads every non-ignored file under the
// repository root into a path -> content map.
func snapshotFromWorkingTree(r *repo.Repo) (map[string][]byte, error) {
	ic := repo.NewIgnoreChecker(r.RootDir)
	out := make(map[string][]byte)
	err := filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("diff: walk working tree: %w", err)
	}
	return out, nil
}
