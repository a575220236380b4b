package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogit/biogit/pkg/object"
)

// Switch moves the working tree, index, and HEAD to target (a branch name
// resolved first, then any commit-ish).
//
//  1. Refuse if the workspace is not clean.
//  2. Resolve target as a branch name first, then as a commit-ish.
//  3. Compute the new root tree.
//  4. Update the working tree: delete files present in the old tracked set
//     but absent from the new one, write/overwrite files in the new tree.
//  5. Rebuild the index from the new tree.
//  6. Update HEAD: symbolic if target resolved as a branch, detached
//     otherwise.
func (r *Repo) Switch(target string) error {
	if err := r.ensureClean(); err != nil {
		return fmt.Errorf("switch: %w", err)
	}

	isBranch := false
	var targetHash object.Hash

	if branchHash, err := r.ResolveRef("refs/heads/" + target); err == nil {
		targetHash = branchHash
		isBranch = true
	} else {
		resolved, err := r.Resolve(target)
		if err != nil {
			return fmt.Errorf("switch: resolve %q: %w", target, err)
		}
		targetHash = resolved
	}

	commit, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return fmt.Errorf("switch: read commit %s: %w", targetHash, err)
	}

	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("switch: flatten target tree: %w", err)
	}
	targetMap := make(map[string]TreeFileEntry, len(targetFiles))
	for _, f := range targetFiles {
		targetMap[f.Path] = f
	}

	oldEntries, err := r.headTreeEntries()
	if err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	idx, err := r.LoadIndex()
	if err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	trackedPaths := make(map[string]bool)
	for p := range oldEntries {
		trackedPaths[p] = true
	}
	for _, e := range idx.GetAllEntries() {
		trackedPaths[e.Path] = true
	}

	for path := range trackedPaths {
		if _, keep := targetMap[path]; keep {
			continue
		}
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("switch: remove %q: %w", path, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}

	for _, f := range targetFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		dir := filepath.Dir(absPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("switch: mkdir %q: %w", dir, err)
		}
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("switch: read blob for %q: %w", f.Path, err)
		}
		if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
			return fmt.Errorf("switch: write %q: %w", f.Path, err)
		}
	}

	newIdx := newIndex()
	for _, f := range targetFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("switch: stat %q: %w", f.Path, err)
		}
		modTime := info.ModTime()
		newIdx.AddOrUpdateEntry(&IndexEntry{
			Mode:        normalizeFileMode(f.Mode),
			BlobHash:    f.BlobHash,
			ModTimeSec:  modTime.Unix(),
			ModTimeNsec: int64(modTime.Nanosecond()),
			Size:        info.Size(),
			Path:        f.Path,
		})
	}
	if err := r.WriteIndex(newIdx); err != nil {
		return fmt.Errorf("switch: %w", err)
	}

	if isBranch {
		if err := r.SetHead("refs/heads/"+target, false); err != nil {
			return fmt.Errorf("switch: update HEAD: %w", err)
		}
	} else {
		if err := r.SetHead(string(targetHash), true); err != nil {
			return fmt.Errorf("switch: update HEAD: %w", err)
		}
	}

	return nil
}

// ensureClean refuses unless every tracked path is clean on both
// dimensions of Status.
func (r *Repo) ensureClean() error {
	entries, err := r.Status()
	if err != nil {
		return fmt.Errorf("check status: %w", err)
	}
	for _, e := range entries {
		if e.WorkStatus == StatusUntracked {
			continue
		}
		if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
			return fmt.Errorf("working tree is not clean (%q has uncommitted changes)", e.Path)
		}
	}
	return nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}
