package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/biogit/biogit/pkg/object"
)

func (r *Repo) mergeHeadPath() string     { return filepath.Join(r.GotDir, "MERGE_HEAD") }
func (r *Repo) fileConflictsPath() string { return filepath.Join(r.GotDir, "FILE_CONFLICTS") }

// pendingMergeHead returns the THEIRS hash of an in-progress conflicted
// merge, or "" if no merge is pending.
func (r *Repo) pendingMergeHead() (object.Hash, error) {
	data, err := os.ReadFile(r.mergeHeadPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read MERGE_HEAD: %w", err)
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// Commit builds a commit from the current index.
//
//  1. Load index. If MERGE_HEAD exists, this is a merge commit (two parents).
//  2. Reject only the degenerate case: nothing staged, no prior history, and
//     not a merge (an empty index is otherwise a perfectly valid tree, e.g.
//     "delete every tracked file, then commit").
//  3. Build the root tree from the index.
//  4. Determine parents: HEAD (if any) is parent 1; MERGE_HEAD (if present)
//     is parent 2. Reject if the computed root tree equals HEAD's tree and
//     this is not a merge commit.
//  5. Stamp author/committer from configured identity.
//  6. Build, save, and return the commit hash.
//  7. Move the current branch (or detached HEAD) to the new commit.
//  8. On a completed merge, delete MERGE_HEAD and FILE_CONFLICTS.
//  9. Repopulate the index from the new root tree, canonicalizing the
//     mtime/size recorded for every committed entry.
func (r *Repo) Commit(message string) (object.Hash, error) {
	idx, err := r.LoadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	entries := idx.GetAllEntries()
	for _, e := range entries {
		if e.Conflict {
			return "", fmt.Errorf("commit: unresolved conflict in %q", e.Path)
		}
	}

	mergeHead, err := r.pendingMergeHead()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	isMerge := mergeHead != ""

	treeHash, err := r.BuildTreeFromIndex(entries)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	hasParent := err == nil && parentHash != ""

	if !isMerge && len(entries) == 0 && !hasParent {
		return "", fmt.Errorf("commit: nothing staged")
	}

	if hasParent {
		parents = append(parents, parentHash)

		parentCommit, err := r.Store.ReadCommit(parentHash)
		if err != nil {
			return "", fmt.Errorf("commit: read parent commit: %w", err)
		}
		if !isMerge && parentCommit.TreeHash == treeHash {
			return "", fmt.Errorf("commit: nothing to commit, root tree unchanged")
		}
	}
	if isMerge {
		parents = append(parents, mergeHead)
	}

	name, email, err := r.Identity()
	if err != nil {
		return "", fmt.Errorf("commit: identity: %w", err)
	}
	now := time.Now()
	person := object.Person{
		Name:      name,
		Email:     email,
		Timestamp: now.Unix(),
		TZOffset:  now.Format("-0700"),
	}

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    person,
		Committer: person,
		Message:   message,
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	if err := r.moveCurrentRef(commitHash, parentHash, hasParent); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	if isMerge {
		if err := os.Remove(r.mergeHeadPath()); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("commit: remove MERGE_HEAD: %w", err)
		}
		if err := os.Remove(r.fileConflictsPath()); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("commit: remove FILE_CONFLICTS: %w", err)
		}
	}

	if err := r.repopulateIndexFromTree(treeHash); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	return commitHash, nil
}

// repopulateIndexFromTree rebuilds the index from the just-committed root
// tree, restamping each entry's mtime/size from the working tree file it
// corresponds to. Mirrors the index-rebuild loop in Switch.
func (r *Repo) repopulateIndexFromTree(treeHash object.Hash) error {
	files, err := r.FlattenTree(treeHash)
	if err != nil {
		return fmt.Errorf("flatten committed tree: %w", err)
	}

	newIdx := newIndex()
	for _, f := range files {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stat %q: %w", f.Path, err)
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
	return r.WriteIndex(newIdx)
}

// moveCurrentRef advances whatever HEAD currently points at (a branch ref,
// or a detached hash) to newHash via the ref CAS machinery.
func (r *Repo) moveCurrentRef(newHash, oldHash object.Hash, hasOld bool) error {
	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}

	if strings.HasPrefix(head, "refs/") {
		expected := object.Hash("")
		if hasOld {
			expected = oldHash
		}
		result, err := r.UpdateRef(head, newHash, expected, false)
		if err != nil {
			return fmt.Errorf("update ref %q: %w (%s)", head, err, result)
		}
		return nil
	}

	// Detached HEAD: write the new hash directly.
	return r.SetHead(string(newHash), true)
}

// LogEntry pairs a commit with the hash it is stored under, since
// CommitObj itself carries no hash field.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks the commit history starting from start, following first-parent
// links, returning up to limit commits (newest first). Display callers cap
// limit at 50 per the spec's log display bound.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start

	for len(entries) < limit && current != "" {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return entries, nil
}
