package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/biogit/biogit/pkg/diff3"
	"github.com/biogit/biogit/pkg/object"
)

// FileMergeReport records the merge outcome for a single file.
type FileMergeReport struct {
	Path   string
	Status string // "clean", "conflict", "added", "deleted"
}

// MergeReport is the overall result of a repository-level merge.
type MergeReport struct {
	Files          []FileMergeReport
	HasConflicts   bool
	TotalConflicts int
	MergeCommit    object.Hash // set only when the merge committed cleanly
}

type mergedFileWrite struct {
	path    string
	content []byte
	mode    string
}

// resolveMergeTarget resolves THEIRS the same way Switch resolves its
// target: a local branch name first, then any commit-ish (tag, hash
// prefix, <remote>/<branch>), so merge accepts the same vocabulary as
// switch rather than only local branch names.
func (r *Repo) resolveMergeTarget(target string) (object.Hash, error) {
	if branchHash, err := r.ResolveRef("refs/heads/" + target); err == nil {
		return branchHash, nil
	}
	return r.Resolve(target)
}

// Merge merges branchName into the current HEAD.
//
// Preconditions: clean workspace, no existing MERGE_HEAD, HEAD != branch tip.
//
//  1. Resolve OURS (HEAD) and THEIRS (branch tip).
//  2. BASE = FindMergeBase(OURS, THEIRS). A fast-forward is handled directly.
//  3. Flatten all three trees and collect the union of paths.
//  4. For each path, take the unchanged side, the sole change, or run a
//     three-way line merge; conflicting files get conflict markers.
//  5. If any conflicts: write MERGE_HEAD (THEIRS) and FILE_CONFLICTS (path
//     list), leave HEAD untouched, report failure. commit finishes the merge
//     once conflicts are resolved and re-staged.
//  6. If clean: rebuild the index and working tree, then call Commit, which
//     detects MERGE_HEAD and creates the two-parent commit.
func (r *Repo) Merge(branchName string) (*MergeReport, error) {
	if err := r.ensureClean(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if pending, err := r.pendingMergeHead(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	} else if pending != "" {
		return nil, fmt.Errorf("merge: a merge is already in progress (resolve conflicts and commit)")
	}

	oursHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge: resolve HEAD: %w", err)
	}
	theirsHash, err := r.resolveMergeTarget(branchName)
	if err != nil {
		return nil, fmt.Errorf("merge: resolve %q: %w", branchName, err)
	}
	if oursHash == theirsHash {
		return nil, fmt.Errorf("merge: already up to date")
	}

	baseHash, err := r.FindMergeBase(oursHash, theirsHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if baseHash == theirsHash {
		return nil, fmt.Errorf("merge: already up to date")
	}
	if baseHash == oursHash {
		return r.fastForwardMerge(branchName, theirsHash)
	}

	oursCommit, err := r.Store.ReadCommit(oursHash)
	if err != nil {
		return nil, fmt.Errorf("merge: read ours commit: %w", err)
	}
	theirsCommit, err := r.Store.ReadCommit(theirsHash)
	if err != nil {
		return nil, fmt.Errorf("merge: read theirs commit: %w", err)
	}

	oursFiles, err := r.FlattenTreeMap(oursCommit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten ours tree: %w", err)
	}
	theirsFiles, err := r.FlattenTreeMap(theirsCommit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten theirs tree: %w", err)
	}
	baseFiles := map[string]TreeFileEntry{}
	if baseHash != "" {
		baseCommit, err := r.Store.ReadCommit(baseHash)
		if err != nil {
			return nil, fmt.Errorf("merge: read base commit: %w", err)
		}
		baseFiles, err = r.FlattenTreeMap(baseCommit.TreeHash)
		if err != nil {
			return nil, fmt.Errorf("merge: flatten base tree: %w", err)
		}
	}

	allPaths := collectAllPaths(baseFiles, oursFiles, theirsFiles)

	var mergedFiles []mergedFileWrite
	var conflictPaths []string
	var deletedPaths []string
	report := &MergeReport{}

	for _, path := range allPaths {
		baseEntry, inBase := baseFiles[path]
		oursEntry, inOurs := oursFiles[path]
		theirsEntry, inTheirs := theirsFiles[path]

		switch {
		case inOurs && inTheirs && oursEntry.BlobHash == theirsEntry.BlobHash:
			content, err := r.readBlobData(oursEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			mergedFiles = append(mergedFiles, mergedFileWrite{path, content, oursEntry.Mode})
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "clean"})

		case inBase && inOurs && inTheirs:
			if oursEntry.BlobHash == baseEntry.BlobHash {
				content, err := r.readBlobData(theirsEntry.BlobHash)
				if err != nil {
					return nil, fmt.Errorf("merge %q: %w", path, err)
				}
				mergedFiles = append(mergedFiles, mergedFileWrite{path, content, theirsEntry.Mode})
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "clean"})
				continue
			}
			if theirsEntry.BlobHash == baseEntry.BlobHash {
				content, err := r.readBlobData(oursEntry.BlobHash)
				if err != nil {
					return nil, fmt.Errorf("merge %q: %w", path, err)
				}
				mergedFiles = append(mergedFiles, mergedFileWrite{path, content, oursEntry.Mode})
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "clean"})
				continue
			}

			baseData, err := r.readBlobData(baseEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			oursData, err := r.readBlobData(oursEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			theirsData, err := r.readBlobData(theirsEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			result := diff3.Merge(baseData, oursData, theirsData)
			mergedFiles = append(mergedFiles, mergedFileWrite{path, result.Merged, oursEntry.Mode})
			if result.HasConflicts {
				report.HasConflicts = true
				report.TotalConflicts++
				conflictPaths = append(conflictPaths, path)
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "conflict"})
			} else {
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "clean"})
			}

		case !inBase && inOurs && inTheirs:
			oursData, err := r.readBlobData(oursEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			theirsData, err := r.readBlobData(theirsEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			result := diff3.Merge(nil, oursData, theirsData)
			mergedFiles = append(mergedFiles, mergedFileWrite{path, result.Merged, oursEntry.Mode})
			if result.HasConflicts {
				report.HasConflicts = true
				report.TotalConflicts++
				conflictPaths = append(conflictPaths, path)
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "conflict"})
			} else {
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "clean"})
			}

		case inBase && inOurs && !inTheirs:
			if oursEntry.BlobHash == baseEntry.BlobHash {
				deletedPaths = append(deletedPaths, path)
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "deleted"})
				continue
			}
			oursData, err := r.readBlobData(oursEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			mergedFiles = append(mergedFiles, mergedFileWrite{path, renderFileConflict(oursData, nil), oursEntry.Mode})
			report.HasConflicts = true
			report.TotalConflicts++
			conflictPaths = append(conflictPaths, path)
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "conflict"})

		case inBase && !inOurs && inTheirs:
			if theirsEntry.BlobHash == baseEntry.BlobHash {
				deletedPaths = append(deletedPaths, path)
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "deleted"})
				continue
			}
			theirsData, err := r.readBlobData(theirsEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			mergedFiles = append(mergedFiles, mergedFileWrite{path, renderFileConflict(nil, theirsData), theirsEntry.Mode})
			report.HasConflicts = true
			report.TotalConflicts++
			conflictPaths = append(conflictPaths, path)
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "conflict"})

		case !inBase && inOurs && !inTheirs:
			content, err := r.readBlobData(oursEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			mergedFiles = append(mergedFiles, mergedFileWrite{path, content, oursEntry.Mode})
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "added"})

		case !inBase && !inOurs && inTheirs:
			content, err := r.readBlobData(theirsEntry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			mergedFiles = append(mergedFiles, mergedFileWrite{path, content, theirsEntry.Mode})
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "added"})

		case inBase && !inOurs && !inTheirs:
			deletedPaths = append(deletedPaths, path)
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "deleted"})
		}
	}

	for _, mf := range mergedFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(mf.path))
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("merge: mkdir for %q: %w", mf.path, err)
		}
		if err := os.WriteFile(absPath, mf.content, filePermFromMode(mf.mode)); err != nil {
			return nil, fmt.Errorf("merge: write %q: %w", mf.path, err)
		}
	}
	for _, path := range deletedPaths {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("merge: remove %q: %w", path, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}

	idx, err := r.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	for _, p := range deletedPaths {
		idx.RemoveEntry(p)
	}
	conflictSet := make(map[string]bool, len(conflictPaths))
	for _, p := range conflictPaths {
		conflictSet[p] = true
	}
	for _, mf := range mergedFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(mf.path))
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("merge: stat %q: %w", mf.path, err)
		}
		blobHash, err := r.Store.WriteBlob(&object.Blob{Data: mf.content})
		if err != nil {
			return nil, fmt.Errorf("merge: write blob %q: %w", mf.path, err)
		}
		modTime := info.ModTime()
		idx.AddOrUpdateEntry(&IndexEntry{
			Mode:        normalizeFileMode(mf.mode),
			BlobHash:    blobHash,
			ModTimeSec:  modTime.Unix(),
			ModTimeNsec: int64(modTime.Nanosecond()),
			Size:        info.Size(),
			Path:        mf.path,
			Conflict:    conflictSet[mf.path],
		})
	}
	if err := r.WriteIndex(idx); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if report.HasConflicts {
		if err := os.WriteFile(r.mergeHeadPath(), []byte(string(theirsHash)+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("merge: write MERGE_HEAD: %w", err)
		}
		sort.Strings(conflictPaths)
		if err := os.WriteFile(r.fileConflictsPath(), []byte(strings.Join(conflictPaths, "\n")+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("merge: write FILE_CONFLICTS: %w", err)
		}
		return report, nil
	}

	if err := os.WriteFile(r.mergeHeadPath(), []byte(string(theirsHash)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("merge: write MERGE_HEAD: %w", err)
	}
	mergeHash, err := r.Commit(fmt.Sprintf("Merge branch '%s'", branchName))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	report.MergeCommit = mergeHash
	return report, nil
}

// fastForwardMerge handles the case where OURS is itself an ancestor of
// THEIRS: rebuild the working tree and index at theirsHash with Switch
// (which checks cleanliness against the current HEAD), then move the
// current branch ref to theirsHash and point HEAD back at that branch.
func (r *Repo) fastForwardMerge(branchName string, theirsHash object.Hash) (*MergeReport, error) {
	current, err := r.CurrentBranch()
	if err != nil {
		return nil, err
	}
	if current == "" {
		return nil, fmt.Errorf("fast-forward merge requires a branch checkout, not detached HEAD")
	}
	if err := r.Switch(string(theirsHash)); err != nil {
		return nil, fmt.Errorf("fast-forward merge: rebuild working tree: %w", err)
	}
	if _, err := r.UpdateRef("refs/heads/"+current, theirsHash, "", false); err != nil {
		return nil, fmt.Errorf("fast-forward merge: update ref: %w", err)
	}
	if err := r.SetHead("refs/heads/"+current, false); err != nil {
		return nil, fmt.Errorf("fast-forward merge: update HEAD: %w", err)
	}
	return &MergeReport{MergeCommit: theirsHash}, nil
}

func renderFileConflict(ours, theirs []byte) []byte {
	var b strings.Builder
	b.WriteString("<<<<<<< ours\n")
	b.Write(ours)
	if len(ours) > 0 && ours[len(ours)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString("=======\n")
	b.Write(theirs)
	if len(theirs) > 0 && theirs[len(theirs)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(">>>>>>> theirs\n")
	return []byte(b.String())
}

// readBlobData reads a blob from the store and returns its raw content.
func (r *Repo) readBlobData(h object.Hash) ([]byte, error) {
	blob, err := r.Store.ReadBlob(h)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	return blob.Data, nil
}

// collectAllPaths returns a sorted, deduplicated union of paths across
// three path->entry maps.
func collectAllPaths(base, ours, theirs map[string]TreeFileEntry) []string {
	seen := make(map[string]bool)
	for p := range base {
		seen[p] = true
	}
	for p := range ours {
		seen[p] = true
	}
	for p := range theirs {
		seen[p] = true
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
