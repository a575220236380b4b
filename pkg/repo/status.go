package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/biogit/biogit/pkg/object"
)

// FileStatus represents the state of a file in one comparison (index vs
// HEAD, or working tree vs index).
type FileStatus int

const (
	StatusClean FileStatus = iota
	StatusNew              // in index, not in HEAD tree
	StatusModified         // in index, different from HEAD
	StatusConflict         // unresolved merge conflict in the index
	StatusDeleted          // present on one side, missing from the other
	StatusUntracked        // in working dir, not in index
	StatusDirty            // staged but working copy differs from the staged blob
)

// StatusEntry records the status of a single path.
type StatusEntry struct {
	Path        string
	IndexStatus FileStatus // to-be-committed: index vs HEAD
	WorkStatus  FileStatus // not-staged: working tree vs index
	Conflict    bool       // listed in FILE_CONFLICTS while a merge is pending
}

// Status computes the three-section working tree status: to-be-committed
// (index vs HEAD), not-staged (working tree vs index), and untracked (on
// disk, absent from the index). When a merge is pending, conflicted paths
// are annotated via Conflict.
func (r *Repo) Status() ([]StatusEntry, error) {
	idx, err := r.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	conflictPaths, err := r.readFileConflicts()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	ic := NewIgnoreChecker(r.RootDir)

	workFiles := make(map[string]bool)
	err = filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
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
		if !d.IsDir() {
			workFiles[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("status: walk: %w", err)
	}

	result := make(map[string]*StatusEntry)
	entryFor := func(path string) *StatusEntry {
		e, ok := result[path]
		if !ok {
			e = &StatusEntry{Path: path, Conflict: conflictPaths[path]}
			result[path] = e
		}
		return e
	}

	// --- not-staged: working tree vs index ---
	for path := range workFiles {
		ie, inIndex := idx.GetEntry(path)
		if !inIndex {
			entryFor(path).WorkStatus = StatusUntracked
			continue
		}
		if ie.Conflict {
			entryFor(path).WorkStatus = StatusConflict
			continue
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("status: stat %q: %w", path, err)
		}
		workMode := modeFromFileInfo(info)

		workStatus := StatusClean
		if ie.Size != info.Size() || ie.ModTimeSec != info.ModTime().Unix() || ie.ModTimeNsec != int64(info.ModTime().Nanosecond()) {
			content, err := os.ReadFile(absPath)
			if err != nil {
				return nil, fmt.Errorf("status: read %q: %w", path, err)
			}
			workHash := object.HashObject(object.TypeBlob, content)
			if workHash != ie.BlobHash || workMode != normalizeFileMode(ie.Mode) {
				workStatus = StatusDirty
			}
		}
		entryFor(path).WorkStatus = workStatus
	}
	for _, ie := range idx.GetAllEntries() {
		if !workFiles[ie.Path] {
			e := entryFor(ie.Path)
			if ie.Conflict {
				e.WorkStatus = StatusConflict
			} else {
				e.WorkStatus = StatusDeleted
			}
		}
	}

	// --- to-be-committed: index vs HEAD ---
	headEntries, err := r.headTreeEntries()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	for _, ie := range idx.GetAllEntries() {
		e := entryFor(ie.Path)
		if ie.Conflict {
			e.IndexStatus = StatusConflict
			continue
		}
		headState, inHead := headEntries[ie.Path]
		switch {
		case !inHead:
			e.IndexStatus = StatusNew
		case ie.BlobHash != headState.BlobHash || normalizeFileMode(ie.Mode) != normalizeFileMode(headState.Mode):
			e.IndexStatus = StatusModified
		default:
			e.IndexStatus = StatusClean
		}
	}
	for path := range headEntries {
		if _, inIndex := idx.GetEntry(path); !inIndex {
			entryFor(path).IndexStatus = StatusDeleted
		}
	}

	entries := make([]StatusEntry, 0, len(result))
	for _, e := range result {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

type headTreeState struct {
	BlobHash object.Hash
	Mode     string
}

// headTreeEntries flattens the HEAD commit's tree into path -> state. A
// repository with no commits yet yields an empty map.
func (r *Repo) headTreeEntries() (map[string]headTreeState, error) {
	result := make(map[string]headTreeState)

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return result, nil
	}
	commit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("flatten HEAD tree: %w", err)
	}
	for _, f := range files {
		result[f.Path] = headTreeState{BlobHash: f.BlobHash, Mode: normalizeFileMode(f.Mode)}
	}
	return result, nil
}

// readFileConflicts parses .biogit/FILE_CONFLICTS (one path per line) into
// a set. A missing file (no merge pending, or a clean merge) yields an
// empty set.
func (r *Repo) readFileConflicts() (map[string]bool, error) {
	result := make(map[string]bool)
	data, err := os.ReadFile(r.fileConflictsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("read FILE_CONFLICTS: %w", err)
	}
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			if line := string(data[start:i]); line != "" {
				result[line] = true
			}
			start = i + 1
		}
	}
	if start < len(data) {
		if line := string(data[start:]); line != "" {
			result[line] = true
		}
	}
	return result, nil
}
