package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/biogit/biogit/pkg/object"
)

// IndexEntry is a single staged file: its tree mode, blob hash, the
// modification time captured at stage time (for cheap dirty detection),
// its size, and its repo-relative path. Conflict marks an entry left by an
// unresolved three-way merge.
type IndexEntry struct {
	Mode        string
	BlobHash    object.Hash
	ModTimeSec  int64
	ModTimeNsec int64
	Size        int64
	Path        string
	Conflict    bool
}

// Index is the staging area: a sorted-by-path, atomically rewritten set of IndexEntry records. The on-disk format is one line per
// entry: "<mode> <blob-hex> <mtime-sec> <mtime-nsec> <size> <path>".
type Index struct {
	entries map[string]*IndexEntry
	loaded  bool
}

func (r *Repo) indexPath() string {
	return filepath.Join(r.GotDir, "index")
}

func newIndex() *Index {
	return &Index{entries: make(map[string]*IndexEntry)}
}

// LoadIndex reads .biogit/index into a fresh Index on every call. A missing
// file is not an error: it is treated as an empty index.
func (r *Repo) LoadIndex() (*Index, error) {
	idx := newIndex()
	f, err := os.Open(r.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			idx.loaded = true
			return idx, nil
		}
		return nil, fmt.Errorf("load index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, conflict, err := parseIndexLine(line)
		if err != nil {
			return nil, fmt.Errorf("load index: %w", err)
		}
		entry.Conflict = conflict
		idx.entries[entry.Path] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load index: scan: %w", err)
	}
	idx.loaded = true
	return idx, nil
}

// parseIndexLine parses "<mode> <blob-hex> <mtime-sec> <mtime-nsec> <size> <path>".
// A conflicted entry is marked by a leading "!" before the mode.
func parseIndexLine(line string) (*IndexEntry, bool, error) {
	conflict := false
	if strings.HasPrefix(line, "!") {
		conflict = true
		line = line[1:]
	}

	fields := strings.SplitN(line, " ", 6)
	if len(fields) != 6 {
		return nil, false, fmt.Errorf("malformed index line %q", line)
	}
	sec, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("malformed mtime seconds %q: %w", fields[2], err)
	}
	nsec, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("malformed mtime nanoseconds %q: %w", fields[3], err)
	}
	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("malformed size %q: %w", fields[4], err)
	}
	return &IndexEntry{
		Mode:        fields[0],
		BlobHash:    object.Hash(fields[1]),
		ModTimeSec:  sec,
		ModTimeNsec: nsec,
		Size:        size,
		Path:        fields[5],
	}, conflict, nil
}

func formatIndexLine(e *IndexEntry) string {
	line := fmt.Sprintf("%s %s %d %d %d %s", e.Mode, e.BlobHash, e.ModTimeSec, e.ModTimeNsec, e.Size, e.Path)
	if e.Conflict {
		return "!" + line
	}
	return line
}

// WriteIndex atomically rewrites .biogit/index with entries sorted by path.
func (r *Repo) WriteIndex(idx *Index) error {
	paths := make([]string, 0, len(idx.entries))
	for p := range idx.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf strings.Builder
	for _, p := range paths {
		buf.WriteString(formatIndexLine(idx.entries[p]))
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(r.GotDir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(buf.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: close: %w", err)
	}
	if err := os.Rename(tmpName, r.indexPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: rename: %w", err)
	}
	return nil
}

// AddOrUpdateEntry inserts or replaces the entry for e.Path.
func (idx *Index) AddOrUpdateEntry(e *IndexEntry) {
	idx.entries[e.Path] = e
}

// RemoveEntry deletes the entry for path, if present.
func (idx *Index) RemoveEntry(path string) {
	delete(idx.entries, path)
}

// GetEntry returns the entry for path, if present.
func (idx *Index) GetEntry(path string) (*IndexEntry, bool) {
	e, ok := idx.entries[path]
	return e, ok
}

// GetAllEntries returns every entry, sorted by path.
func (idx *Index) GetAllEntries() []*IndexEntry {
	paths := make([]string, 0, len(idx.entries))
	for p := range idx.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]*IndexEntry, len(paths))
	for i, p := range paths {
		out[i] = idx.entries[p]
	}
	return out
}

// ClearInMemory drops every entry without touching the on-disk file.
func (idx *Index) ClearInMemory() {
	idx.entries = make(map[string]*IndexEntry)
}

// repoRelPath converts an absolute or cwd-relative filesystem path to a
// forward-slashed path relative to the repository root.
func (r *Repo) repoRelPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") || rel == ".." {
		return "", fmt.Errorf("path %q is outside the repository", path)
	}
	return rel, nil
}

// AddPaths stages one or more files (or directories, recursively) by
// hashing their current contents into the object store and recording
// IndexEntry rows. Paths already under .biogit/ or matched by the ignore
// checker are skipped.
func (r *Repo) AddPaths(paths []string) error {
	idx, err := r.LoadIndex()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	ic := NewIgnoreChecker(r.RootDir)

	var files []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("add %q: %w", p, err)
		}
		if info.IsDir() {
			err := filepath.WalkDir(abs, func(walkPath string, d os.DirEntry, walkErr error) error {
				if walkErr != nil {
					return walkErr
				}
				rel, err := r.repoRelPath(walkPath)
				if err != nil {
					return nil
				}
				if ic.IsIgnored(rel) {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if !d.IsDir() {
					files = append(files, walkPath)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("add %q: %w", p, err)
			}
			continue
		}
		files = append(files, abs)
	}

	for _, absPath := range files {
		rel, err := r.repoRelPath(absPath)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		if ic.IsIgnored(rel) {
			continue
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("add %q: %w", rel, err)
		}
		data, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("add %q: %w", rel, err)
		}
		blobHash, err := r.Store.WriteBlob(&object.Blob{Data: data})
		if err != nil {
			return fmt.Errorf("add %q: write blob: %w", rel, err)
		}
		modTime := info.ModTime()
		idx.AddOrUpdateEntry(&IndexEntry{
			Mode:        modeFromFileInfo(info),
			BlobHash:    blobHash,
			ModTimeSec:  modTime.Unix(),
			ModTimeNsec: int64(modTime.Nanosecond()),
			Size:        info.Size(),
			Path:        rel,
		})
	}

	return r.WriteIndex(idx)
}

// RemovePaths unstages and deletes the given paths from the working tree.
// When cached is true (rm-cached), only the index entry is removed and the
// working tree copy is left untouched, skipping the modified-file safety
// check below (there is nothing to lose from disk).
func (r *Repo) RemovePaths(paths []string, cached bool) error {
	idx, err := r.LoadIndex()
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("rm: %w", err)
		}
		entry, ok := idx.GetEntry(rel)
		if !ok {
			return fmt.Errorf("rm %q: not staged", rel)
		}
		if !cached {
			absPath := filepath.Join(r.RootDir, filepath.FromSlash(rel))
			if data, err := os.ReadFile(absPath); err == nil {
				if object.HashObject(object.TypeBlob, data) != entry.BlobHash {
					return fmt.Errorf("rm %q: working tree file has unstaged modifications (use rm --cached to unstage without discarding)", rel)
				}
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("rm %q: %w", rel, err)
			}
		}
		idx.RemoveEntry(rel)
		if !cached {
			absPath := filepath.Join(r.RootDir, filepath.FromSlash(rel))
			if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("rm %q: %w", rel, err)
			}
		}
	}
	return r.WriteIndex(idx)
}
