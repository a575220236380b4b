package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/biogit/biogit/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	Mode     string
	BlobHash object.Hash
}

// BuildTreeFromIndex builds and writes the full tree object graph for a set
// of staged files, returning the root tree hash.
//
// Construction is bottom-up: every directory that appears as an ancestor of
// some entry (plus the root, keyed by "") is collected, then built in order
// of decreasing depth (deepest directories first), with ties broken by
// decreasing lexicographic order. Building deepest-first guarantees that by
// the time a directory's tree is assembled, every subtree hash it needs to
// reference has already been computed.
func (r *Repo) BuildTreeFromIndex(entries []*IndexEntry) (object.Hash, error) {
	type fileRef struct {
		name string
		mode string
		hash object.Hash
	}

	filesByDir := make(map[string][]fileRef)
	dirSet := map[string]struct{}{"": {}}

	for _, e := range entries {
		dir := path.Dir(e.Path)
		if dir == "." {
			dir = ""
		}
		name := path.Base(e.Path)
		filesByDir[dir] = append(filesByDir[dir], fileRef{name: name, mode: e.Mode, hash: e.BlobHash})

		for d := dir; ; {
			if _, ok := dirSet[d]; ok {
				break
			}
			dirSet[d] = struct{}{}
			if d == "" {
				break
			}
			parent := path.Dir(d)
			if parent == "." {
				parent = ""
			}
			d = parent
		}
	}

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depthOf(dirs[i]), depthOf(dirs[j])
		if di != dj {
			return di > dj // deeper first
		}
		return dirs[i] > dirs[j] // lexicographically later first
	})

	childDirsByParent := make(map[string][]string)
	for d := range dirSet {
		if d == "" {
			continue
		}
		parent := path.Dir(d)
		if parent == "." {
			parent = ""
		}
		childDirsByParent[parent] = append(childDirsByParent[parent], d)
	}

	subtreeHash := make(map[string]object.Hash)

	for _, dir := range dirs {
		var tr object.TreeObj
		for _, f := range filesByDir[dir] {
			tr.Entries = append(tr.Entries, object.TreeEntry{Name: f.name, Mode: f.mode, Hash: f.hash})
		}
		for _, childDir := range childDirsByParent[dir] {
			h, ok := subtreeHash[childDir]
			if !ok {
				return "", fmt.Errorf("build tree: missing subtree hash for %q", childDir)
			}
			tr.Entries = append(tr.Entries, object.TreeEntry{
				Name: path.Base(childDir),
				Mode: object.ModeDir,
				Hash: h,
			})
		}

		h, err := r.Store.WriteTree(&tr)
		if err != nil {
			return "", fmt.Errorf("build tree: write %q: %w", dir, err)
		}
		subtreeHash[dir] = h
	}

	root, ok := subtreeHash[""]
	if !ok {
		return "", fmt.Errorf("build tree: missing root")
	}
	return root, nil
}

func depthOf(dir string) int {
	if dir == "" {
		return 0
	}
	return strings.Count(dir, "/") + 1
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes).
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.IsDir() {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path:     fullPath,
				Mode:     entry.Mode,
				BlobHash: entry.Hash,
			})
		}
	}
	return result, nil
}

// FlattenTreeMap is FlattenTree as a path -> entry map, convenient for diffs.
func (r *Repo) FlattenTreeMap(h object.Hash) (map[string]TreeFileEntry, error) {
	entries, err := r.FlattenTree(h)
	if err != nil {
		return nil, err
	}
	out := make(map[string]TreeFileEntry, len(entries))
	for _, e := range entries {
		out[e.Path] = e
	}
	return out, nil
}
