package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorkFile(t *testing.T, r *Repo, rel, content string) string {
	t.Helper()
	abs := filepath.Join(r.RootDir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return abs
}

// Test 1: AddPaths stages a single file, recorded in the index with the
// hash of its content.
func TestAddPaths_SingleFile(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	writeWorkFile(t, r, "a.txt", "hello")

	if err := r.AddPaths([]string{filepath.Join(dir, "a.txt")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}

	idx, err := r.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	entry, ok := idx.GetEntry("a.txt")
	if !ok {
		t.Fatal("expected a.txt to be staged")
	}
	if entry.Size != 5 {
		t.Errorf("Size = %d, want 5", entry.Size)
	}
}

// Test 2: AddPaths on a directory recursively stages every file under it.
func TestAddPaths_Directory_Recursive(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	writeWorkFile(t, r, "src/a.go", "package a")
	writeWorkFile(t, r, "src/nested/b.go", "package nested")

	if err := r.AddPaths([]string{filepath.Join(dir, "src")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}

	idx, err := r.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	for _, p := range []string{"src/a.go", "src/nested/b.go"} {
		if _, ok := idx.GetEntry(p); !ok {
			t.Errorf("expected %q to be staged", p)
		}
	}
}

// Test 3: AddPaths skips files matched by .biogitignore.
func TestAddPaths_SkipsIgnoredFiles(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	writeWorkFile(t, r, ".biogitignore", "*.log\n")
	writeWorkFile(t, r, "keep.txt", "keep")
	writeWorkFile(t, r, "skip.log", "skip")

	if err := r.AddPaths([]string{dir}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}

	idx, err := r.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if _, ok := idx.GetEntry("keep.txt"); !ok {
		t.Error("expected keep.txt to be staged")
	}
	if _, ok := idx.GetEntry("skip.log"); ok {
		t.Error("expected skip.log to be ignored, but it was staged")
	}
}

// Test 4: RemovePaths without --cached removes both the index entry and the
// working tree file, when the file is unmodified since staging.
func TestRemovePaths_WithoutCached_RemovesFromDisk(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	abs := writeWorkFile(t, r, "a.txt", "hello")
	if err := r.AddPaths([]string{abs}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}

	if err := r.RemovePaths([]string{abs}, false); err != nil {
		t.Fatalf("RemovePaths: %v", err)
	}

	if _, err := os.Stat(abs); !os.IsNotExist(err) {
		t.Errorf("expected %q to be removed from disk, stat err = %v", abs, err)
	}
	idx, err := r.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if _, ok := idx.GetEntry("a.txt"); ok {
		t.Error("expected a.txt to be unstaged")
	}
}

// Test 5: RemovePaths without --cached refuses to discard a file that has
// been modified since staging.
func TestRemovePaths_WithoutCached_RefusesModifiedFile(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	abs := writeWorkFile(t, r, "a.txt", "hello")
	if err := r.AddPaths([]string{abs}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	if err := os.WriteFile(abs, []byte("modified"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := r.RemovePaths([]string{abs}, false); err == nil {
		t.Fatal("RemovePaths on a modified file without --cached should fail, got nil error")
	}

	if _, err := os.Stat(abs); err != nil {
		t.Errorf("expected %q to remain on disk after refused rm, stat err = %v", abs, err)
	}
}

// Test 6: RemovePaths with cached=true unstages but leaves the working tree
// file untouched, even if modified.
func TestRemovePaths_Cached_LeavesWorkingTree(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	abs := writeWorkFile(t, r, "a.txt", "hello")
	if err := r.AddPaths([]string{abs}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	if err := os.WriteFile(abs, []byte("modified"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := r.RemovePaths([]string{abs}, true); err != nil {
		t.Fatalf("RemovePaths --cached: %v", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "modified" {
		t.Errorf("working tree content = %q, want %q", data, "modified")
	}
	idx, err := r.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if _, ok := idx.GetEntry("a.txt"); ok {
		t.Error("expected a.txt to be unstaged")
	}
}

// Test 7: RemovePaths on a path that was never staged fails.
func TestRemovePaths_NotStaged_Error(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	abs := writeWorkFile(t, r, "a.txt", "hello")

	if err := r.RemovePaths([]string{abs}, false); err == nil {
		t.Fatal("RemovePaths on an unstaged path should fail, got nil error")
	}
}

// Test 8: Index.GetAllEntries returns entries sorted by path regardless of
// insertion order.
func TestIndex_GetAllEntries_Sorted(t *testing.T) {
	idx := newIndex()
	idx.AddOrUpdateEntry(&IndexEntry{Path: "z.txt", BlobHash: "1"})
	idx.AddOrUpdateEntry(&IndexEntry{Path: "a.txt", BlobHash: "2"})
	idx.AddOrUpdateEntry(&IndexEntry{Path: "m.txt", BlobHash: "3"})

	entries := idx.GetAllEntries()
	want := []string{"a.txt", "m.txt", "z.txt"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Path != w {
			t.Errorf("entries[%d].Path = %q, want %q", i, entries[i].Path, w)
		}
	}
}

// Test 9: WriteIndex + LoadIndex round-trips a conflicted entry's flag.
func TestWriteLoadIndex_ConflictFlagRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	idx := newIndex()
	idx.AddOrUpdateEntry(&IndexEntry{
		Path:     "conflicted.txt",
		BlobHash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Mode:     "100644",
		Conflict: true,
	})
	if err := r.WriteIndex(idx); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	reloaded, err := r.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	entry, ok := reloaded.GetEntry("conflicted.txt")
	if !ok {
		t.Fatal("expected conflicted.txt to be present after reload")
	}
	if !entry.Conflict {
		t.Error("Conflict flag did not survive a write/load round-trip")
	}
}
