package repo

import (
	"os"
	"path/filepath"
	"testing"
)

// Test 1: Switch to a newly created branch updates HEAD symbolically and
// leaves the working tree identical (same commit, different branch).
func TestSwitch_ToBranch_UpdatesSymbolicHEAD(t *testing.T) {
	r, _ := setupRepoWithFile(t, "a.txt", "hello")
	h, err := r.Commit("first")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.CreateBranch("feature", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	if err := r.Switch("feature"); err != nil {
		t.Fatalf("Switch: %v", err)
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature" {
		t.Errorf("CurrentBranch = %q, want %q", branch, "feature")
	}
}

// Test 2: switching between branches with divergent file sets adds and
// removes working tree files to match the target commit.
func TestSwitch_UpdatesWorkingTreeFiles(t *testing.T) {
	r, _ := setupRepoWithFile(t, "common.txt", "v1")
	mainHash, err := r.Commit("on main")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.CreateBranch("feature", mainHash); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Switch("feature"); err != nil {
		t.Fatalf("Switch to feature: %v", err)
	}

	writeWorkFile(t, r, "feature-only.txt", "only on feature")
	if err := r.AddPaths([]string{filepath.Join(r.RootDir, "feature-only.txt")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	if _, err := r.Commit("feature work"); err != nil {
		t.Fatalf("Commit feature: %v", err)
	}

	if err := r.Switch("main"); err != nil {
		t.Fatalf("Switch back to main: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.RootDir, "feature-only.txt")); !os.IsNotExist(err) {
		t.Errorf("expected feature-only.txt to be removed on main, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.RootDir, "common.txt")); err != nil {
		t.Errorf("expected common.txt to remain, stat err = %v", err)
	}
}

// Test 3: Switch refuses when the working tree has uncommitted changes.
func TestSwitch_DirtyWorkingTree_Error(t *testing.T) {
	r, _ := setupRepoWithFile(t, "a.txt", "hello")
	h, err := r.Commit("first")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.CreateBranch("feature", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.RootDir, "a.txt"), []byte("dirty"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := r.Switch("feature"); err == nil {
		t.Fatal("Switch with a dirty working tree should fail, got nil error")
	}
}

// Test 3b: an untracked file does not count as a dirty working tree.
func TestSwitch_UntrackedFile_DoesNotBlock(t *testing.T) {
	r, _ := setupRepoWithFile(t, "a.txt", "hello")
	h, err := r.Commit("first")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.CreateBranch("feature", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.RootDir, "untracked.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := r.Switch("feature"); err != nil {
		t.Fatalf("Switch with only an untracked file present should succeed: %v", err)
	}
}

// Test 4: Switch to a bare commit hash detaches HEAD.
func TestSwitch_ToCommitHash_Detaches(t *testing.T) {
	r, _ := setupRepoWithFile(t, "a.txt", "hello")
	h, err := r.Commit("first")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := r.Switch(string(h)); err != nil {
		t.Fatalf("Switch: %v", err)
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "" {
		t.Errorf("CurrentBranch after detached switch = %q, want empty", branch)
	}
}
