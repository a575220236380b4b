package repo

import (
	"os"
	"path/filepath"
	"testing"
)

// branchFromHEAD creates branch name pointing at the repo's current HEAD
// commit and switches to it.
func branchFromHEAD(t *testing.T, r *Repo, name string) {
	t.Helper()
	h, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if err := r.CreateBranch(name, h); err != nil {
		t.Fatalf("CreateBranch(%s): %v", name, err)
	}
}

// Test 1: merging a branch that is a descendant of HEAD fast-forwards
// without creating a merge commit.
func TestMerge_FastForward(t *testing.T) {
	r, _ := setupRepoWithFile(t, "a.txt", "v1")
	if _, err := r.Commit("c1"); err != nil {
		t.Fatalf("Commit c1: %v", err)
	}
	branchFromHEAD(t, r, "feature")

	if err := r.Switch("feature"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	writeWorkFile(t, r, "b.txt", "added on feature")
	if err := r.AddPaths([]string{filepath.Join(r.RootDir, "b.txt")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	featureTip, err := r.Commit("c2 on feature")
	if err != nil {
		t.Fatalf("Commit c2: %v", err)
	}
	if err := r.Switch("main"); err != nil {
		t.Fatalf("Switch back to main: %v", err)
	}

	report, err := r.Merge("feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.HasConflicts {
		t.Error("fast-forward merge should not report conflicts")
	}
	if report.MergeCommit != featureTip {
		t.Errorf("MergeCommit = %q, want %q (fast-forward target)", report.MergeCommit, featureTip)
	}
}

// Test 1b: Merge accepts any commit-ish, not just a local branch name —
// here a tag pointing at a descendant commit, exercised through the same
// fast-forward path as TestMerge_FastForward.
func TestMerge_AcceptsTagTarget(t *testing.T) {
	r, _ := setupRepoWithFile(t, "a.txt", "v1")
	if _, err := r.Commit("c1"); err != nil {
		t.Fatalf("Commit c1: %v", err)
	}
	branchFromHEAD(t, r, "feature")

	if err := r.Switch("feature"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	writeWorkFile(t, r, "b.txt", "added on feature")
	if err := r.AddPaths([]string{filepath.Join(r.RootDir, "b.txt")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	featureTip, err := r.Commit("c2 on feature")
	if err != nil {
		t.Fatalf("Commit c2: %v", err)
	}
	if err := r.CreateTag("v1.0", featureTip); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := r.Switch("main"); err != nil {
		t.Fatalf("Switch back to main: %v", err)
	}

	report, err := r.Merge("v1.0")
	if err != nil {
		t.Fatalf("Merge by tag name should succeed: %v", err)
	}
	if report.MergeCommit != featureTip {
		t.Errorf("MergeCommit = %q, want %q", report.MergeCommit, featureTip)
	}
}

// Test 2: merging two branches that changed disjoint files merges cleanly
// and produces a two-parent merge commit.
func TestMerge_CleanThreeWay(t *testing.T) {
	r, _ := setupRepoWithFile(t, "base.txt", "base content")
	if _, err := r.Commit("base"); err != nil {
		t.Fatalf("Commit base: %v", err)
	}
	branchFromHEAD(t, r, "feature")

	writeWorkFile(t, r, "main-only.txt", "on main")
	if err := r.AddPaths([]string{filepath.Join(r.RootDir, "main-only.txt")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	if _, err := r.Commit("main work"); err != nil {
		t.Fatalf("Commit main work: %v", err)
	}

	if err := r.Switch("feature"); err != nil {
		t.Fatalf("Switch to feature: %v", err)
	}
	writeWorkFile(t, r, "feature-only.txt", "on feature")
	if err := r.AddPaths([]string{filepath.Join(r.RootDir, "feature-only.txt")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	if _, err := r.Commit("feature work"); err != nil {
		t.Fatalf("Commit feature work: %v", err)
	}

	if err := r.Switch("main"); err != nil {
		t.Fatalf("Switch back to main: %v", err)
	}

	report, err := r.Merge("feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.HasConflicts {
		t.Fatal("clean disjoint-file merge should not report conflicts")
	}
	if report.MergeCommit == "" {
		t.Fatal("expected a merge commit hash")
	}
	c, err := r.Store.ReadCommit(report.MergeCommit)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 2 {
		t.Errorf("merge commit Parents = %v, want 2 parents", c.Parents)
	}
	for _, want := range []string{"base.txt", "main-only.txt", "feature-only.txt"} {
		if _, err := os.Stat(filepath.Join(r.RootDir, want)); err != nil {
			t.Errorf("expected %q present after merge, stat err = %v", want, err)
		}
	}
}

// Test 3: merging two branches that both edited the same file differently
// records a conflict, writes MERGE_HEAD/FILE_CONFLICTS, and leaves HEAD
// untouched until the conflict is resolved and committed.
func TestMerge_ConflictingEdits(t *testing.T) {
	r, _ := setupRepoWithFile(t, "shared.txt", "line one\nline two\nline three\n")
	baseHash, err := r.Commit("base")
	if err != nil {
		t.Fatalf("Commit base: %v", err)
	}
	branchFromHEAD(t, r, "feature")

	if err := os.WriteFile(filepath.Join(r.RootDir, "shared.txt"), []byte("line one\nMAIN CHANGE\nline three\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.AddPaths([]string{filepath.Join(r.RootDir, "shared.txt")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	if _, err := r.Commit("main edit"); err != nil {
		t.Fatalf("Commit main edit: %v", err)
	}

	if err := r.Switch("feature"); err != nil {
		t.Fatalf("Switch to feature: %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.RootDir, "shared.txt"), []byte("line one\nFEATURE CHANGE\nline three\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.AddPaths([]string{filepath.Join(r.RootDir, "shared.txt")}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	if _, err := r.Commit("feature edit"); err != nil {
		t.Fatalf("Commit feature edit: %v", err)
	}

	if err := r.Switch("main"); err != nil {
		t.Fatalf("Switch back to main: %v", err)
	}

	report, err := r.Merge("feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.HasConflicts {
		t.Fatal("expected a conflict for divergent edits to the same file")
	}
	if report.MergeCommit != "" {
		t.Errorf("MergeCommit = %q, want empty while conflicts remain unresolved", report.MergeCommit)
	}

	if _, err := os.Stat(r.mergeHeadPath()); err != nil {
		t.Errorf("expected MERGE_HEAD to exist, stat err = %v", err)
	}
	conflicts, err := r.readFileConflicts()
	if err != nil {
		t.Fatalf("readFileConflicts: %v", err)
	}
	if !conflicts["shared.txt"] {
		t.Errorf("FILE_CONFLICTS = %v, want shared.txt listed", conflicts)
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if head == baseHash {
		t.Error("HEAD should have advanced past base due to the main edit commit")
	}

	// Resolve the conflict and finish the merge with a commit.
	if err := os.WriteFile(filepath.Join(r.RootDir, "shared.txt"), []byte("line one\nRESOLVED\nline three\n"), 0o644); err != nil {
		t.Fatalf("WriteFile resolve: %v", err)
	}
	if err := r.AddPaths([]string{filepath.Join(r.RootDir, "shared.txt")}); err != nil {
		t.Fatalf("AddPaths resolve: %v", err)
	}
	mergeHash, err := r.Commit("resolve merge")
	if err != nil {
		t.Fatalf("Commit merge resolution: %v", err)
	}
	c, err := r.Store.ReadCommit(mergeHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 2 {
		t.Errorf("resolved merge commit Parents = %v, want 2 parents", c.Parents)
	}
	if _, err := os.Stat(r.mergeHeadPath()); !os.IsNotExist(err) {
		t.Errorf("expected MERGE_HEAD removed after merge commit, stat err = %v", err)
	}
}

// Test 4: merging a branch already merged (HEAD already contains its tip)
// reports "already up to date" as an error rather than creating a commit.
func TestMerge_AlreadyUpToDate_Error(t *testing.T) {
	r, _ := setupRepoWithFile(t, "a.txt", "v1")
	if _, err := r.Commit("c1"); err != nil {
		t.Fatalf("Commit c1: %v", err)
	}
	branchFromHEAD(t, r, "feature")

	if _, err := r.Merge("feature"); err == nil {
		t.Fatal("merging an already-up-to-date branch should fail, got nil error")
	}
}
