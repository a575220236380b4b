package repo

import (
	"testing"

	"github.com/biogit/biogit/pkg/object"
)

// commitOn writes a fake commit whose first parent is parent (or no parent
// if parent is "").
func commitOn(t *testing.T, r *Repo, parent object.Hash, msg string) object.Hash {
	t.Helper()
	treeHash, err := r.Store.WriteTree(&object.TreeObj{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	c := &object.CommitObj{
		TreeHash: treeHash,
		Author:   object.Person{Name: "T", Email: "t@example.com", Timestamp: 1, TZOffset: "+0000"},
		Message:  msg,
	}
	c.Committer = c.Author
	if parent != "" {
		c.Parents = []object.Hash{parent}
	}
	h, err := r.Store.WriteCommit(c)
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	return h
}

// Test 1: UpdateRef creates a fresh ref, and ResolveRef reads it back.
func TestUpdateRef_CreatesRef(t *testing.T) {
	r, _ := Init(t.TempDir())
	h := commitOn(t, r, "", "first")

	result, err := r.UpdateRef("refs/heads/main", h, "", false)
	if err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	if result != RefUpdateSuccess {
		t.Errorf("result = %v, want SUCCESS", result)
	}

	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != h {
		t.Errorf("ResolveRef = %q, want %q", got, h)
	}
}

// Test 2: a fast-forward update (new commit's first-parent chain passes
// through the old value) succeeds without force.
func TestUpdateRef_FastForward_Succeeds(t *testing.T) {
	r, _ := Init(t.TempDir())
	c1 := commitOn(t, r, "", "first")
	c2 := commitOn(t, r, c1, "second")

	if _, err := r.UpdateRef("refs/heads/main", c1, "", false); err != nil {
		t.Fatalf("UpdateRef c1: %v", err)
	}

	result, err := r.UpdateRef("refs/heads/main", c2, c1, false)
	if err != nil {
		t.Fatalf("UpdateRef c2: %v", err)
	}
	if result != RefUpdateSuccess {
		t.Errorf("result = %v, want SUCCESS", result)
	}
}

// Test 3: a non-fast-forward update (new commit has no path back to the
// current value) is rejected unless force is set.
func TestUpdateRef_NonFastForward_RejectedWithoutForce(t *testing.T) {
	r, _ := Init(t.TempDir())
	c1 := commitOn(t, r, "", "first")
	unrelated := commitOn(t, r, "", "unrelated")

	if _, err := r.UpdateRef("refs/heads/main", c1, "", false); err != nil {
		t.Fatalf("UpdateRef c1: %v", err)
	}

	result, err := r.UpdateRef("refs/heads/main", unrelated, c1, false)
	if err == nil {
		t.Fatal("non-fast-forward update without force should fail, got nil error")
	}
	if result != RefUpdateNotFastForward {
		t.Errorf("result = %v, want NOT_FAST_FORWARD", result)
	}
}

// Test 4: the same non-fast-forward update succeeds with force=true.
func TestUpdateRef_NonFastForward_SucceedsWithForce(t *testing.T) {
	r, _ := Init(t.TempDir())
	c1 := commitOn(t, r, "", "first")
	unrelated := commitOn(t, r, "", "unrelated")

	if _, err := r.UpdateRef("refs/heads/main", c1, "", false); err != nil {
		t.Fatalf("UpdateRef c1: %v", err)
	}

	result, err := r.UpdateRef("refs/heads/main", unrelated, "", true)
	if err != nil {
		t.Fatalf("UpdateRef force: %v", err)
	}
	if result != RefUpdateSuccess {
		t.Errorf("result = %v, want SUCCESS", result)
	}
}

// Test 5: expectedOld mismatch is rejected even with an otherwise valid
// fast-forward target.
func TestUpdateRef_OldHashMismatch(t *testing.T) {
	r, _ := Init(t.TempDir())
	c1 := commitOn(t, r, "", "first")
	c2 := commitOn(t, r, c1, "second")
	wrongExpected := commitOn(t, r, "", "decoy")

	if _, err := r.UpdateRef("refs/heads/main", c1, "", false); err != nil {
		t.Fatalf("UpdateRef c1: %v", err)
	}

	result, err := r.UpdateRef("refs/heads/main", c2, wrongExpected, false)
	if err == nil {
		t.Fatal("UpdateRef with mismatched expectedOld should fail, got nil error")
	}
	if result != RefUpdateOldHashMismatch {
		t.Errorf("result = %v, want OLD_HASH_MISMATCH", result)
	}
}

// Test 6: UpdateRef rejects a newHash that is not a known object.
func TestUpdateRef_UnknownCommit_Error(t *testing.T) {
	r, _ := Init(t.TempDir())
	bogus := object.Hash("0000000000000000000000000000000000000000")

	result, err := r.UpdateRef("refs/heads/main", bogus, "", false)
	if err == nil {
		t.Fatal("UpdateRef with an unknown commit should fail, got nil error")
	}
	if result != RefUpdateNewCommitNotFound {
		t.Errorf("result = %v, want NEW_COMMIT_NOT_FOUND", result)
	}
}

// Test 6b: UpdateRef rejects a newHash that names a real object on disk,
// but not a commit (a blob hash here).
func TestUpdateRef_NewHashIsBlobNotCommit_Error(t *testing.T) {
	r, _ := Init(t.TempDir())
	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: []byte("not a commit")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	result, err := r.UpdateRef("refs/heads/main", blobHash, "", false)
	if err == nil {
		t.Fatal("UpdateRef with a blob hash as newHash should fail, got nil error")
	}
	if result != RefUpdateNewCommitNotFound {
		t.Errorf("result = %v, want NEW_COMMIT_NOT_FOUND", result)
	}
}

// Test 7: UpdateRef rejects a malformed ref name.
func TestUpdateRef_InvalidRefName_Error(t *testing.T) {
	r, _ := Init(t.TempDir())
	h := commitOn(t, r, "", "first")

	result, err := r.UpdateRef("not/a/ref", h, "", false)
	if err == nil {
		t.Fatal("UpdateRef with an invalid ref name should fail, got nil error")
	}
	if result != RefUpdateInvalidRefName {
		t.Errorf("result = %v, want INVALID_REF_NAME", result)
	}
}

// Test 8: CreateBranch then ListBranches shows it, sorted.
func TestCreateBranch_ListBranches(t *testing.T) {
	r, _ := Init(t.TempDir())
	h := commitOn(t, r, "", "first")

	if err := r.CreateBranch("feature", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.CreateBranch("alpha", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	branches, err := r.ListBranches()
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	want := []string{"alpha", "feature"}
	if len(branches) != len(want) {
		t.Fatalf("ListBranches = %v, want %v", branches, want)
	}
	for i, b := range want {
		if branches[i] != b {
			t.Errorf("branches[%d] = %q, want %q", i, branches[i], b)
		}
	}
}

// Test 9: CreateBranch on a name that already exists fails.
func TestCreateBranch_Duplicate_Error(t *testing.T) {
	r, _ := Init(t.TempDir())
	h := commitOn(t, r, "", "first")

	if err := r.CreateBranch("feature", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.CreateBranch("feature", h); err == nil {
		t.Fatal("CreateBranch on a duplicate name should fail, got nil error")
	}
}

// Test 10: DeleteBranch refuses to delete the currently checked-out branch.
func TestDeleteBranch_CurrentBranch_Error(t *testing.T) {
	r, _ := Init(t.TempDir())
	h := commitOn(t, r, "", "first")
	if _, err := r.UpdateRef("refs/heads/main", h, "", false); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	if err := r.DeleteBranch("main"); err == nil {
		t.Fatal("DeleteBranch on the current branch should fail, got nil error")
	}
}

// Test 11: DeleteBranch removes a non-current branch.
func TestDeleteBranch_NonCurrent_Succeeds(t *testing.T) {
	r, _ := Init(t.TempDir())
	h := commitOn(t, r, "", "first")
	if err := r.CreateBranch("feature", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	if err := r.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}

	branches, err := r.ListBranches()
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(branches) != 0 {
		t.Errorf("ListBranches after delete = %v, want empty", branches)
	}
}

// Test 12: CreateTag + ListTags + DeleteTag lifecycle.
func TestTagLifecycle(t *testing.T) {
	r, _ := Init(t.TempDir())
	h := commitOn(t, r, "", "first")

	if err := r.CreateTag("v1.0", h); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	tags, err := r.ListTags()
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "v1.0" {
		t.Fatalf("ListTags = %v, want [v1.0]", tags)
	}

	if err := r.DeleteTag("v1.0"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	tags, err = r.ListTags()
	if err != nil {
		t.Fatalf("ListTags after delete: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("ListTags after delete = %v, want empty", tags)
	}
}

// Test 13: CurrentBranch reflects a symbolic HEAD's branch name and is
// empty once HEAD is detached.
func TestCurrentBranch_SymbolicAndDetached(t *testing.T) {
	r, _ := Init(t.TempDir())

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("CurrentBranch = %q, want %q", branch, "main")
	}

	h := commitOn(t, r, "", "first")
	if err := r.SetHead(string(h), true); err != nil {
		t.Fatalf("SetHead: %v", err)
	}
	branch, err = r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch detached: %v", err)
	}
	if branch != "" {
		t.Errorf("CurrentBranch detached = %q, want empty", branch)
	}
}

// Test 14: WriteRemoteHead + ReadRemoteHead round-trip for both symbolic
// and detached forms.
func TestRemoteHeadCache_RoundTrip(t *testing.T) {
	r, _ := Init(t.TempDir())

	if err := r.WriteRemoteHead("origin", "ref: refs/heads/main"); err != nil {
		t.Fatalf("WriteRemoteHead: %v", err)
	}
	got, err := r.ReadRemoteHead("origin")
	if err != nil {
		t.Fatalf("ReadRemoteHead: %v", err)
	}
	if got != "ref: refs/heads/main" {
		t.Errorf("ReadRemoteHead = %q, want %q", got, "ref: refs/heads/main")
	}
}

// Test 15: GetAllLocalRefs lists HEAD first, then sorted branch/tag refs.
func TestGetAllLocalRefs_OrderedWithHEADFirst(t *testing.T) {
	r, _ := Init(t.TempDir())
	h := commitOn(t, r, "", "first")
	if _, err := r.UpdateRef("refs/heads/main", h, "", false); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	if err := r.CreateTag("v1", h); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	entries, err := r.GetAllLocalRefs()
	if err != nil {
		t.Fatalf("GetAllLocalRefs: %v", err)
	}
	if len(entries) == 0 || entries[0].Name != "HEAD" {
		t.Fatalf("entries[0] = %+v, want Name=HEAD first", entries)
	}
	if entries[0].Hash != "ref: refs/heads/main" {
		t.Errorf("HEAD entry hash = %q, want %q", entries[0].Hash, "ref: refs/heads/main")
	}
}
