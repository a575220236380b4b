package repo

import "testing"

// Test 1: FindMergeBase on a linear history returns the older commit.
func TestFindMergeBase_LinearHistory(t *testing.T) {
	r, _ := Init(t.TempDir())
	c1 := commitOn(t, r, "", "c1")
	c2 := commitOn(t, r, c1, "c2")

	base, err := r.FindMergeBase(c1, c2)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if base != c1 {
		t.Errorf("FindMergeBase(c1, c2) = %q, want %q", base, c1)
	}
}

// Test 2: FindMergeBase on diverging branches finds their common ancestor.
func TestFindMergeBase_DivergingBranches(t *testing.T) {
	r, _ := Init(t.TempDir())
	base := commitOn(t, r, "", "base")
	mainTip := commitOn(t, r, base, "main work")
	featureTip := commitOn(t, r, base, "feature work")

	got, err := r.FindMergeBase(mainTip, featureTip)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != base {
		t.Errorf("FindMergeBase = %q, want %q", got, base)
	}
}

// Test 3: FindMergeBase is symmetric.
func TestFindMergeBase_Symmetric(t *testing.T) {
	r, _ := Init(t.TempDir())
	base := commitOn(t, r, "", "base")
	a := commitOn(t, r, base, "a")
	b := commitOn(t, r, base, "b")

	ab, err := r.FindMergeBase(a, b)
	if err != nil {
		t.Fatalf("FindMergeBase(a, b): %v", err)
	}
	ba, err := r.FindMergeBase(b, a)
	if err != nil {
		t.Fatalf("FindMergeBase(b, a): %v", err)
	}
	if ab != ba {
		t.Errorf("FindMergeBase(a, b) = %q != FindMergeBase(b, a) = %q", ab, ba)
	}
}

// Test 4: FindMergeBase on the same commit returns it immediately.
func TestFindMergeBase_SameCommit(t *testing.T) {
	r, _ := Init(t.TempDir())
	c := commitOn(t, r, "", "c")

	got, err := r.FindMergeBase(c, c)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != c {
		t.Errorf("FindMergeBase(c, c) = %q, want %q", got, c)
	}
}
