package diff

import (
	"strings"
	"testing"
)

func TestDiffBytes_NoChanges(t *testing.T) {
	fd := DiffBytes("a.txt", []byte("hello\nworld\n"), []byte("hello\nworld\n"))
	if FormatUnified(fd) != "" {
		t.Errorf("expected empty diff for identical content, got %q", FormatUnified(fd))
	}
}

func TestDiffBytes_AppendedLine(t *testing.T) {
	fd := DiffBytes("a.txt", []byte("one\ntwo\n"), []byte("one\ntwo\nthree\n"))
	out := FormatUnified(fd)
	if !strings.Contains(out, "--- a/a.txt") || !strings.Contains(out, "+++ b/a.txt") {
		t.Fatalf("missing file headers:\n%s", out)
	}
	if !strings.Contains(out, "+three") {
		t.Errorf("expected +three in output:\n%s", out)
	}
	if strings.Contains(out, "-one") || strings.Contains(out, "-two") {
		t.Errorf("unexpected deletions in pure-append diff:\n%s", out)
	}
}

func TestDiffBytes_SingleLineModified(t *testing.T) {
	fd := DiffBytes("f", []byte("x\ny-ours\n"), []byte("x\ny-theirs\n"))
	out := FormatUnified(fd)
	if !strings.Contains(out, "-y-ours") || !strings.Contains(out, "+y-theirs") {
		t.Fatalf("expected both sides of the modified line, got:\n%s", out)
	}
	if !strings.Contains(out, " x") {
		t.Errorf("expected unchanged context line 'x', got:\n%s", out)
	}
}

func TestDiffBytes_EmptyOldFile(t *testing.T) {
	fd := DiffBytes("new.txt", nil, []byte("a\nb\n"))
	out := FormatUnified(fd)
	if !strings.Contains(out, "@@ -0,0 +1,2 @@") {
		t.Errorf("expected 0,0 old range for pure addition, got:\n%s", out)
	}
}

func TestDiffBytes_EmptyNewFile(t *testing.T) {
	fd := DiffBytes("gone.txt", []byte("a\nb\n"), nil)
	out := FormatUnified(fd)
	if !strings.Contains(out, "+0,0 @@") {
		t.Errorf("expected 0,0 new range for pure deletion, got:\n%s", out)
	}
}

func TestDiffBytes_HunkSplitting(t *testing.T) {
	var beforeLines, afterLines []string
	for i := 0; i < 40; i++ {
		beforeLines = append(beforeLines, "line")
		afterLines = append(afterLines, "line")
	}
	beforeLines[0] = "changed-0"
	afterLines[0] = "changed-0-new"
	beforeLines[39] = "changed-39"
	afterLines[39] = "changed-39-new"

	before := []byte(strings.Join(beforeLines, "\n") + "\n")
	after := []byte(strings.Join(afterLines, "\n") + "\n")

	fd := DiffBytes("spread.txt", before, after)
	out := FormatUnified(fd)
	hunkCount := strings.Count(out, "@@ -")
	if hunkCount != 2 {
		t.Errorf("expected 2 separate hunks for widely-spaced changes, got %d:\n%s", hunkCount, out)
	}
}
