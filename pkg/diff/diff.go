// Package diff computes line-level differences between two file revisions
// and renders them as unified diff text, grounded on the spec's diff
// engine contract: Myers shortest-edit-script on lines, rendered with 3
// lines of context per hunk. The edit-script algorithm itself lives in
// pkg/diff3 (shared with the three-way merge), since both need the same
// Myers implementation.
package diff

import (
	"strings"

	"github.com/biogit/biogit/pkg/diff3"
)

// FileDiff is the line-level diff of one file between two revisions.
type FileDiff struct {
	Path string
	Ops  []diff3.DiffOp
}

// DiffBytes computes the line-level edit script between before and after,
// the content of path at two points in time.
func DiffBytes(path string, before, after []byte) *FileDiff {
	beforeLines := splitLines(before)
	afterLines := splitLines(after)
	return &FileDiff{
		Path: path,
		Ops:  diff3.MyersDiff(beforeLines, afterLines),
	}
}

// splitLines splits data into lines the same way diff3's internal splitter
// does: a trailing newline does not produce a spurious empty final element.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
