package diff

import (
	"fmt"
	"strings"

	"github.com/biogit/biogit/pkg/diff3"
)

// ContextLines is the number of unchanged lines shown around each hunk,
// matching the spec's unified-diff convention.
const ContextLines = 3

// positioned pairs a diff op with the 1-based old/new line numbers it
// occupies, so hunk boundaries and headers can be computed without
// re-walking the op list.
type positioned struct {
	op      diff3.DiffOp
	oldLine int
	newLine int
}

func position(ops []diff3.DiffOp) []positioned {
	out := make([]positioned, len(ops))
	oldLine, newLine := 1, 1
	for i, op := range ops {
		out[i] = positioned{op: op, oldLine: oldLine, newLine: newLine}
		switch op.Type {
		case diff3.Equal:
			oldLine++
			newLine++
		case diff3.Delete:
			oldLine++
		case diff3.Insert:
			newLine++
		}
	}
	return out
}

// FormatUnified renders fd as unified-diff text: hunk headers
// "@@ -old_s,old_l +new_s,new_l @@", line prefixes ' '/'-'/'+', and up to
// ContextLines lines of context around each run of changes. Returns "" if
// fd has no changes.
func FormatUnified(fd *FileDiff) string {
	if !hasChange(fd.Ops) {
		return ""
	}
	ps := position(fd.Ops)

	var out strings.Builder
	fmt.Fprintf(&out, "--- a/%s\n", fd.Path)
	fmt.Fprintf(&out, "+++ b/%s\n", fd.Path)

	for _, h := range buildHunks(ps) {
		h.write(&out)
	}
	return out.String()
}

func hasChange(ops []diff3.DiffOp) bool {
	for _, op := range ops {
		if op.Type != diff3.Equal {
			return true
		}
	}
	return false
}

// hunk is one contiguous unified-diff hunk: a run of changes plus up to
// ContextLines lines of unchanged context on each side.
type hunk struct {
	lines []positioned
}

// buildHunks clusters the changed (non-Equal) positions in ps: two changed
// regions separated by more than 2*ContextLines unchanged lines land in
// separate hunks (the gap is wide enough to fit ContextLines of trailing
// context for the first and ContextLines of leading context for the
// second); otherwise the unchanged run between them is kept in full as
// shared context. Each hunk is then expanded by up to ContextLines
// unchanged lines on either side.
func buildHunks(ps []positioned) []hunk {
	var changed []int
	for i, p := range ps {
		if p.op.Type != diff3.Equal {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	var clusters [][2]int
	lo, hi := changed[0], changed[0]
	for _, idx := range changed[1:] {
		if idx-hi-1 > 2*ContextLines {
			clusters = append(clusters, [2]int{lo, hi})
			lo = idx
		}
		hi = idx
	}
	clusters = append(clusters, [2]int{lo, hi})

	hunks := make([]hunk, 0, len(clusters))
	for _, c := range clusters {
		start := c[0] - ContextLines
		if start < 0 {
			start = 0
		}
		end := c[1] + ContextLines
		if end > len(ps)-1 {
			end = len(ps) - 1
		}
		hunks = append(hunks, hunk{lines: ps[start : end+1]})
	}
	return hunks
}

func (h hunk) write(out *strings.Builder) {
	oldStart, oldLen, newStart, newLen := h.ranges()
	fmt.Fprintf(out, "@@ -%s +%s @@\n", rangeStr(oldStart, oldLen), rangeStr(newStart, newLen))
	for _, p := range h.lines {
		switch p.op.Type {
		case diff3.Equal:
			fmt.Fprintf(out, " %s\n", p.op.Line)
		case diff3.Delete:
			fmt.Fprintf(out, "-%s\n", p.op.Line)
		case diff3.Insert:
			fmt.Fprintf(out, "+%s\n", p.op.Line)
		}
	}
}

// ranges computes the hunk's old/new starting line and line count. An
// empty side (pure addition into an empty file, or pure deletion leaving an
// empty file) reports "0,0", per the spec's empty-side convention.
func (h hunk) ranges() (oldStart, oldLen, newStart, newLen int) {
	for _, p := range h.lines {
		switch p.op.Type {
		case diff3.Equal:
			oldLen++
			newLen++
			if oldStart == 0 {
				oldStart = p.oldLine
			}
			if newStart == 0 {
				newStart = p.newLine
			}
		case diff3.Delete:
			oldLen++
			if oldStart == 0 {
				oldStart = p.oldLine
			}
		case diff3.Insert:
			newLen++
			if newStart == 0 {
				newStart = p.newLine
			}
		}
	}
	return
}

func rangeStr(start, length int) string {
	if length == 0 {
		return "0,0"
	}
	if length == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, length)
}
