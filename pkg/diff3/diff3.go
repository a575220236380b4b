package diff3

import (
	"bytes"
	"strings"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk was merged cleanly.
	HunkConflict                 // Hunk has a conflict that requires manual resolution.
)

// Hunk represents a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged       []byte // Full merged content (with conflict markers if conflicts exist).
	HasConflicts bool   // True if any hunk is a conflict.
	Hunks        []Hunk // Individual hunks in document order.
}

// DiffLine is a single line in the output of LineDiff.
type DiffLine struct {
	Type    DiffType
	Content string
}

// LineDiff computes a line-level diff between byte slices a and b.
// The `biogit diff` command does not use it; it renders through pkg/diff.
func LineDiff(a, b []byte) []DiffLine {
	ops := MyersDiff(splitLines(string(a)), splitLines(string(b)))
	lines := make([]DiffLine, len(ops))
	for i, op := range ops {
		lines[i] = DiffLine{Type: op.Type, Content: op.Line}
	}
	return lines
}

// Merge performs a three-way merge of base, ours, and theirs: every base
// region that only one side touched is taken from that side, regions both
// sides left alone are taken from base, and regions both sides changed
// differently become a conflict with inline markers.
func Merge(base, ours, theirs []byte) Result {
	baseLines := splitLines(string(base))
	m := &merger{
		base:   baseLines,
		ours:   regionsAgainstBase(baseLines, splitLines(string(ours))),
		theirs: regionsAgainstBase(baseLines, splitLines(string(theirs))),
	}
	return m.run()
}

// splitLines splits s into lines. A trailing newline does not produce
// an extra empty element (matching standard text file conventions).
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// region is a contiguous span of base lines, plus the lines that replace
// that span on one side of a two-way diff against base.
type region struct {
	baseStart, baseEnd int
	lines              []string
	changed            bool
}

// regionsAgainstBase turns the Myers diff of base against side into a
// sequence of regions, each anchored to a contiguous range of base lines:
// single-line regions for unchanged lines, and accumulated runs of
// deletes/inserts for changed ones.
func regionsAgainstBase(base, side []string) []region {
	ops := MyersDiff(base, side)

	var regions []region
	baseIdx := 0

	for i := 0; i < len(ops); {
		if ops[i].Type == Equal {
			regions = append(regions, region{
				baseStart: baseIdx,
				baseEnd:   baseIdx + 1,
				lines:     []string{ops[i].Line},
			})
			baseIdx++
			i++
			continue
		}

		start := baseIdx
		var replacement []string
		for i < len(ops) && ops[i].Type != Equal {
			if ops[i].Type == Delete {
				baseIdx++
			} else {
				replacement = append(replacement, ops[i].Line)
			}
			i++
		}
		regions = append(regions, region{baseStart: start, baseEnd: baseIdx, lines: replacement, changed: true})
	}

	return regions
}

// merger walks two region sequences (ours, theirs), each derived from the
// same base, advancing in lockstep by base position to build the merged
// output and its parallel hunk list.
type merger struct {
	base         []string
	ours, theirs []region
	out          bytes.Buffer
	hunks        []Hunk
	conflicts    bool
}

func (m *merger) run() Result {
	oi, ti := 0, 0
	for oi < len(m.ours) || ti < len(m.theirs) {
		switch {
		case oi >= len(m.ours):
			m.takeWhole(&m.theirs[ti])
			ti++
		case ti >= len(m.theirs):
			m.takeWhole(&m.ours[oi])
			oi++
		case m.ours[oi].baseStart == m.theirs[ti].baseStart && m.ours[oi].baseEnd == m.theirs[ti].baseEnd:
			m.resolveAligned(&m.ours[oi], &m.theirs[ti])
			oi++
			ti++
		default:
			oi, ti = m.resolveMisaligned(oi, ti)
		}
	}
	return Result{Merged: m.out.Bytes(), HasConflicts: m.conflicts, Hunks: m.hunks}
}

// takeWhole handles a region present on only one side (the other side's
// region list has been exhausted).
func (m *merger) takeWhole(r *region) {
	m.writeLines(r.lines)
	m.hunks = append(m.hunks, m.cleanHunk(r, r))
}

// resolveAligned handles the common case: ours and theirs both produced a
// region over the exact same base span.
func (m *merger) resolveAligned(ours, theirs *region) {
	switch {
	case !ours.changed && !theirs.changed:
		m.writeLines(ours.lines)
		m.hunks = append(m.hunks, m.cleanHunk(ours, ours))
	case ours.changed && !theirs.changed:
		m.writeLines(ours.lines)
		m.hunks = append(m.hunks, m.cleanHunk(ours, ours))
	case !ours.changed && theirs.changed:
		m.writeLines(theirs.lines)
		m.hunks = append(m.hunks, m.cleanHunk(theirs, theirs))
	case linesEqual(ours.lines, theirs.lines):
		m.writeLines(ours.lines)
		m.hunks = append(m.hunks, m.cleanHunk(ours, ours))
	default:
		m.writeConflict(ours.lines, theirs.lines)
		m.hunks = append(m.hunks, Hunk{
			Type:   HunkConflict,
			Base:   m.baseSlice(ours.baseStart, ours.baseEnd),
			Ours:   joinLines(ours.lines),
			Theirs: joinLines(theirs.lines),
		})
	}
}

// resolveMisaligned handles the rarer case where one side's change spans a
// base range that doesn't line up with a single region on the other side
// (e.g. one side edits three base-aligned lines the other side left as
// three separate unchanged regions). It widens the window until both
// sides' contributing regions are fully collected, then merges the
// reassembled output for that window.
func (m *merger) resolveMisaligned(oi, ti int) (int, int) {
	regionEnd := max(m.ours[oi].baseEnd, m.theirs[ti].baseEnd)

	var oursSpan, theirsSpan []region
	for oi < len(m.ours) && m.ours[oi].baseStart < regionEnd {
		oursSpan = append(oursSpan, m.ours[oi])
		regionEnd = max(regionEnd, m.ours[oi].baseEnd)
		oi++
	}
	for ti < len(m.theirs) && m.theirs[ti].baseStart < regionEnd {
		theirsSpan = append(theirsSpan, m.theirs[ti])
		regionEnd = max(regionEnd, m.theirs[ti].baseEnd)
		ti++
	}

	regionStart := min(oursSpan[0].baseStart, theirsSpan[0].baseStart)
	oursOut := flattenLines(oursSpan)
	theirsOut := flattenLines(theirsSpan)
	oursTouched := anyChanged(oursSpan)
	theirsTouched := anyChanged(theirsSpan)

	baseRegion := m.baseSlice(regionStart, regionEnd)

	switch {
	case !oursTouched && !theirsTouched:
		m.writeLines(m.base[regionStart:regionEnd])
		m.hunks = append(m.hunks, Hunk{Type: HunkClean, Base: baseRegion, Merged: baseRegion})
	case oursTouched && !theirsTouched:
		m.writeLines(oursOut)
		m.hunks = append(m.hunks, Hunk{Type: HunkClean, Base: baseRegion, Ours: joinLines(oursOut), Merged: joinLines(oursOut)})
	case !oursTouched && theirsTouched:
		m.writeLines(theirsOut)
		m.hunks = append(m.hunks, Hunk{Type: HunkClean, Base: baseRegion, Theirs: joinLines(theirsOut), Merged: joinLines(theirsOut)})
	case linesEqual(oursOut, theirsOut):
		m.writeLines(oursOut)
		m.hunks = append(m.hunks, Hunk{Type: HunkClean, Base: baseRegion, Ours: joinLines(oursOut), Merged: joinLines(oursOut)})
	default:
		m.writeConflict(oursOut, theirsOut)
		m.hunks = append(m.hunks, Hunk{Type: HunkConflict, Base: baseRegion, Ours: joinLines(oursOut), Theirs: joinLines(theirsOut)})
	}

	return oi, ti
}

func (m *merger) writeLines(lines []string) {
	for _, l := range lines {
		m.out.WriteString(l)
		m.out.WriteByte('\n')
	}
}

func (m *merger) writeConflict(oursLines, theirsLines []string) {
	m.conflicts = true
	m.out.WriteString("<<<<<<< ours\n")
	m.writeLines(oursLines)
	m.out.WriteString("=======\n")
	m.writeLines(theirsLines)
	m.out.WriteString(">>>>>>> theirs\n")
}

// cleanHunk builds a Hunk for a region taken verbatim from side (side and
// base share the same baseStart/baseEnd here; base supplies the Base
// field, side supplies Merged and, if changed, Ours).
func (m *merger) cleanHunk(base, side *region) Hunk {
	h := Hunk{Type: HunkClean, Merged: joinLines(side.lines)}
	if base.baseStart < base.baseEnd {
		h.Base = m.baseSlice(base.baseStart, base.baseEnd)
	}
	if side.changed {
		h.Ours = joinLines(side.lines)
	}
	return h
}

func (m *merger) baseSlice(start, end int) []byte {
	if start >= end {
		return nil
	}
	return joinLines(m.base[start:end])
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func flattenLines(regions []region) []string {
	var lines []string
	for _, r := range regions {
		lines = append(lines, r.lines...)
	}
	return lines
}

func anyChanged(regions []region) bool {
	for _, r := range regions {
		if r.changed {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
