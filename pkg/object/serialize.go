package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// sortKey returns the directory-aware sort key for a tree entry: the name,
// with a trailing "/" appended iff the entry is a subtree. This is the
// ordering invariant from the object model (deliberately not upstream Git's
// binary tree-entry ordering).
func sortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// SortEntries sorts tr.Entries in place per the directory-aware ordering
// invariant. Every mutator of a TreeObj must call this before the tree is
// considered canonical.
func SortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return sortKey(entries[i]) < sortKey(entries[j])
	})
}

// MarshalTree serializes a TreeObj. Entries are written in directory-aware
// sorted order as the concatenation of "<mode> <name>\0<40-hex-hash>".
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	SortEntries(sorted)

	var buf bytes.Buffer
	for _, e := range sorted {
		buf.WriteString(e.Mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.WriteString(string(e.Hash))
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	rest := data
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry (no space)")
		}
		mode := string(rest[:sp])
		if mode != ModeFile && mode != ModeDir {
			return nil, fmt.Errorf("unmarshal tree: unknown mode %q", mode)
		}
		rest = rest[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry (no NUL)")
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]

		if len(rest) < 40 {
			return nil, fmt.Errorf("unmarshal tree: truncated hash for %q", name)
		}
		hash := Hash(rest[:40])
		rest = rest[40:]

		tr.Entries = append(tr.Entries, TreeEntry{Name: name, Mode: mode, Hash: hash})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

func formatPerson(p Person) string {
	return fmt.Sprintf("%s <%s> %d %s", p.Name, p.Email, p.Timestamp, p.TZOffset)
}

func parsePerson(s string) (Person, error) {
	// "<name> <<email>> <unix-seconds> <tz>"
	lt := strings.LastIndex(s, " <")
	gt := strings.Index(s, ">")
	if lt < 0 || gt < 0 || gt < lt {
		return Person{}, fmt.Errorf("malformed person record %q", s)
	}
	name := s[:lt]
	email := s[lt+2 : gt]
	rest := strings.TrimSpace(s[gt+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Person{}, fmt.Errorf("malformed person record %q", s)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Person{}, fmt.Errorf("malformed person timestamp %q: %w", fields[0], err)
	}
	return Person{Name: name, Email: email, Timestamp: ts, TZOffset: fields[1]}, nil
}

// MarshalCommit serializes a CommitObj:
//
//	tree <hex>
//	parent <hex>     (zero or more)
//	author <name> <<email>> <unix-seconds> <tz>
//	committer <name> <<email>> <unix-seconds> <tz>
//
//	<message>
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", formatPerson(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatPerson(c.Committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			p, err := parsePerson(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w", err)
			}
			c.Author = p
		case "committer":
			p, err := parsePerson(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w", err)
			}
			c.Committer = p
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}
