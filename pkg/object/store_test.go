package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHashBytesDeterminism(t *testing.T) {
	data := []byte("hello world")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Errorf("HashBytes not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 40 {
		t.Errorf("Hash length: got %d, want 40", len(h1))
	}
}

func TestHashBytesDifferentInput(t *testing.T) {
	h1 := HashBytes([]byte("aaa"))
	h2 := HashBytes([]byte("bbb"))
	if h1 == h2 {
		t.Error("different inputs produced same hash")
	}
}

func TestHashObjectEnvelope(t *testing.T) {
	data := []byte("hello")
	h1 := HashObject(TypeBlob, data)
	h2 := HashBytes(data)
	if h1 == h2 {
		t.Error("HashObject should differ from HashBytes due to envelope")
	}

	h3 := HashObject(TypeBlob, data)
	if h1 != h3 {
		t.Error("HashObject not deterministic")
	}

	h4 := HashObject(TypeTree, data)
	if h1 == h4 {
		t.Error("different types should produce different hashes")
	}
}

func TestHashValid(t *testing.T) {
	if !Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa").Valid() {
		t.Error("expected 40-hex hash to be valid")
	}
	if Hash("short").Valid() {
		t.Error("expected short hash to be invalid")
	}
	if Hash("gggggggggggggggggggggggggggggggggggggggg").Valid() {
		t.Error("expected non-hex characters to be invalid")
	}
}

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestStoreWriteRead(t *testing.T) {
	s := tempStore(t)
	data := []byte("hello world")
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !h.Valid() {
		t.Fatalf("expected valid hash, got %q", h)
	}

	objType, got, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if objType != TypeBlob {
		t.Errorf("type: got %q, want %q", objType, TypeBlob)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("content: got %q, want %q", got, data)
	}
}

func TestStoreWriteIdempotent(t *testing.T) {
	s := tempStore(t)
	data := []byte("same content")
	h1, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	h2, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected idempotent hash, got %q then %q", h1, h2)
	}
}

func TestStoreReadNotFound(t *testing.T) {
	s := tempStore(t)
	_, _, err := s.Read(Hash("0000000000000000000000000000000000000a"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreReadCorruptObject(t *testing.T) {
	s := tempStore(t)
	h, err := s.Write(TypeBlob, []byte("original"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.WriteRaw(h, []byte("blob 7\x00tampered")); err != nil {
		t.Fatalf("WriteRaw no-op expected since object exists: %v", err)
	}
	// Overwrite directly to simulate on-disk corruption (WriteRaw is a no-op
	// once present, so bypass it to hit the path under test).
	if _, _, err := s.Read(h); err != nil {
		t.Fatalf("unexpected error reading untouched object: %v", err)
	}
	if err := os.WriteFile(s.objectPath(h), []byte("blob 8\x00tampered"), 0o644); err != nil {
		t.Fatalf("overwrite object file: %v", err)
	}
	if _, _, err := s.Read(h); err == nil {
		t.Fatal("expected an error reading an object whose content no longer matches its hash")
	}
}

// writeAmbiguousPair places two object files under objects/ab/ whose names
// both start with "cdef", so the prefix "abcdef" matches both.
func writeAmbiguousPair(t *testing.T, s *Store) {
	t.Helper()
	dir := filepath.Join(s.root, "objects", "ab")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, name := range []string{"cdef" + strings.Repeat("0", 34), "cdef" + strings.Repeat("1", 34)} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("blob 0\x00"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestStoreTypedBlobRoundTrip(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("typed content")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	got, err := s.ReadBlob(h)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(got.Data) != "typed content" {
		t.Errorf("content: got %q", got.Data)
	}
}

func TestStoreTypedReadWrongType(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("x")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if _, err := s.ReadTree(h); err == nil {
		t.Fatal("expected type mismatch error reading a blob as a tree")
	}
}

func TestStoreTypedTreeRoundTrip(t *testing.T) {
	s := tempStore(t)
	blobHash, err := s.WriteBlob(&Blob{Data: []byte("hello\n")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tr := &TreeObj{Entries: []TreeEntry{{Name: "a.txt", Mode: ModeFile, Hash: blobHash}}}
	h, err := s.WriteTree(tr)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	got, err := s.ReadTree(h)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].Hash != blobHash {
		t.Errorf("tree round-trip mismatch: %+v", got.Entries)
	}
}

func TestEmptyTreeHash(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteTree(&TreeObj{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	want := HashObject(TypeTree, nil)
	if h != want {
		t.Errorf("empty tree hash: got %s, want %s", h, want)
	}
}

func TestStoreResolvePrefixUnique(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("abc")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	got, err := s.ResolvePrefix(string(h[:8]))
	if err != nil {
		t.Fatalf("ResolvePrefix: %v", err)
	}
	if got != h {
		t.Errorf("ResolvePrefix: got %q, want %q", got, h)
	}
}

func TestStoreResolvePrefixTooShort(t *testing.T) {
	s := tempStore(t)
	if _, err := s.ResolvePrefix("abcd"); err == nil {
		t.Fatal("expected error for a prefix shorter than 6 hex chars")
	}
}

func TestStoreResolvePrefixNotFound(t *testing.T) {
	s := tempStore(t)
	_, err := s.ResolvePrefix("abcdef")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreResolvePrefixAmbiguous(t *testing.T) {
	s := tempStore(t)
	// Force a collision on the first 7 hex chars by writing two blobs and
	// retrying content until their hashes share a 7-char prefix would be
	// slow to construct; instead exercise the ambiguity path directly by
	// writing two objects into the same fan-out directory by hand.
	writeAmbiguousPair(t, s)
	_, err := s.ResolvePrefix("abcdef")
	var ambErr *AmbiguousPrefixError
	if !errors.As(err, &ambErr) {
		t.Fatalf("expected AmbiguousPrefixError, got %v", err)
	}
}

func TestStoreExistsAmbiguousIsNotFound(t *testing.T) {
	s := tempStore(t)
	if s.Exists("abcdef") {
		t.Error("expected nonexistent prefix to report false")
	}
	writeAmbiguousPair(t, s)
	if s.Exists("abcdef") {
		t.Error("expected ambiguous prefix to report false")
	}
}

func TestStoreWriteRawThenRead(t *testing.T) {
	s := tempStore(t)
	data := []byte("raw content")
	h := HashObject(TypeBlob, data)
	raw := append([]byte("blob 11\x00"), data...)
	if err := s.WriteRaw(h, raw); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if !s.Has(h) {
		t.Fatal("expected object to exist after WriteRaw")
	}
	gotRaw, err := s.ReadRaw(h)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if !bytes.Equal(gotRaw, raw) {
		t.Errorf("ReadRaw mismatch: got %q, want %q", gotRaw, raw)
	}
}
