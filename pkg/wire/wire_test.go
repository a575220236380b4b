package wire

import (
	"bytes"
	"testing"
)

// Test 1: WriteFrame + ReadFrame round-trip preserves ID and body.
func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("hello biogit")

	if err := WriteFrame(&buf, ListRefs, body); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.ID != ListRefs {
		t.Errorf("ID = %d, want %d", frame.ID, ListRefs)
	}
	if !bytes.Equal(frame.Body, body) {
		t.Errorf("Body = %q, want %q", frame.Body, body)
	}
}

// Test 2: an empty body round-trips to a zero-length (not nil) slice read.
func TestWriteReadFrame_EmptyBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, AckOK, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.ID != AckOK {
		t.Errorf("ID = %d, want %d", frame.ID, AckOK)
	}
	if len(frame.Body) != 0 {
		t.Errorf("Body = %q, want empty", frame.Body)
	}
}

// Test 3: two frames written back-to-back are each read back intact, which
// exercises that ReadFrame consumes exactly HeaderSize+len(body) bytes and
// leaves the reader positioned at the next frame.
func TestReadFrame_MultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, GetObject, []byte("first")); err != nil {
		t.Fatalf("WriteFrame 1: %v", err)
	}
	if err := WriteFrame(&buf, PutObject, []byte("second")); err != nil {
		t.Fatalf("WriteFrame 2: %v", err)
	}

	f1, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame 1: %v", err)
	}
	if f1.ID != GetObject || string(f1.Body) != "first" {
		t.Errorf("frame 1 = %d/%q, want %d/first", f1.ID, f1.Body, GetObject)
	}

	f2, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame 2: %v", err)
	}
	if f2.ID != PutObject || string(f2.Body) != "second" {
		t.Errorf("frame 2 = %d/%q, want %d/second", f2.ID, f2.Body, PutObject)
	}
}

// Test 4: ReadFrame rejects a body length claiming more than MaxBodySize.
func TestReadFrame_RejectsOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0x07, 0xD1, 0xFF, 0xFF, 0xFF, 0xFF} // id=2001, len=0xFFFFFFFF
	buf.Write(header)

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("ReadFrame should reject a body length over MaxBodySize, got nil error")
	}
}

// Test 5: ReadFrame on a truncated stream (header only, no body) errors.
func TestReadFrame_TruncatedBody_Error(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, ListRefs, []byte("full body")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	truncated := buf.Bytes()[:HeaderSize+3]

	if _, err := ReadFrame(bytes.NewReader(truncated)); err == nil {
		t.Fatal("ReadFrame should fail on a truncated body, got nil error")
	}
}

// Test 6: EncodeAuth + DecodeAuth round-trip.
func TestEncodeDecodeAuth_RoundTrip(t *testing.T) {
	envelope := EncodeAuth("sometoken", []byte("payload-bytes"))

	token, payload, err := DecodeAuth(envelope)
	if err != nil {
		t.Fatalf("DecodeAuth: %v", err)
	}
	if token != "sometoken" {
		t.Errorf("token = %q, want %q", token, "sometoken")
	}
	if string(payload) != "payload-bytes" {
		t.Errorf("payload = %q, want %q", payload, "payload-bytes")
	}
}

// Test 7: DecodeAuth on a body with no NUL separator errors.
func TestDecodeAuth_MissingSeparator_Error(t *testing.T) {
	if _, _, err := DecodeAuth([]byte("no-separator-here")); err == nil {
		t.Fatal("DecodeAuth should fail without a NUL separator, got nil error")
	}
}

// Test 8: EncodeAuth with an empty payload still yields a separator, so a
// zero-length payload is distinguishable from a missing one.
func TestEncodeAuth_EmptyPayload(t *testing.T) {
	envelope := EncodeAuth("tok", nil)
	token, payload, err := DecodeAuth(envelope)
	if err != nil {
		t.Fatalf("DecodeAuth: %v", err)
	}
	if token != "tok" {
		t.Errorf("token = %q, want %q", token, "tok")
	}
	if len(payload) != 0 {
		t.Errorf("payload = %q, want empty", payload)
	}
}

// Test 9: NulFields / JoinNulFields round-trip for a multi-field body.
func TestJoinNulFields_NulFields_RoundTrip(t *testing.T) {
	body := JoinNulFields("alice", "hunter2", "extra")

	fields, err := NulFields(body, 3)
	if err != nil {
		t.Fatalf("NulFields: %v", err)
	}
	want := []string{"alice", "hunter2", "extra"}
	for i, w := range want {
		if fields[i] != w {
			t.Errorf("fields[%d] = %q, want %q", i, fields[i], w)
		}
	}
}

// Test 10: NulFields tolerates the final field lacking a trailing NUL.
func TestNulFields_FinalFieldNoTrailingNul(t *testing.T) {
	body := []byte("alice\x00hunter2")

	fields, err := NulFields(body, 2)
	if err != nil {
		t.Fatalf("NulFields: %v", err)
	}
	if fields[0] != "alice" || fields[1] != "hunter2" {
		t.Errorf("fields = %v, want [alice hunter2]", fields)
	}
}

// Test 11: NulFields errors when the body has fewer NUL-separated fields
// than requested.
func TestNulFields_TooFewFields_Error(t *testing.T) {
	body := []byte("alice\x00")

	if _, err := NulFields(body, 3); err == nil {
		t.Fatal("NulFields should fail when the body has too few fields, got nil error")
	}
}
