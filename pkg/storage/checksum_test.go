package storage

import "testing"

func TestChecksumStableUnderTagReordering(t *testing.T) {
	a := Checksum("title", []string{"b", "a", "c"}, []byte(`{"x":1}`))
	b := Checksum("title", []string{"a", "b", "c"}, []byte(`{"x":1}`))
	if a != b {
		t.Fatalf("checksum should be independent of tag order: %s != %s", a, b)
	}
}

func TestChecksumChangesWithContent(t *testing.T) {
	base := Checksum("title", []string{"a"}, []byte(`{"x":1}`))
	if Checksum("other title", []string{"a"}, []byte(`{"x":1}`)) == base {
		t.Fatal("checksum should change when title changes")
	}
	if Checksum("title", []string{"a", "b"}, []byte(`{"x":1}`)) == base {
		t.Fatal("checksum should change when tags change")
	}
	if Checksum("title", []string{"a"}, []byte(`{"x":2}`)) == base {
		t.Fatal("checksum should change when context changes")
	}
}

func TestChecksumDeterministic(t *testing.T) {
	a := Checksum("t", []string{"x", "y"}, []byte(`{"a":true}`))
	b := Checksum("t", []string{"x", "y"}, []byte(`{"a":true}`))
	if a != b {
		t.Fatal("checksum must be deterministic for identical input")
	}
}
