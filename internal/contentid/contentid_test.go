package contentid_test

import (
	"bytes"
	"strings"
	"testing"

	"bookpub/internal/contentid"
)

func TestComputeMatchesIPFSOnlyHash(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"hello world", []byte("hello world\n"), "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"},
		{"empty", []byte{}, "QmbFMke1KXqnYyBBWxB74N4c5SBnJMVAiMNRcGu6x1AwQH"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := contentid.Compute(tc.data)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Compute = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestComputeIsDeterministicAcrossChunks(t *testing.T) {
	data := bytes.Repeat([]byte("book-page "), 100_000) // ~1 MB, several chunks
	first, err := contentid.Compute(data)
	if err != nil {
		t.Fatal(err)
	}
	second, err := contentid.Compute(append([]byte(nil), data...))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("expected identical ids, got %s and %s", first, second)
	}
	if !strings.HasPrefix(first, "Qm") {
		t.Fatalf("expected CIDv0, got %s", first)
	}

	data[0] = 'B'
	changed, err := contentid.Compute(data)
	if err != nil {
		t.Fatal(err)
	}
	if changed == first {
		t.Fatal("a single byte change must change the id")
	}
}

func TestValid(t *testing.T) {
	if !contentid.Valid("QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o") {
		t.Fatal("expected valid CID")
	}
	for _, bad := range []string{"", "not-a-cid", "0x1234"} {
		if contentid.Valid(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}
