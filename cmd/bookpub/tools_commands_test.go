package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookpub/internal/contentid"
	"bookpub/internal/encryption"
)

func TestHashPrintsContentID(t *testing.T) {
	data := []byte("chapter one")
	path := writeFile(t, t.TempDir(), "book.txt", data)
	want, err := contentid.Compute(data)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	out, _, err := runCLI(t, nil, "hash", path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(out, want+"  ") {
		t.Fatalf("expected %q first, got %q", want, out)
	}
}

func TestDecryptRecoversEbook(t *testing.T) {
	plain := []byte("PK\x03\x04 secret epub")
	key, sealed, err := encryption.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	dir := t.TempDir()
	in := writeFile(t, dir, "book.bin", sealed)
	outPath := filepath.Join(dir, "book.epub")

	_, stderr, err := runCLI(t, nil, "decrypt", in, "--key", encryption.EncodeKey(key), "-o", outPath)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	requireContains(t, stderr, "Wrote")
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("decrypted %q, want %q", got, plain)
	}

	other, _, _ := encryption.Encrypt(plain)
	if _, _, err := runCLI(t, nil, "decrypt", in, "--key", encryption.EncodeKey(other)); err == nil {
		t.Fatal("expected wrong key to fail")
	}
}
