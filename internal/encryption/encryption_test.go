package encryption_test

import (
	"bytes"
	"errors"
	"testing"

	"bookpub/internal/encryption"
)

func TestRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 15, 4096, 1 << 20} {
		data := bytes.Repeat([]byte{0xab}, size)
		key, combined, err := encryption.Encrypt(data)
		if err != nil {
			t.Fatalf("Encrypt(%d): %v", size, err)
		}
		if len(key) != encryption.KeySize {
			t.Fatalf("key length %d", len(key))
		}
		if len(combined) < encryption.NonceSize+size {
			t.Fatalf("combined buffer too short: %d", len(combined))
		}
		got, err := encryption.Decrypt(combined, key)
		if err != nil {
			t.Fatalf("Decrypt(%d): %v", size, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("round trip mismatch for size %d", size)
		}
	}
}

func TestEncryptUsesFreshKeyAndNonce(t *testing.T) {
	data := []byte("same manuscript")
	k1, c1, err := encryption.Encrypt(data)
	if err != nil {
		t.Fatal(err)
	}
	k2, c2, err := encryption.Encrypt(data)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(k1, k2) || bytes.Equal(c1, c2) {
		t.Fatal("expected distinct keys and ciphertexts")
	}
}

func TestDecryptShortBuffer(t *testing.T) {
	key := make([]byte, encryption.KeySize)
	_, err := encryption.Decrypt(make([]byte, encryption.NonceSize-1), key)
	if !errors.Is(err, encryption.ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	key, combined, err := encryption.Encrypt([]byte("chapter one"))
	if err != nil {
		t.Fatal(err)
	}
	combined[len(combined)-1] ^= 0xff
	if _, err := encryption.Decrypt(combined, key); !errors.Is(err, encryption.ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestDecryptWrongKeySize(t *testing.T) {
	if _, err := encryption.Decrypt(make([]byte, 64), []byte("short")); !errors.Is(err, encryption.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestKeyEncoding(t *testing.T) {
	key, _, err := encryption.Encrypt(nil)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := encryption.DecodeKey(encryption.EncodeKey(key))
	if err != nil || !bytes.Equal(decoded, key) {
		t.Fatalf("DecodeKey round trip failed: %v", err)
	}
	if _, err := encryption.DecodeKey("AAAA"); !errors.Is(err, encryption.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for short key, got %v", err)
	}
	if encryption.EncodeKey(nil) != "" {
		t.Fatal("empty key should encode to empty string")
	}
}
