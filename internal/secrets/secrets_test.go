package secrets

import (
	"strings"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574" // "change this password to a secret"

func TestRoundTrip(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	sealed, err := box.Encrypt("Bearer s3cr3t-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(sealed, Prefix) {
		t.Fatalf("sealed value should carry prefix, got %q", sealed)
	}
	if !IsEncrypted(sealed) {
		t.Fatalf("IsEncrypted should report true for %q", sealed)
	}

	plain, err := box.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "Bearer s3cr3t-token" {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestDecryptGarbage(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	if _, err := box.Decrypt("enc:not-base64!!"); err == nil {
		t.Fatal("expected error for malformed ciphertext")
	}
}

func TestNoKey(t *testing.T) {
	box, err := NewBox("")
	if err != nil {
		t.Fatalf("NewBox with empty key should not fail: %v", err)
	}
	if _, err := box.Decrypt("enc:whatever"); err != ErrNoKey {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}

func TestBadKeyLength(t *testing.T) {
	if _, err := NewBox("abcd"); err == nil {
		t.Fatal("expected error for short key")
	}
}
