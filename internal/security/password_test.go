package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected bcrypt hash, got %q", hash)
	}
	if IsLegacyHash(hash) {
		t.Error("bcrypt hash reported as legacy")
	}
	if !ComparePasswords(hash, "s3cret") {
		t.Error("expected password to match its hash")
	}
	if ComparePasswords(hash, "S3cret") {
		t.Error("expected different password to be rejected")
	}
}

func TestHashPassword_Salted(t *testing.T) {
	a, _ := HashPassword("same")
	b, _ := HashPassword("same")
	if a == b {
		t.Error("expected two hashes of the same password to differ")
	}
}

func TestComparePasswords_Legacy(t *testing.T) {
	sum := sha256.Sum256([]byte("admin123"))
	legacy := hex.EncodeToString(sum[:])

	if !IsLegacyHash(legacy) {
		t.Fatalf("expected %q to be detected as legacy", legacy)
	}
	if !ComparePasswords(legacy, "admin123") {
		t.Error("expected legacy digest to match")
	}
	if ComparePasswords(legacy, "admin1234") {
		t.Error("expected wrong password to be rejected")
	}
}

func TestComparePasswords_Garbage(t *testing.T) {
	if ComparePasswords("", "anything") {
		t.Error("empty hash must not match")
	}
	if ComparePasswords("not-a-hash", "not-a-hash") {
		t.Error("garbage hash must not match")
	}
}

func TestNewSessionToken(t *testing.T) {
	token, hash := NewSessionToken()
	if token == "" || hash == "" {
		t.Fatal("expected token and hash")
	}
	if HashToken(token) != hash {
		t.Error("hash does not correspond to token")
	}
	other, _ := NewSessionToken()
	if other == token {
		t.Error("expected distinct tokens")
	}
}
