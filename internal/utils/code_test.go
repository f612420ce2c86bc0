package utils

import (
	"strings"
	"testing"
)

func TestNewLoginSecret(t *testing.T) {
	s1, err := NewLoginSecret()
	if err != nil {
		t.Fatalf("NewLoginSecret() error = %v", err)
	}
	s2, _ := NewLoginSecret()

	if len(s1) != loginSecretLength {
		t.Errorf("len(secret) = %d, expected %d", len(s1), loginSecretLength)
	}
	if s1 == s2 {
		t.Error("two secrets should differ")
	}
	if strings.ContainsAny(s1, ".+/=") {
		t.Errorf("secret %q should be URL safe and dot free", s1)
	}
}

func TestHashCode_DifferentHashes(t *testing.T) {
	hash1, err := HashCode("secret")
	if err != nil {
		t.Fatalf("HashCode() error = %v", err)
	}
	hash2, _ := HashCode("secret")

	if hash1 == "secret" {
		t.Error("HashCode() should not return the plaintext")
	}
	if hash1 == hash2 {
		t.Error("same code should produce different hashes (due to salt)")
	}
}

func TestCheckCode(t *testing.T) {
	code := "Qm3x9_correct-secret"
	hash, _ := HashCode(code)

	tests := []struct {
		name     string
		code     string
		hash     string
		expected bool
	}{
		{"correct code", code, hash, true},
		{"wrong code", "Qm3x9_wrong-secret", hash, false},
		{"empty code", "", hash, false},
		{"case sensitive", strings.ToUpper(code), hash, false},
		{"invalid hash", code, "invalid_hash", false},
		{"empty hash", code, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckCode(tt.code, tt.hash); got != tt.expected {
				t.Errorf("CheckCode(%q) = %v, expected %v", tt.code, got, tt.expected)
			}
		})
	}
}
