package token

import (
	"bytes"
	"errors"
	"testing"
)

func TestSecretFromEnv(t *testing.T) {
	const key = "PORTAL_TEST_TOKEN_SECRET"

	t.Setenv(key, "")
	if _, err := SecretFromEnv(key, MinSecretBytes); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}

	t.Setenv(key, "short")
	if _, err := SecretFromEnv(key, MinSecretBytes); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}

	t.Setenv(key, "  0123456789abcdef0123456789abcdef  ")
	got, err := SecretFromEnv(key, MinSecretBytes)
	if err != nil {
		t.Fatalf("SecretFromEnv: %v", err)
	}
	if string(got) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("expected trimmed secret, got %q", got)
	}
}

func TestDeriveKey_PurposeBound(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	access, err := DeriveKey(secret, "access")
	if err != nil {
		t.Fatalf("DeriveKey(access): %v", err)
	}
	again, err := DeriveKey(secret, "access")
	if err != nil {
		t.Fatalf("DeriveKey(access) again: %v", err)
	}
	refresh, err := DeriveKey(secret, "refresh")
	if err != nil {
		t.Fatalf("DeriveKey(refresh): %v", err)
	}

	if len(access) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(access))
	}
	if !bytes.Equal(access, again) {
		t.Fatalf("derivation must be deterministic")
	}
	if bytes.Equal(access, refresh) {
		t.Fatalf("access and refresh keys must differ")
	}
}

func TestDeriveKey_Rejects(t *testing.T) {
	if _, err := DeriveKey([]byte("short"), "access"); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
	if _, err := DeriveKey([]byte("0123456789abcdef0123456789abcdef"), " "); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint(nil) != "" {
		t.Fatalf("expected empty fingerprint for empty key")
	}
	fp := Fingerprint([]byte("key"))
	if len(fp) != 16 {
		t.Fatalf("expected 16-char fingerprint, got %q", fp)
	}
	if fp == Fingerprint([]byte("other")) {
		t.Fatalf("fingerprints of different keys must differ")
	}
}
