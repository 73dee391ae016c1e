package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// SecretEnvKey is the env var name for the token signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "PORTAL_TOKEN_SECRET"

	// MinSecretBytes is the minimum accepted secret size for HMAC-SHA256.
	MinSecretBytes = 32

	derivedKeyBytes = 32
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SecretFromEnv returns the trimmed secret stored in env var key, enforcing a minimum byte length.
// If the env var is missing/blank -> ErrSecretMissing.
// If too short -> ErrSecretTooShort.
func SecretFromEnv(key string, minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, ErrSecretMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrSecretTooShort
	}
	return b, nil
}

// DeriveKey expands secret into a 32-byte subkey bound to purpose (e.g. "access", "refresh").
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, ErrInvalidPurpose
	}

	r := hkdf.New(sha256.New, secret, nil, []byte("portal/session/"+purpose))
	out := make([]byte, derivedKeyBytes)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("token: derive %s key: %w", purpose, err)
	}
	return out, nil
}

// Fingerprint returns a short, non-reversible identifier for key material.
// It is safe to log and lets operators confirm two instances share a key.
func Fingerprint(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	return HashSHA256Hex(string(key))[:16]
}
