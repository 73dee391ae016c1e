package session

import (
	"os"
	"strings"
	"time"

	"portal/cmd/security/token"
)

// Format selects the token wire encoding.
type Format string

const (
	// FormatJWT encodes tokens as signed JWTs.
	FormatJWT Format = "jwt"
	// FormatPaseto encodes tokens as PASETO v4.public.
	FormatPaseto Format = "paseto"
)

// SigningMethod selects the JWT signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 using keys derived from Config.Secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEdDSA signs with Ed25519 using Config.Ed25519PrivateKeyHex.
	MethodEdDSA SigningMethod = "eddsa"
)

// Config defines all runtime configuration for the token codec.
//
// Key material is loaded once at startup and never logged.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// ClockSkew bounds how far in the future an issued-at time may lie.
	ClockSkew time.Duration

	Format        Format
	SigningMethod SigningMethod

	// Secret is the HS256 master secret (>= 32 bytes).
	Secret []byte

	// Ed25519PrivateKeyHex is a hex-encoded Ed25519 seed (32 bytes) or private key (64 bytes).
	Ed25519PrivateKeyHex string

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key for PASETO v4.public.
	PasetoV4SecretKeyHex string
}

// DefaultConfig returns defaults suitable for development. Keys are not set.
func DefaultConfig() Config {
	return Config{
		Issuer:          "portal",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		ClockSkew:       30 * time.Second,
		Format:          FormatJWT,
		SigningMethod:   MethodHS256,
	}
}

// Validate checks invariants that do not depend on parsing key material.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return ErrConfig
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ClockSkew < 0 {
		return ErrConfig
	}
	// A refresh token that dies before the access token it re-mints is useless.
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads codec configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - PORTAL_AUTH_ISSUER
//   - PORTAL_AUTH_ACCESS_TTL
//   - PORTAL_AUTH_REFRESH_TTL
//   - PORTAL_AUTH_CLOCK_SKEW
//   - PORTAL_AUTH_TOKEN_FORMAT (jwt | paseto)
//   - PORTAL_AUTH_SIGNING_METHOD (hs256 | eddsa)
//
// Keys, depending on format/method:
//   - PORTAL_TOKEN_SECRET (jwt + hs256)
//   - PORTAL_ED25519_PRIVATE_KEY_HEX (jwt + eddsa)
//   - PORTAL_PASETO_V4_SECRET_KEY_HEX (paseto)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("PORTAL_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
		min time.Duration
	}{
		{"PORTAL_AUTH_ACCESS_TTL", &cfg.AccessTokenTTL, time.Second},
		{"PORTAL_AUTH_REFRESH_TTL", &cfg.RefreshTokenTTL, time.Second},
		{"PORTAL_AUTH_CLOCK_SKEW", &cfg.ClockSkew, 0},
	} {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < d.min {
			return Config{}, ErrConfig
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("PORTAL_AUTH_TOKEN_FORMAT")); v != "" {
		cfg.Format = Format(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("PORTAL_AUTH_SIGNING_METHOD")); v != "" {
		cfg.SigningMethod = SigningMethod(strings.ToLower(v))
	}

	switch {
	case cfg.Format == FormatPaseto:
		cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("PORTAL_PASETO_V4_SECRET_KEY_HEX"))
		if cfg.PasetoV4SecretKeyHex == "" {
			return Config{}, ErrConfig
		}
	case cfg.Format == FormatJWT && cfg.SigningMethod == MethodHS256:
		secret, err := token.SecretFromEnv(token.SecretEnvKey, token.MinSecretBytes)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.Secret = secret
	case cfg.Format == FormatJWT && cfg.SigningMethod == MethodEdDSA:
		cfg.Ed25519PrivateKeyHex = strings.TrimSpace(os.Getenv("PORTAL_ED25519_PRIVATE_KEY_HEX"))
		if cfg.Ed25519PrivateKeyHex == "" {
			return Config{}, ErrConfig
		}
	default:
		return Config{}, ErrConfig
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
