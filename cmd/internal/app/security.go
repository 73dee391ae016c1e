package app

import (
	"errors"
	"fmt"
	"strings"

	"portal/cmd/internal/auth/session"
	"portal/cmd/security/token"
)

// ErrSecurityPolicy is returned when the runtime would start with weaker guarantees than required.
var ErrSecurityPolicy = errors.New("security policy")

// ValidateSecurityConfig enforces portal's security policy at startup.
// It fails fast rather than falling back to weaker settings.
func ValidateSecurityConfig(cfg Config, sc session.Config) error {
	if sc.Format == session.FormatJWT && sc.SigningMethod == session.MethodHS256 {
		if len(sc.Secret) < token.MinSecretBytes {
			return fmt.Errorf("%w: %s must be at least %d bytes", ErrSecurityPolicy, token.SecretEnvKey, token.MinSecretBytes)
		}
	}

	if sc.AccessTokenTTL >= sc.RefreshTokenTTL {
		return fmt.Errorf("%w: access TTL must be shorter than refresh TTL", ErrSecurityPolicy)
	}

	// SameSite=None cookies are rejected by browsers unless Secure.
	if strings.EqualFold(strings.TrimSpace(cfg.CookieSameSite), "none") && !cfg.CookieSecure {
		return fmt.Errorf("%w: COOKIE_SAMESITE=none requires COOKIE_SECURE=true", ErrSecurityPolicy)
	}

	if cfg.CORSAllowCredentials {
		for _, o := range cfg.CORSAllowedOrigins {
			if strings.TrimSpace(o) == "*" {
				return fmt.Errorf("%w: credentialed CORS cannot allow every origin", ErrSecurityPolicy)
			}
		}
	}
	return nil
}

// keyFingerprint identifies the configured signing key without revealing it.
func keyFingerprint(sc session.Config) string {
	return session.KeyFingerprint(sc)
}
