package authapi

import (
	"strings"
)

// Config controls refresh protocol behavior.
type Config struct {
	// RotateRefresh issues a new refresh token on every successful refresh.
	// The presented token is not blacklisted; revocation stays subject-scoped.
	RotateRefresh bool

	// LoginURL is where logout redirects with 303 See Other.
	LoginURL string

	// TrustProxy takes the client IP for audit rows from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	MaxBodyBytes int64

	// DevSessions exposes POST /auth/dev/session. Never enable in production.
	DevSessions bool
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() Config {
	return Config{
		RotateRefresh: true,
		LoginURL:      "/login",
		MaxBodyBytes:  1 << 20, // 1 MiB
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.LoginURL) == "" {
		c.LoginURL = def.LoginURL
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	return c
}
