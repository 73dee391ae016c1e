package session

import "errors"

var (
	// ErrInvalidToken is returned when a token is malformed, forged, or bound to another purpose.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	// Verify* still returns the decoded claims alongside this error.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidClaims is returned when asked to issue a token with unusable claims.
	ErrInvalidClaims = errors.New("invalid token claims")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
