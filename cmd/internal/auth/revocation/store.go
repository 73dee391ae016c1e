// Package revocation records subject-scoped revocations of refresh tokens.
//
// A record maps a subject to the latest time it was revoked. Any refresh token
// issued at or before that time is invalid. Records only ever move forward in
// time; there is no per-token blacklist.
package revocation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps backend failures. Callers must fail closed.
	ErrStoreUnavailable = errors.New("revocation store unavailable")

	// ErrInvalidSubject is returned for empty subject ids.
	ErrInvalidSubject = errors.New("invalid subject")
)

// Store is the registry of revoked subjects. Implementations are safe for concurrent use.
type Store interface {
	// Revoke records subjectID as revoked as of now. A later timestamp always wins.
	Revoke(ctx context.Context, now time.Time, subjectID string) error

	// IsRevoked reports whether a record for subjectID exists with timestamp >= issuedAt.
	IsRevoked(ctx context.Context, subjectID string, issuedAt time.Time) (bool, error)
}

// Pruner is implemented by stores that can drop records older than cutoff.
// Only records whose every covered token has expired may be pruned, so cutoff
// must be at most now minus the refresh token TTL.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// revokedAt reports the comparison shared by every backend, at millisecond precision.
func revokedAt(recordMs int64, issuedAt time.Time) bool {
	return recordMs >= issuedAt.UnixMilli()
}
