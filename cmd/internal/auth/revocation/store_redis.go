package revocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "portal:revoked:"

// revokeScript stores max(current, ARGV[1]) and refreshes the key TTL.
// Running it server-side makes the compare-and-set atomic across instances.
const revokeScript = `
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local ts = tonumber(ARGV[1])
if ts > cur then
  redis.call("SET", KEYS[1], ARGV[1])
else
  ts = cur
end
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return ts
`

var revokeLua = redis.NewScript(revokeScript)

// RedisStore shares revocation records between instances through Redis.
// Keys expire after the record TTL, which must be at least the refresh token TTL.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the key prefix (default "portal:revoked:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.prefix = p
		}
	}
}

// WithRecordTTL sets how long a record survives after its latest revoke.
// Zero keeps records forever.
func WithRecordTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore constructs a RedisStore over rdb.
func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("revocation: nil redis client")
	}
	s := &RedisStore{rdb: rdb, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *RedisStore) key(subjectID string) string {
	return s.prefix + subjectID
}

// Revoke records the revocation atomically, keeping the latest timestamp.
func (s *RedisStore) Revoke(ctx context.Context, now time.Time, subjectID string) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return ErrInvalidSubject
	}
	if now.IsZero() {
		now = time.Now()
	}

	err := revokeLua.Run(ctx, s.rdb, []string{s.key(subjectID)}, now.UnixMilli(), s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether tokens issued at issuedAt are revoked for subjectID.
func (s *RedisStore) IsRevoked(ctx context.Context, subjectID string, issuedAt time.Time) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return false, ErrInvalidSubject
	}

	ms, err := s.rdb.Get(ctx, s.key(subjectID)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return revokedAt(ms, issuedAt), nil
}

// Ping checks connectivity for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
