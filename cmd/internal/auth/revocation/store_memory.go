package revocation

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps revocation records in process memory.
// It is correct for a single instance; multi-instance deployments need Redis or Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]int64 // subject -> unix ms
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]int64)}
}

// Revoke records the revocation, keeping the latest timestamp.
func (s *MemoryStore) Revoke(ctx context.Context, now time.Time, subjectID string) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return ErrInvalidSubject
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now()
	}
	ms := now.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records[subjectID]; !ok || ms > cur {
		s.records[subjectID] = ms
	}
	return nil
}

// IsRevoked reports whether tokens issued at issuedAt are revoked for subjectID.
func (s *MemoryStore) IsRevoked(ctx context.Context, subjectID string, issuedAt time.Time) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return false, ErrInvalidSubject
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	ms, ok := s.records[subjectID]
	s.mu.RUnlock()

	return ok && revokedAt(ms, issuedAt), nil
}

// Prune drops records older than cutoff.
func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cut := cutoff.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for sub, ms := range s.records {
		if ms < cut {
			delete(s.records, sub)
			n++
		}
	}
	return n, nil
}

// Len returns the number of live records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
