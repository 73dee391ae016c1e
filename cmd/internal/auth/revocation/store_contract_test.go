package revocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// runStoreContract exercises the behavior every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("no record is never revoked", func(t *testing.T) {
		s := newStore(t)
		revoked, err := s.IsRevoked(context.Background(), "nobody", time.Now())
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if revoked {
			t.Fatalf("expected subject without record to be valid")
		}
	})

	t.Run("tokens issued at or before revoke are revoked", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		revokeAt := time.Date(2026, 4, 1, 12, 0, 0, 500_000_000, time.UTC)

		if err := s.Revoke(ctx, revokeAt, "u1"); err != nil {
			t.Fatalf("Revoke: %v", err)
		}

		for _, issued := range []time.Time{revokeAt.Add(-24 * time.Hour), revokeAt.Add(-time.Millisecond), revokeAt} {
			revoked, err := s.IsRevoked(ctx, "u1", issued)
			if err != nil {
				t.Fatalf("IsRevoked: %v", err)
			}
			if !revoked {
				t.Fatalf("expected token issued at %v to be revoked", issued)
			}
		}

		revoked, err := s.IsRevoked(ctx, "u1", revokeAt.Add(time.Millisecond))
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if revoked {
			t.Fatalf("expected token issued after revoke to be valid")
		}
	})

	t.Run("revocation is subject scoped", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		if err := s.Revoke(ctx, now, "u1"); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		revoked, err := s.IsRevoked(ctx, "u2", now.Add(-time.Minute))
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if revoked {
			t.Fatalf("revoking u1 must not affect u2")
		}
	})

	t.Run("latest timestamp wins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		later := time.Date(2026, 4, 1, 12, 0, 10, 0, time.UTC)
		earlier := later.Add(-5 * time.Second)

		if err := s.Revoke(ctx, later, "u1"); err != nil {
			t.Fatalf("Revoke(later): %v", err)
		}
		if err := s.Revoke(ctx, earlier, "u1"); err != nil {
			t.Fatalf("Revoke(earlier): %v", err)
		}

		revoked, err := s.IsRevoked(ctx, "u1", later.Add(-time.Second))
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if !revoked {
			t.Fatalf("an older revoke must not roll the record back")
		}
	})

	t.Run("concurrent revokes keep the maximum", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

		const n = 32
		var wg sync.WaitGroup
		errs := make(chan error, 2*n)
		for i := 0; i < n; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				errs <- s.Revoke(ctx, base.Add(time.Duration(i)*time.Second), "u1")
			}(i)
			go func() {
				defer wg.Done()
				_, err := s.IsRevoked(ctx, "u1", base)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent op: %v", err)
			}
		}

		latest := base.Add((n - 1) * time.Second)
		revoked, err := s.IsRevoked(ctx, "u1", latest)
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if !revoked {
			t.Fatalf("expected record at the latest revoke time")
		}
		revoked, err = s.IsRevoked(ctx, "u1", latest.Add(time.Millisecond))
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if revoked {
			t.Fatalf("record moved past the latest revoke time")
		}
	})

	t.Run("empty subject is rejected", func(t *testing.T) {
		s := newStore(t)
		if err := s.Revoke(context.Background(), time.Now(), " "); !errors.Is(err, ErrInvalidSubject) {
			t.Fatalf("expected ErrInvalidSubject, got %v", err)
		}
		if _, err := s.IsRevoked(context.Background(), "", time.Now()); !errors.Is(err, ErrInvalidSubject) {
			t.Fatalf("expected ErrInvalidSubject, got %v", err)
		}
	})
}
