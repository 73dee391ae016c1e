package revocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portal/cmd/internal/dbschema"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps revocation records in <schema>.subject_revocations.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "portal").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := dbschema.Normalize(schema)
		if err != nil {
			return err
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: dbschema.Default}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("revocation: nil pool")
	}
	return st, nil
}

// Revoke upserts the record; GREATEST keeps the latest timestamp without a transaction.
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, subjectID string) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return ErrInvalidSubject
	}
	if now.IsZero() {
		now = time.Now()
	}
	at := time.UnixMilli(now.UnixMilli()).UTC()

	table := dbschema.Table(s.schema, "subject_revocations")
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+table+` (subject_id, revoked_at)
		VALUES ($1, $2)
		ON CONFLICT (subject_id) DO UPDATE
		SET revoked_at = GREATEST(`+table+`.revoked_at, EXCLUDED.revoked_at)
	`, subjectID, at)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether tokens issued at issuedAt are revoked for subjectID.
func (s *PostgresStore) IsRevoked(ctx context.Context, subjectID string, issuedAt time.Time) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return false, ErrInvalidSubject
	}

	var at time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT revoked_at FROM `+dbschema.Table(s.schema, "subject_revocations")+` WHERE subject_id = $1`,
		subjectID,
	).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return revokedAt(at.UnixMilli(), issuedAt), nil
}

// Prune deletes records older than cutoff.
func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+dbschema.Table(s.schema, "subject_revocations")+` WHERE revoked_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
