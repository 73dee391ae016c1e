package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"portal/cmd/internal/auth/guard"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/dbschema"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory resolves members from <schema>.site_members.
//
// Ownership model:
// - PostgresDirectory does NOT own the pgx pool. The caller must close the pool.
type PostgresDirectory struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresDirectory behavior.
type PostgresOption func(*PostgresDirectory) error

// WithSchema sets the DB schema used by the directory (default: "portal").
func WithSchema(schema string) PostgresOption {
	return func(d *PostgresDirectory) error {
		v, err := dbschema.Normalize(schema)
		if err != nil {
			return err
		}
		d.schema = v
		return nil
	}
}

// NewPostgresDirectory constructs a directory backed by PostgreSQL.
func NewPostgresDirectory(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresDirectory, error) {
	d := &PostgresDirectory{pool: pool, schema: dbschema.Default}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.pool == nil {
		return nil, errors.New("members: nil pool")
	}
	return d, nil
}

// GetMember implements guard.MemberLookup. A stored role outside the closed
// Role set is an error rather than a downgrade.
func (d *PostgresDirectory) GetMember(ctx context.Context, subjectID, siteID string) (guard.Member, error) {
	subjectID = strings.TrimSpace(subjectID)
	siteID = strings.TrimSpace(siteID)
	if subjectID == "" || siteID == "" {
		return guard.Member{}, guard.ErrMemberNotFound
	}
	if err := ctx.Err(); err != nil {
		return guard.Member{}, err
	}

	var (
		m       guard.Member
		roleRaw string
	)
	err := d.pool.QueryRow(ctx,
		`SELECT id, subject_id, site_id, role, display_name
		   FROM `+dbschema.Table(d.schema, "site_members")+`
		  WHERE subject_id = $1 AND site_id = $2`,
		subjectID, siteID,
	).Scan(&m.ID, &m.UID, &m.SiteID, &roleRaw, &m.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return guard.Member{}, guard.ErrMemberNotFound
	}
	if err != nil {
		return guard.Member{}, fmt.Errorf("members: get member: %w", err)
	}

	role, err := session.ParseRole(roleRaw)
	if err != nil {
		return guard.Member{}, fmt.Errorf("members: member %s: %w", m.ID, err)
	}
	m.Role = role
	return m, nil
}

// Put upserts a membership keyed by (subject_id, site_id).
func (d *PostgresDirectory) Put(ctx context.Context, m guard.Member) error {
	m, err := validate(m)
	if err != nil {
		return err
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO `+dbschema.Table(d.schema, "site_members")+` (id, subject_id, site_id, role, display_name)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (subject_id, site_id)
		 DO UPDATE SET role = EXCLUDED.role, display_name = EXCLUDED.display_name`,
		m.ID, m.UID, m.SiteID, m.Role.String(), m.DisplayName,
	)
	if err != nil {
		return fmt.Errorf("members: put member: %w", err)
	}
	return nil
}
