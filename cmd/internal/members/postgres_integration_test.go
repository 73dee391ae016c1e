package members

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"testing"
	"time"

	"portal/cmd/internal/auth/guard"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/dbschema"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDirectory_PutAndGet(t *testing.T) {
	pool := mustOpenTestPool(t)
	t.Cleanup(pool.Close)
	schema := mustCreateTestSchema(t, pool)

	d, err := NewPostgresDirectory(pool, WithSchema(schema))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, d.Put(ctx, guard.Member{UID: "u1", SiteID: "s1", Role: session.RoleMember, DisplayName: "Una"}))
	require.NoError(t, d.Put(ctx, guard.Member{UID: "u1", SiteID: "s1", Role: session.RoleAdmin, DisplayName: "Una"}))

	m, err := d.GetMember(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, m.Role)
	assert.Equal(t, "s1", m.SiteID)

	_, err = d.GetMember(ctx, "u1", "s2")
	assert.ErrorIs(t, err, guard.ErrMemberNotFound)
}

func TestPostgresDirectory_UnknownRoleFailsClosed(t *testing.T) {
	pool := mustOpenTestPool(t)
	t.Cleanup(pool.Close)
	schema := mustCreateTestSchema(t, pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, `INSERT INTO `+dbschema.Table(schema, "site_members")+`
		(id, subject_id, site_id, role, display_name) VALUES ('m9', 'u9', 's1', 'owner', '')`)
	require.NoError(t, err)

	d, err := NewPostgresDirectory(pool, WithSchema(schema))
	require.NoError(t, err)

	_, err = d.GetMember(ctx, "u9", "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, guard.ErrMemberNotFound)
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("PORTAL_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: PORTAL_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	require.NoError(t, err)
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("ping postgres: %v", err)
	}
	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	b := make([]byte, 6)
	_, _ = rand.Read(b)
	schema := "portal_it_" + hex.EncodeToString(b)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()+`;
CREATE TABLE `+dbschema.Table(schema, "site_members")+` (
	id text PRIMARY KEY,
	subject_id text NOT NULL,
	site_id text NOT NULL,
	role text NOT NULL,
	display_name text NOT NULL DEFAULT '',
	UNIQUE (subject_id, site_id)
);`)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})
	return schema
}
