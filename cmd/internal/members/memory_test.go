package members

import (
	"context"
	"testing"

	"portal/cmd/internal/auth/guard"
	"portal/cmd/internal/auth/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory_GetMember(t *testing.T) {
	d, err := NewMemoryDirectory(
		guard.Member{UID: "u1", SiteID: "s1", Role: session.RoleAdmin, DisplayName: "Ada"},
		guard.Member{UID: "u1", SiteID: "s2", Role: session.RoleMember},
	)
	require.NoError(t, err)

	m, err := d.GetMember(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, m.Role)
	assert.Equal(t, "Ada", m.DisplayName)
	assert.NotEmpty(t, m.ID)

	m, err = d.GetMember(context.Background(), " u1 ", "s2")
	require.NoError(t, err)
	assert.Equal(t, session.RoleMember, m.Role)

	_, err = d.GetMember(context.Background(), "u1", "s3")
	assert.ErrorIs(t, err, guard.ErrMemberNotFound)
	_, err = d.GetMember(context.Background(), "u2", "s1")
	assert.ErrorIs(t, err, guard.ErrMemberNotFound)
}

func TestMemoryDirectory_PutReplaces(t *testing.T) {
	d, err := NewMemoryDirectory()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Put(ctx, guard.Member{ID: "m1", UID: "u1", SiteID: "s1", Role: session.RoleMember}))
	require.NoError(t, d.Put(ctx, guard.Member{ID: "m1", UID: "u1", SiteID: "s1", Role: session.RoleAdmin}))

	m, err := d.GetMember(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, m.Role)
}

func TestMemoryDirectory_RejectsInvalidMembers(t *testing.T) {
	_, err := NewMemoryDirectory(guard.Member{UID: "u1", SiteID: "s1"})
	assert.ErrorIs(t, err, ErrInvalidMember)

	_, err = NewMemoryDirectory(guard.Member{UID: "", SiteID: "s1", Role: session.RoleMember})
	assert.ErrorIs(t, err, ErrInvalidMember)
}

func TestParseSeed(t *testing.T) {
	got, err := ParseSeed("u1:s1:admin:Ada Lovelace, u2:s1:member ,")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "u1", got[0].UID)
	assert.Equal(t, session.RoleAdmin, got[0].Role)
	assert.Equal(t, "Ada Lovelace", got[0].DisplayName)
	assert.Equal(t, session.RoleMember, got[1].Role)
	assert.Empty(t, got[1].DisplayName)

	empty, err := ParseSeed("   ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	for _, bad := range []string{"u1:s1", "u1:s1:owner", ":s1:member"} {
		_, err := ParseSeed(bad)
		assert.ErrorIs(t, err, ErrInvalidMember, bad)
	}
}
