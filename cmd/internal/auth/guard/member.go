package guard

import (
	"context"

	"portal/cmd/internal/auth/session"
)

// Member is a subject's membership of one site.
type Member struct {
	ID          string       `json:"id"`
	UID         string       `json:"uid"`
	SiteID      string       `json:"siteId"`
	Role        session.Role `json:"role"`
	DisplayName string       `json:"displayName"`
}

// HasRole reports whether m satisfies want. Admins satisfy every role.
func (m Member) HasRole(want session.Role) bool {
	switch m.Role {
	case session.RoleAdmin:
		return want.Valid()
	case session.RoleMember:
		return want == session.RoleMember
	default:
		return false
	}
}

// MemberLookup resolves members. It must return an error wrapping
// ErrMemberNotFound when the subject has no membership of siteID.
type MemberLookup interface {
	GetMember(ctx context.Context, subjectID, siteID string) (Member, error)
}

// MemberLookupFunc adapts a function to MemberLookup.
type MemberLookupFunc func(ctx context.Context, subjectID, siteID string) (Member, error)

// GetMember calls f.
func (f MemberLookupFunc) GetMember(ctx context.Context, subjectID, siteID string) (Member, error) {
	return f(ctx, subjectID, siteID)
}

// GuardContext is built per request by MemberGuard and passed to the next handler.
type GuardContext struct {
	User   session.AccessClaims
	Member Member
}
