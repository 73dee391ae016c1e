package session

import (
	"strings"
	"time"

	"portal/cmd/internal/ids"
)

// AccessClaims is the identity envelope carried by an access token.
type AccessClaims struct {
	TokenID   string
	SubjectID string
	Roles     []Role
	SiteID    string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshClaims is carried by a refresh token. Roles and SiteID are the
// snapshot used to mint the next access token.
type RefreshClaims struct {
	TokenID   string
	SubjectID string
	Roles     []Role
	SiteID    string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type purpose string

const (
	purposeAccess  purpose = "access"
	purposeRefresh purpose = "refresh"
)

// claimSet is the format-independent payload shared by both codecs.
type claimSet struct {
	ID        string
	Purpose   purpose
	Subject   string
	Roles     []Role
	SiteID    string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// newClaimSet canonicalizes times to the precision both wire formats preserve:
// issuedAt to the millisecond, expiresAt to the second.
func newClaimSet(p purpose, issuer, subjectID string, roles []Role, siteID string, now time.Time, ttl time.Duration) (claimSet, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" || ttl <= 0 {
		return claimSet{}, ErrInvalidClaims
	}
	if now.IsZero() {
		now = time.Now()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return claimSet{}, err
	}
	return claimSet{
		ID:        id,
		Purpose:   p,
		Subject:   subjectID,
		Roles:     NormalizeRoles(roles),
		SiteID:    strings.TrimSpace(siteID),
		Issuer:    issuer,
		IssuedAt:  time.UnixMilli(now.UnixMilli()).UTC(),
		ExpiresAt: time.Unix(now.Add(ttl).Unix(), 0).UTC(),
	}, nil
}

// checkTimes runs after the signature has been verified.
func (c claimSet) checkTimes(now time.Time, skew time.Duration) error {
	if c.IssuedAt.After(now.Add(skew)) {
		return ErrInvalidToken
	}
	if !now.Before(c.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

func (c claimSet) access() AccessClaims {
	return AccessClaims{
		TokenID:   c.ID,
		SubjectID: c.Subject,
		Roles:     c.Roles,
		SiteID:    c.SiteID,
		Issuer:    c.Issuer,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	}
}

func (c claimSet) refresh() RefreshClaims {
	return RefreshClaims{
		TokenID:   c.ID,
		SubjectID: c.Subject,
		Roles:     c.Roles,
		SiteID:    c.SiteID,
		Issuer:    c.Issuer,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	}
}
