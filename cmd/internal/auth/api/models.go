package authapi

import (
	"time"

	"portal/cmd/internal/auth/guard"
	"portal/cmd/internal/auth/session"
)

type refreshResponse struct {
	AccessExpiresAt  time.Time  `json:"accessExpiresAt"`
	RefreshExpiresAt *time.Time `json:"refreshExpiresAt,omitempty"`
}

type meResponse struct {
	SubjectID string         `json:"subjectId"`
	Roles     []session.Role `json:"roles"`
	SiteID    string         `json:"siteId,omitempty"`
}

type devSessionRequest struct {
	SubjectID string         `json:"subjectId"`
	Roles     []session.Role `json:"roles"`
	SiteID    string         `json:"siteId"`
}

type sessionResponse struct {
	SubjectID        string    `json:"subjectId"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type memberResponse struct {
	Member    guard.Member `json:"member"`
	SubjectID string       `json:"subjectId"`
}

func toMeResponse(c session.AccessClaims) meResponse {
	roles := c.Roles
	if roles == nil {
		roles = []session.Role{}
	}
	return meResponse{SubjectID: c.SubjectID, Roles: roles, SiteID: c.SiteID}
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{
		SubjectID:        s.Access.SubjectID,
		AccessExpiresAt:  s.Access.ExpiresAt,
		RefreshExpiresAt: s.Refresh.ExpiresAt,
	}
}
