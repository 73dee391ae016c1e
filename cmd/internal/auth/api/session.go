package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"portal/cmd/internal/auth/cookie"
	"portal/cmd/internal/auth/revocation"
	"portal/cmd/internal/auth/session"
)

// ErrRefreshInvalid is returned for every refresh failure. The wrapped
// cause tells missing, invalid, expired and revoked tokens apart for logs only.
var ErrRefreshInvalid = errors.New("refresh token invalid")

var (
	errRefreshMissing = errors.New("refresh cookie missing")
	errRefreshRevoked = errors.New("refresh token revoked")
)

// Session is a freshly minted token pair. Refresh is zero when the refresh
// token was not rotated.
type Session struct {
	AccessToken  string
	Access       session.AccessClaims
	RefreshToken string
	Refresh      session.RefreshClaims
}

// IssueSession mints a token pair for a subject authenticated elsewhere and
// sets both cookies.
func (h *Handler) IssueSession(w http.ResponseWriter, now time.Time, subjectID string, roles []session.Role, siteID string) (Session, error) {
	access, accessClaims, err := h.tokens.IssueAccessToken(subjectID, roles, siteID, now)
	if err != nil {
		return Session{}, err
	}
	refresh, refreshClaims, err := h.tokens.IssueRefreshToken(subjectID, roles, siteID, now)
	if err != nil {
		return Session{}, err
	}

	h.cookies.SetAuthCookies(w,
		cookie.Token{Value: access, ExpiresAt: accessClaims.ExpiresAt},
		cookie.Token{Value: refresh, ExpiresAt: refreshClaims.ExpiresAt},
	)
	return Session{
		AccessToken:  access,
		Access:       accessClaims,
		RefreshToken: refresh,
		Refresh:      refreshClaims,
	}, nil
}

// Refresh validates a refresh token and mints a new access token from its
// roles/site snapshot. Every failure wraps ErrRefreshInvalid; a store
// outage also wraps revocation.ErrStoreUnavailable.
func (h *Handler) Refresh(ctx context.Context, refreshToken string, now time.Time) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, fmt.Errorf("%w: %w", ErrRefreshInvalid, errRefreshMissing)
	}

	claims, err := h.tokens.VerifyRefreshToken(refreshToken, now)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrRefreshInvalid, err)
	}

	revoked, err := h.revocations.IsRevoked(ctx, claims.SubjectID, claims.IssuedAt)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrRefreshInvalid, err)
	}
	if revoked {
		return Session{}, fmt.Errorf("%w: %w", ErrRefreshInvalid, errRefreshRevoked)
	}

	access, accessClaims, err := h.tokens.IssueAccessToken(claims.SubjectID, claims.Roles, claims.SiteID, now)
	if err != nil {
		return Session{}, err
	}
	out := Session{AccessToken: access, Access: accessClaims}

	if h.cfg.RotateRefresh {
		refresh, refreshClaims, err := h.tokens.IssueRefreshToken(claims.SubjectID, claims.Roles, claims.SiteID, now)
		if err != nil {
			return Session{}, err
		}
		out.RefreshToken = refresh
		out.Refresh = refreshClaims
	}
	return out, nil
}

// refreshFailureReason maps a Refresh error to a low-cardinality label.
func refreshFailureReason(err error) string {
	switch {
	case errors.Is(err, errRefreshMissing):
		return "missing"
	case errors.Is(err, session.ErrTokenExpired):
		return "expired"
	case errors.Is(err, session.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, errRefreshRevoked):
		return "revoked"
	case errors.Is(err, revocation.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrRefreshInvalid):
		return "rejected"
	default:
		return "error"
	}
}
