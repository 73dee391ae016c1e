package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"portal/cmd/internal/auth/cookie"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/httpjson"
)

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()

	raw, _ := h.cookies.ReadRefreshToken(r)
	sess, err := h.Refresh(ctx, raw, now)
	if err != nil {
		reason := refreshFailureReason(err)
		h.metrics.RefreshOutcome(reason)
		if reason == "store_unavailable" || reason == "error" {
			h.log.Error("auth.refresh.fail", "reason", reason, "err", err)
		} else {
			h.log.Info("auth.refresh.fail", "reason", reason)
		}
		h.audit(ctx, r, auditEvent{Action: "auth.refresh.fail", Meta: map[string]any{"reason": reason}})

		// Every refresh failure ends the browser session.
		h.cookies.ClearAuthCookies(w)
		httpjson.WriteError(w, http.StatusUnauthorized, "refresh_invalid", "refresh token invalid")
		return
	}

	resp := refreshResponse{AccessExpiresAt: sess.Access.ExpiresAt}
	access := cookie.Token{Value: sess.AccessToken, ExpiresAt: sess.Access.ExpiresAt}
	if sess.RefreshToken != "" {
		h.cookies.SetAuthCookies(w, access, cookie.Token{Value: sess.RefreshToken, ExpiresAt: sess.Refresh.ExpiresAt})
		exp := sess.Refresh.ExpiresAt
		resp.RefreshExpiresAt = &exp
	} else {
		h.cookies.SetAccessCookie(w, access)
	}

	h.metrics.RefreshOutcome("ok")
	h.audit(ctx, r, auditEvent{Action: "auth.refresh.success", SubjectID: sess.Access.SubjectID})
	httpjson.Write(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()

	subjectID := h.logoutSubject(r, now)
	if subjectID != "" {
		if err := h.revoke(ctx, now, subjectID); err != nil {
			h.log.Error("auth.logout.revoke.fail", "err", err, "subject_id", subjectID)
			// Fail closed: the browser loses its cookies but the client is told
			// the server-side revocation did not happen.
			h.cookies.ClearAuthCookies(w)
			httpjson.WriteError(w, http.StatusServiceUnavailable, "revocation_unavailable", "logout could not be recorded, retry")
			return
		}
		h.audit(ctx, r, auditEvent{Action: "auth.logout", SubjectID: subjectID})
	}

	h.cookies.ClearAuthCookies(w)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, h.cfg.LoginURL, http.StatusSeeOther)
}

// logoutSubject trusts only signature-valid tokens. Expiry is ignored so an
// expired session can still be revoked.
func (h *Handler) logoutSubject(r *http.Request, now time.Time) string {
	if raw, ok := h.cookies.ReadRefreshToken(r); ok {
		c, err := h.tokens.VerifyRefreshToken(raw, now)
		if err == nil || errors.Is(err, session.ErrTokenExpired) {
			return c.SubjectID
		}
	}
	if raw, ok := h.cookies.ReadAccessToken(r); ok {
		c, err := h.tokens.VerifyAccessToken(raw, now)
		if err == nil || errors.Is(err, session.ErrTokenExpired) {
			return c.SubjectID
		}
	}
	return ""
}

func (h *Handler) revoke(ctx context.Context, now time.Time, subjectID string) error {
	if err := h.revocations.Revoke(ctx, now, subjectID); err != nil {
		h.metrics.RevokeOutcome("fail")
		return err
	}
	h.metrics.RevokeOutcome("ok")
	return nil
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.cookies.ReadAccessToken(r)
	if !ok {
		httpjson.WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	claims, err := h.tokens.VerifyAccessToken(raw, h.now().UTC())
	if err != nil {
		httpjson.WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	httpjson.Write(w, http.StatusOK, toMeResponse(claims))
}

func (h *Handler) handleDevSession(w http.ResponseWriter, r *http.Request) {
	var req devSessionRequest
	if err := httpjson.Decode(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if req.SubjectID == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid_request", "subjectId is required")
		return
	}
	if len(req.Roles) == 0 {
		req.Roles = []session.Role{session.RoleMember}
	}

	sess, err := h.IssueSession(w, h.now().UTC(), req.SubjectID, req.Roles, req.SiteID)
	if err != nil {
		h.log.Error("auth.dev_session.fail", "err", err)
		httpjson.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	h.audit(r.Context(), r, auditEvent{Action: "auth.dev_session", SubjectID: req.SubjectID})
	httpjson.Write(w, http.StatusOK, toSessionResponse(sess))
}
