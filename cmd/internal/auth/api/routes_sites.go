package authapi

import (
	"errors"
	"net/http"
	"strings"

	"portal/cmd/internal/auth/guard"
	"portal/cmd/internal/auth/revocation"
	"portal/cmd/internal/httpjson"

	"github.com/gorilla/mux"
)

func (h *Handler) registerSiteRoutes(r *mux.Router) {
	sites := r.PathPrefix("/sites/{" + guard.SiteVar + "}").Subrouter()
	sites.Handle("/member", h.guard.Member(h.siteMember)).Methods(http.MethodGet)
	sites.Handle("/members/{subjectId}/revoke", h.guard.Admin(h.siteRevokeMember)).Methods(http.MethodPost)
}

func (h *Handler) siteMember(w http.ResponseWriter, _ *http.Request, gc guard.GuardContext) error {
	httpjson.Write(w, http.StatusOK, memberResponse{Member: gc.Member, SubjectID: gc.User.SubjectID})
	return nil
}

// siteRevokeMember lets a site admin end every session of a member of the same site.
func (h *Handler) siteRevokeMember(w http.ResponseWriter, r *http.Request, gc guard.GuardContext) error {
	target := strings.TrimSpace(mux.Vars(r)["subjectId"])
	if target == "" {
		return &guard.HTTPError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "subjectId is required"}
	}

	if _, err := h.guard.Lookup().GetMember(r.Context(), target, gc.Member.SiteID); err != nil {
		if errors.Is(err, guard.ErrMemberNotFound) {
			return &guard.HTTPError{Status: http.StatusNotFound, Code: "member_not_found", Message: "member not found", Err: err}
		}
		return err
	}

	if err := h.revoke(r.Context(), h.now().UTC(), target); err != nil {
		if errors.Is(err, revocation.ErrStoreUnavailable) {
			return &guard.HTTPError{Status: http.StatusServiceUnavailable, Code: "revocation_unavailable", Message: "retry later", Err: err}
		}
		return err
	}

	h.audit(r.Context(), r, auditEvent{
		Action:    "auth.admin.revoke",
		SubjectID: target,
		Meta:      map[string]any{"by": gc.User.SubjectID, "site_id": gc.Member.SiteID},
	})
	w.WriteHeader(http.StatusNoContent)
	return nil
}
