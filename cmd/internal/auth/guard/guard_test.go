package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portal/cmd/internal/auth/cookie"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/httpjson"

	"github.com/gorilla/mux"
)

var testNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	codec   session.Codec
	cookies *cookie.Adapter
	members map[string]Member // key: subject|site
	lookErr error
	guard   *Guard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.Secret = []byte("0123456789abcdef0123456789abcdef")
	codec, err := session.NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	f := &fixture{
		codec:   codec,
		cookies: cookie.NewAdapter(cookie.DefaultConfig()),
		members: map[string]Member{
			"u1|s1": {ID: "m1", UID: "u1", SiteID: "s1", Role: session.RoleMember, DisplayName: "Una"},
			"u2|s1": {ID: "m2", UID: "u2", SiteID: "s1", Role: session.RoleAdmin, DisplayName: "Dos"},
		},
	}
	lookup := MemberLookupFunc(func(_ context.Context, subjectID, siteID string) (Member, error) {
		if f.lookErr != nil {
			return Member{}, f.lookErr
		}
		m, ok := f.members[subjectID+"|"+siteID]
		if !ok {
			return Member{}, ErrMemberNotFound
		}
		return m, nil
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := New(log, codec, f.cookies, lookup, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("guard.New: %v", err)
	}
	f.guard = g
	return f
}

func (f *fixture) accessToken(t *testing.T, subject, site string, issuedAt time.Time) string {
	t.Helper()
	tok, _, err := f.codec.IssueAccessToken(subject, []session.Role{session.RoleMember}, site, issuedAt)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return tok
}

func siteRequest(site, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/sites/"+site+"/member", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookie.AccessTokenName, Value: token})
	}
	if site != "" {
		req = mux.SetURLVars(req, map[string]string{SiteVar: site})
	}
	return req
}

func okHandler(w http.ResponseWriter, _ *http.Request, gc GuardContext) error {
	httpjson.Write(w, http.StatusOK, gc.Member)
	return nil
}

func serve(log *slog.Logger, h ErrorHandler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	Serve(log, h).ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpjson.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestMemberGuard_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	valid := f.accessToken(t, "u1", "s1", testNow)

	tests := []struct {
		name  string
		token string
	}{
		{"missing cookie", ""},
		{"garbage", "not-a-token"},
		{"tampered", valid[:len(valid)-8] + "AAAAAAAA"},
		{"expired", f.accessToken(t, "u1", "s1", testNow.Add(-time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := f.guard.MemberGuard(func(http.ResponseWriter, *http.Request, GuardContext) error {
				called = true
				return nil
			})

			err := h(httptest.NewRecorder(), siteRequest("s1", tt.token))
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
			if called {
				t.Fatalf("next handler must not run")
			}

			rr := serve(f.guard.log, h, siteRequest("s1", tt.token))
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if code := errorCode(t, rr); code != "unauthenticated" {
				t.Fatalf("unexpected error code %q", code)
			}
		})
	}
}

func TestMemberGuard_MemberNotFound(t *testing.T) {
	f := newFixture(t)
	tok := f.accessToken(t, "u1", "s1", testNow)

	rr := serve(f.guard.log, f.guard.MemberGuard(okHandler), siteRequest("s2", tok))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "member_not_found" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestMemberGuard_SiteFallsBackToTokenClaim(t *testing.T) {
	f := newFixture(t)
	tok := f.accessToken(t, "u1", "s1", testNow)

	var got GuardContext
	h := f.guard.MemberGuard(func(_ http.ResponseWriter, _ *http.Request, gc GuardContext) error {
		got = gc
		return nil
	})
	if err := h(httptest.NewRecorder(), siteRequest("", tok)); err != nil {
		t.Fatalf("MemberGuard: %v", err)
	}
	if got.Member.ID != "m1" || got.User.SubjectID != "u1" || got.User.SiteID != "s1" {
		t.Fatalf("unexpected guard context: %+v", got)
	}

	noSite := f.accessToken(t, "u1", "", testNow)
	if err := h(httptest.NewRecorder(), siteRequest("", noSite)); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound without any site, got %v", err)
	}
}

func TestMemberGuard_LookupErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.lookErr = errors.New("directory offline")
	tok := f.accessToken(t, "u1", "s1", testNow)

	h := f.guard.MemberGuard(okHandler)
	if err := h(httptest.NewRecorder(), siteRequest("s1", tok)); !errors.Is(err, f.lookErr) {
		t.Fatalf("expected lookup error to propagate, got %v", err)
	}

	rr := serve(f.guard.log, h, siteRequest("s1", tok))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestAdminGuard_ComposesOnMemberGuard(t *testing.T) {
	f := newFixture(t)
	member := f.accessToken(t, "u1", "s1", testNow)
	admin := f.accessToken(t, "u2", "s1", testNow)

	tests := []struct {
		name  string
		h     ErrorHandler
		token string
		want  int
	}{
		{"member guard accepts member", f.guard.MemberGuard(okHandler), member, http.StatusOK},
		{"admin guard rejects member", f.guard.AdminGuard(okHandler), member, http.StatusForbidden},
		{"admin guard accepts admin", f.guard.AdminGuard(okHandler), admin, http.StatusOK},
		{"admin guard still authenticates", f.guard.AdminGuard(okHandler), "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(f.guard.log, tt.h, siteRequest("s1", tt.token))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestGuard_HandlerErrorPropagatesUnchanged(t *testing.T) {
	f := newFixture(t)
	tok := f.accessToken(t, "u2", "s1", testNow)

	sentinel := errors.New("handler failed")
	h := f.guard.AdminGuard(func(http.ResponseWriter, *http.Request, GuardContext) error {
		return sentinel
	})

	if err := h(httptest.NewRecorder(), siteRequest("s1", tok)); err != sentinel {
		t.Fatalf("expected the handler's own error, got %v", err)
	}
}

func TestServe_OnlyGuardRejectionsMapToAuthStatuses(t *testing.T) {
	f := newFixture(t)
	member := f.accessToken(t, "u1", "s1", testNow)
	admin := f.accessToken(t, "u2", "s1", testNow)

	returning := func(err error) Handler {
		return func(http.ResponseWriter, *http.Request, GuardContext) error { return err }
	}

	tests := []struct {
		name  string
		h     ErrorHandler
		token string
		want  int
	}{
		{"guard rejects non-admin", f.guard.AdminGuard(okHandler), member, http.StatusForbidden},
		{"handler wraps forbidden", f.guard.MemberGuard(returning(fmt.Errorf("load invoice: %w", ErrForbidden))), member, http.StatusInternalServerError},
		{"handler wraps member not found", f.guard.MemberGuard(returning(fmt.Errorf("lookup owner: %w", ErrMemberNotFound))), admin, http.StatusInternalServerError},
		{"handler returns unauthenticated", f.guard.AdminGuard(returning(ErrUnauthenticated)), admin, http.StatusInternalServerError},
		{"handler chooses status", f.guard.MemberGuard(returning(&HTTPError{Status: http.StatusNotFound, Code: "member_not_found", Err: ErrMemberNotFound})), member, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(f.guard.log, tt.h, siteRequest("s1", tt.token))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestServe_ForwardsFlush(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := ErrorHandler(func(w http.ResponseWriter, _ *http.Request) error {
		f, ok := w.(http.Flusher)
		if !ok {
			return errors.New("writer does not flush")
		}
		_, _ = w.Write([]byte("event: ping\n\n"))
		f.Flush()
		return nil
	})

	rr := serve(log, h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !rr.Flushed {
		t.Fatalf("expected Flush to reach the underlying writer")
	}
}

func TestServe_HTTPError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := ErrorHandler(func(http.ResponseWriter, *http.Request) error {
		return &HTTPError{Status: http.StatusServiceUnavailable, Code: "revocation_unavailable", Message: "retry later", Err: errors.New("redis down")}
	})

	rr := serve(log, h, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "revocation_unavailable" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestServe_ErrorAfterWriteIsOnlyLogged(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := ErrorHandler(func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		return errors.New("late failure")
	})

	rr := serve(log, h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected handler status to stand, got %d", rr.Code)
	}
}

func TestMemberHasRole(t *testing.T) {
	admin := Member{Role: session.RoleAdmin}
	member := Member{Role: session.RoleMember}

	if !admin.HasRole(session.RoleAdmin) || !admin.HasRole(session.RoleMember) {
		t.Fatalf("admin must satisfy every role")
	}
	if member.HasRole(session.RoleAdmin) {
		t.Fatalf("member must not satisfy admin")
	}
	if (Member{}).HasRole(session.RoleMember) {
		t.Fatalf("zero role must satisfy nothing")
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}
