package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portal/cmd/internal/auth/revocation"
	"portal/cmd/internal/auth/session"

	"github.com/caarlos0/env/v11"
)

func testConfig(t *testing.T, vars map[string]string) Config {
	t.Helper()
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix, Environment: vars})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func testSessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.Secret = []byte("0123456789abcdef0123456789abcdef")
	return sc
}

func newTestApp(t *testing.T, vars map[string]string) *App {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), testConfig(t, vars), testSessionConfig(), log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func serve(a *App, method, path string, body []byte, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "port only", in: ":8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestApp_MemoryWiring(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"PORTAL_DEV_SESSIONS": "true",
		"PORTAL_DEV_MEMBERS":  "u1:s1:member:Una,root:s1:admin",
	})

	rr := serve(a, http.MethodPost, "/auth/dev/session", []byte(`{"subjectId":"u1","siteId":"s1"}`), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("dev session status=%d body=%s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected access and refresh cookies, got %d", len(cookies))
	}

	rr = serve(a, http.MethodGet, "/auth/me", nil, cookies)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"subjectId":"u1"`) {
		t.Fatalf("me status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = serve(a, http.MethodGet, "/sites/s1/member", nil, cookies)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Una") {
		t.Fatalf("member status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get(RequestIDHeader); got == "" {
		t.Fatalf("missing %s", RequestIDHeader)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing security headers: %q", got)
	}

	rr = serve(a, http.MethodGet, "/sites/s2/member", nil, cookies)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign site status=%d want 404", rr.Code)
	}

	rr = serve(a, http.MethodPost, "/sites/s1/members/u1/revoke", nil, cookies)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("member revoking status=%d want 403", rr.Code)
	}
}

func TestApp_OperationalRoutes(t *testing.T) {
	a := newTestApp(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := serve(a, http.MethodGet, path, nil, nil); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	// Dev sessions are off by default.
	if rr := serve(a, http.MethodPost, "/auth/dev/session", []byte(`{"subjectId":"u1"}`), nil); rr.Code == http.StatusOK {
		t.Fatalf("dev session route must not be registered by default")
	}

	rr := serve(a, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "portal_http_requests_total") {
		t.Fatalf("metrics output missing http counter")
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	a := newTestApp(t, map[string]string{"PORTAL_METRICS_ENABLED": "false"})

	if rr := serve(a, http.MethodGet, "/metrics", nil, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("metrics status=%d want 404", rr.Code)
	}
}

func TestApp_ReadinessRequiresDB(t *testing.T) {
	a := newTestApp(t, map[string]string{"PORTAL_READINESS_REQUIRE_DB": "true"})

	if rr := serve(a, http.MethodGet, "/readyz", nil, nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d want 503", rr.Code)
	}
}

func TestApp_PruneOnce(t *testing.T) {
	a := newTestApp(t, nil)

	store, ok := a.revocations.(*revocation.MemoryStore)
	if !ok {
		t.Fatalf("expected memory store, got %T", a.revocations)
	}

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Revoke(context.Background(), t0, "u1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	a.pruneOnce(context.Background(), store, t0.Add(time.Hour))
	if store.Len() != 1 {
		t.Fatalf("record pruned while tokens it covers may still be live")
	}

	a.pruneOnce(context.Background(), store, t0.Add(a.refreshTTL+time.Second))
	if store.Len() != 0 {
		t.Fatalf("expected record pruned, have %d", store.Len())
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	weak := testSessionConfig()
	weak.Secret = []byte("short")
	if _, err := New(context.Background(), testConfig(t, nil), weak, log); err == nil {
		t.Fatalf("expected error for short secret")
	}

	cfg := testConfig(t, map[string]string{"PORTAL_REVOCATION_STORE": "redis"})
	if _, err := New(context.Background(), cfg, testSessionConfig(), log); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
