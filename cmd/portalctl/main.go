// Package main provides a CI-friendly smoke test for a running portal server.
//
// It validates:
//   - dev session issuance (requires PORTAL_DEV_SESSIONS=true)
//   - GET /auth/me with the issued cookies
//   - one shared refresh for concurrent requests after the access cookie is dropped
//   - the guarded GET /sites/{siteId}/member route
//   - logout revokes the session
//
// Against plain http the server must run with PORTAL_COOKIE_SECURE=false,
// otherwise the cookie jar will not send the session cookies back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"portal/cmd/internal/auth/cookie"
	"portal/cmd/internal/authclient"
)

type sessionOut struct {
	SubjectID string `json:"subjectId"`
}

type meOut struct {
	SubjectID string   `json:"subjectId"`
	Roles     []string `json:"roles"`
	SiteID    string   `json:"siteId"`
}

type memberOut struct {
	SubjectID string `json:"subjectId"`
	Member    struct {
		UID    string `json:"uid"`
		SiteID string `json:"siteId"`
		Role   string `json:"role"`
	} `json:"member"`
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "portal base URL")
		subject  = flag.String("subject", "smoke-user", "subject id for the dev session")
		site     = flag.String("site", "", "site id; when set, the guarded member route is checked")
		role     = flag.String("role", "member", "role for the dev session (member|admin)")
		parallel = flag.Int("parallel", 8, "concurrent requests sharing one refresh")
		timeout  = flag.Duration("timeout", 7*time.Second, "per-request timeout")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if *parallel < 1 {
		fatalf("-parallel must be >= 1")
	}

	c, err := authclient.New(authclient.Config{BaseURL: *baseURL, Timeout: *timeout})
	if err != nil {
		fatalf("client: %v", err)
	}

	root := context.Background()

	var sess sessionOut
	body := map[string]any{"subjectId": *subject, "roles": []string{*role}, "siteId": *site}
	if err := c.Do(root, http.MethodPost, "/auth/dev/session", body, &sess); err != nil {
		fatalf("dev session: %v", err)
	}
	if sess.SubjectID != *subject {
		fatalf("dev session subject mismatch: got=%q want=%q", sess.SubjectID, *subject)
	}

	var me meOut
	if err := c.Do(root, http.MethodGet, "/auth/me", nil, &me); err != nil {
		fatalf("me: %v", err)
	}
	if me.SubjectID != *subject {
		fatalf("me subject mismatch: got=%q want=%q", me.SubjectID, *subject)
	}
	if *verbose {
		fmt.Printf("session: subject=%s roles=%v site=%q\n", me.SubjectID, me.Roles, me.SiteID)
	}

	mustDropAccessCookie(c, *baseURL)
	before := c.Refreshes()
	mustConcurrentMe(root, c, *subject, *parallel)
	if got := c.Refreshes() - before; got != 1 {
		fatalf("expected exactly one shared refresh for %d requests, got %d", *parallel, got)
	}

	if *site != "" {
		var m memberOut
		if err := c.Do(root, http.MethodGet, "/sites/"+url.PathEscape(*site)+"/member", nil, &m); err != nil {
			fatalf("site member: %v", err)
		}
		if m.Member.UID != *subject || m.Member.SiteID != *site {
			fatalf("member mismatch: got uid=%q site=%q", m.Member.UID, m.Member.SiteID)
		}
		if *verbose {
			fmt.Printf("member: site=%s role=%s\n", m.Member.SiteID, m.Member.Role)
		}
	}

	if err := c.Logout(root, "/auth/logout"); err != nil {
		fatalf("logout: %v", err)
	}
	if err := c.Do(root, http.MethodGet, "/auth/me", nil, nil); !errors.Is(err, authclient.ErrUnauthorized) {
		fatalf("me after logout: want ErrUnauthorized, got %v", err)
	}

	fmt.Printf("OK: subject=%s refreshes=%d parallel=%d\n", *subject, c.Refreshes(), *parallel)
}

// mustDropAccessCookie expires the access cookie locally so the next requests answer 401.
func mustDropAccessCookie(c *authclient.Client, base string) {
	u, err := url.Parse(base)
	if err != nil {
		fatalf("parse url: %v", err)
	}
	c.Jar().SetCookies(u, []*http.Cookie{{
		Name:   cookie.AccessTokenName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
}

func mustConcurrentMe(ctx context.Context, c *authclient.Client, subject string, n int) {
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var me meOut
			if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &me); err != nil {
				errs <- err
				return
			}
			if me.SubjectID != subject {
				errs <- fmt.Errorf("subject mismatch: %q", me.SubjectID)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		fatalf("concurrent me: %v", err)
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("url missing host")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
