// Package authclient is an HTTP client for portal's cookie-authenticated API.
//
// When a request answers 401 the client refreshes the session through
// POST /auth/refresh and retries the request once. Concurrent 401s share a
// single refresh: the first caller starts it, later callers wait for the same
// result, and the slot is released whether the refresh succeeds or fails.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"portal/cmd/internal/httpjson"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnauthorized means the session could not be refreshed, or the retried
	// request was still rejected.
	ErrUnauthorized = errors.New("authclient: unauthorized")

	// ErrUpstreamTimeout means a request or the shared refresh hit the client timeout.
	ErrUpstreamTimeout = errors.New("authclient: upstream timeout")
)

const (
	defaultTimeout     = 10 * time.Second
	defaultRefreshPath = "/auth/refresh"
	refreshKey         = "refresh"
	maxErrorBody       = 64 << 10
)

// StatusError is returned for non-2xx responses other than 401.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authclient: status %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("authclient: status %d", e.Status)
}

// Config configures a Client.
type Config struct {
	BaseURL string

	// Timeout bounds every request, the refresh included.
	Timeout time.Duration

	RefreshPath string

	// HTTPClient must carry a cookie jar; one is created when nil.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client performs JSON requests and coordinates session refreshes.
type Client struct {
	base        *url.URL
	http        *http.Client
	timeout     time.Duration
	refreshPath string
	log         *slog.Logger

	group singleflight.Group

	// generation advances after every successful refresh.
	generation atomic.Uint64
	refreshes  atomic.Int64
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("authclient: invalid base url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc = &http.Client{Jar: jar}
	}
	if hc.Jar == nil {
		return nil, errors.New("authclient: http client needs a cookie jar")
	}

	c := &Client{
		base:        base,
		http:        hc,
		timeout:     cfg.Timeout,
		refreshPath: cfg.RefreshPath,
		log:         cfg.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if strings.TrimSpace(c.refreshPath) == "" {
		c.refreshPath = defaultRefreshPath
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

// Refreshes reports how many refresh calls reached the network.
func (c *Client) Refreshes() int64 { return c.refreshes.Load() }

// Jar returns the cookie jar holding the session.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// Do sends a JSON request. A 2xx body is decoded into out when out is non-nil.
// A 401 triggers one shared refresh and exactly one retry.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("authclient: encode body: %w", err)
		}
		payload = b
	}

	seen := c.generation.Load()
	status, err := c.send(ctx, method, path, payload, out)
	if err != nil || status != http.StatusUnauthorized {
		return err
	}

	if err := c.refresh(ctx, seen); err != nil {
		return err
	}

	status, err = c.send(ctx, method, path, payload, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// refresh joins or starts the shared refresh. seen is the generation the
// caller's rejected request was sent under; if a refresh has completed since,
// the caller retries without refreshing again.
func (c *Client) refresh(ctx context.Context, seen uint64) error {
	if c.generation.Load() != seen {
		return nil
	}

	// The shared call must not inherit the first caller's cancellation.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		if c.generation.Load() != seen {
			return nil, nil
		}
		err := c.postRefresh(detached)
		if err == nil {
			c.generation.Add(1)
		}
		return nil, err
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) postRefresh(parent context.Context) error {
	c.refreshes.Add(1)
	c.log.Debug("authclient.refresh.start")

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.refreshPath), nil)
	if err != nil {
		return errors.Join(ErrUnauthorized, err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("authclient.refresh.fail", "err", err)
		return errors.Join(ErrUnauthorized, classify(parent, err))
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxErrorBody))

	if res.StatusCode/100 != 2 {
		c.log.Info("authclient.refresh.rejected", "status", res.StatusCode)
		return ErrUnauthorized
	}
	c.log.Debug("authclient.refresh.ok")
	return nil
}

// send performs one attempt. A 401 is reported through status, not err.
func (c *Client) send(parent context.Context, method, path string, payload []byte, out any) (int, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, classify(parent, err)
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxErrorBody))
		return res.StatusCode, nil
	case res.StatusCode/100 == 2:
		if out == nil || res.StatusCode == http.StatusNoContent {
			return res.StatusCode, nil
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return res.StatusCode, classify(parent, fmt.Errorf("authclient: decode response: %w", err))
		}
		return res.StatusCode, nil
	default:
		return res.StatusCode, statusError(res)
	}
}

func (c *Client) endpoint(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base.String() + path
}

// classify maps deadline errors to ErrUpstreamTimeout unless the caller's own
// context ended, in which case the caller's error wins.
func classify(parent context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return err
}

// Logout posts to path (normally /auth/logout). The 303 redirect the server
// answers with is treated as success and not followed.
func (c *Client) Logout(parent context.Context, path string) error {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	hc := *c.http
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	res, err := hc.Do(req)
	if err != nil {
		return classify(parent, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusSeeOther || res.StatusCode/100 == 2 {
		return nil
	}
	return statusError(res)
}

func statusError(res *http.Response) *StatusError {
	se := &StatusError{Status: res.StatusCode}
	var env httpjson.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxErrorBody)).Decode(&env); err == nil {
		se.Code = env.Error.Code
		se.Message = env.Error.Message
	}
	return se
}
