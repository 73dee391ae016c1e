// Package cookie moves session tokens between HTTP responses and requests.
//
// It never parses tokens; values are opaque strings.
package cookie

import (
	"net/http"
	"strings"
	"time"
)

const (
	// AccessTokenName is the default cookie carrying the access token.
	AccessTokenName = "access_token"
	// RefreshTokenName is the default cookie carrying the refresh token.
	RefreshTokenName = "refresh_token"
)

// Config controls cookie attributes shared by both auth cookies.
type Config struct {
	AccessName  string
	RefreshName string

	Path   string
	Domain string

	// Secure should only be disabled for plain-HTTP local development.
	Secure   bool
	SameSite http.SameSite
}

// DefaultConfig returns production-safe cookie attributes.
func DefaultConfig() Config {
	return Config{
		AccessName:  AccessTokenName,
		RefreshName: RefreshTokenName,
		Path:        "/",
		Secure:      true,
		SameSite:    http.SameSiteLaxMode,
	}
}

// Token is a token value with the expiry its cookie should carry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Adapter sets, clears and reads the auth cookies.
type Adapter struct {
	cfg Config
	now func() time.Time
}

// NewAdapter constructs an Adapter, filling unset fields from DefaultConfig.
func NewAdapter(cfg Config) *Adapter {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.AccessName) == "" {
		cfg.AccessName = def.AccessName
	}
	if strings.TrimSpace(cfg.RefreshName) == "" {
		cfg.RefreshName = def.RefreshName
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = def.Path
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.SameSite == http.SameSiteNoneMode {
		cfg.Secure = true
	}
	return &Adapter{cfg: cfg, now: time.Now}
}

// Config returns the effective cookie configuration.
func (a *Adapter) Config() Config { return a.cfg }

// AccessName is the access cookie name.
func (a *Adapter) AccessName() string { return a.cfg.AccessName }

// RefreshName is the refresh cookie name.
func (a *Adapter) RefreshName() string { return a.cfg.RefreshName }

// SetAuthCookies writes both cookies. Each cookie lives exactly as long as its token.
func (a *Adapter) SetAuthCookies(w http.ResponseWriter, access, refresh Token) {
	if a == nil || w == nil {
		return
	}
	now := a.now()
	a.setCookie(w, a.cfg.AccessName, access, now)
	a.setCookie(w, a.cfg.RefreshName, refresh, now)
}

// SetAccessCookie writes only the access cookie.
func (a *Adapter) SetAccessCookie(w http.ResponseWriter, access Token) {
	if a == nil || w == nil {
		return
	}
	a.setCookie(w, a.cfg.AccessName, access, a.now())
}

// ClearAuthCookies expires both cookies: empty value, epoch Expires and negative Max-Age.
func (a *Adapter) ClearAuthCookies(w http.ResponseWriter) {
	if a == nil || w == nil {
		return
	}
	a.expireCookie(w, a.cfg.AccessName)
	a.expireCookie(w, a.cfg.RefreshName)
}

// ReadToken returns the trimmed value of the named cookie, if present and non-empty.
func (a *Adapter) ReadToken(r *http.Request, name string) (string, bool) {
	if r == nil || strings.TrimSpace(name) == "" {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// ReadAccessToken reads the access cookie.
func (a *Adapter) ReadAccessToken(r *http.Request) (string, bool) {
	return a.ReadToken(r, a.cfg.AccessName)
}

// ReadRefreshToken reads the refresh cookie.
func (a *Adapter) ReadRefreshToken(r *http.Request) (string, bool) {
	return a.ReadToken(r, a.cfg.RefreshName)
}

func (a *Adapter) setCookie(w http.ResponseWriter, name string, tok Token, now time.Time) {
	maxAge := int(tok.ExpiresAt.Sub(now).Seconds())
	if maxAge <= 0 {
		// Already expired: a zero MaxAge would mean "session cookie".
		a.expireCookie(w, name)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    tok.Value,
		Path:     a.cfg.Path,
		Domain:   a.cfg.Domain,
		Expires:  tok.ExpiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.cfg.Secure,
		SameSite: a.cfg.SameSite,
	})
}

func (a *Adapter) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     a.cfg.Path,
		Domain:   a.cfg.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.Secure,
		SameSite: a.cfg.SameSite,
	})
}

// ParseSameSite maps "lax", "strict" and "none" to http.SameSite.
func ParseSameSite(raw string) (http.SameSite, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return 0, false
	}
}
