package guard

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"portal/cmd/internal/auth/cookie"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/metrics"

	"github.com/gorilla/mux"
)

// SiteVar is the route variable naming the requested site.
const SiteVar = "siteId"

// Handler is a guarded handler. It receives the resolved GuardContext.
type Handler func(w http.ResponseWriter, r *http.Request, gc GuardContext) error

// ErrorHandler is an HTTP handler that reports failure by returning an error.
type ErrorHandler func(w http.ResponseWriter, r *http.Request) error

// AccessVerifier verifies access tokens; session.Codec satisfies it.
type AccessVerifier interface {
	VerifyAccessToken(token string, now time.Time) (session.AccessClaims, error)
}

// Guard builds guarded handlers from a verifier, the cookie adapter and a member lookup.
type Guard struct {
	log     *slog.Logger
	tokens  AccessVerifier
	cookies *cookie.Adapter
	members MemberLookup
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures optional Guard dependencies.
type Option func(*Guard)

// WithMetrics records guard decisions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithClock overrides time.Now for token verification.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// New constructs a Guard.
func New(log *slog.Logger, tokens AccessVerifier, cookies *cookie.Adapter, members MemberLookup, opts ...Option) (*Guard, error) {
	if log == nil {
		log = slog.Default()
	}
	if tokens == nil || cookies == nil || members == nil {
		return nil, errors.New("guard: verifier, cookie adapter and member lookup are required")
	}
	g := &Guard{
		log:     log,
		tokens:  tokens,
		cookies: cookies,
		members: members,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Lookup returns the member directory the guard resolves members from.
func (g *Guard) Lookup() MemberLookup { return g.members }

// MemberGuard authenticates the access cookie, resolves the member for the
// requested site and calls next. Errors returned by next pass through unchanged.
func (g *Guard) MemberGuard(next Handler) ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request) error {
		raw, ok := g.cookies.ReadAccessToken(r)
		if !ok {
			return g.reject(r, "member", "unauthenticated", ErrUnauthenticated)
		}
		claims, err := g.tokens.VerifyAccessToken(raw, g.now().UTC())
		if err != nil {
			// Expired and invalid tokens look the same to the client.
			return g.reject(r, "member", "unauthenticated", ErrUnauthenticated)
		}

		siteID := requestedSite(r, claims)
		if siteID == "" {
			return g.reject(r, "member", "member_not_found", ErrMemberNotFound)
		}

		m, err := g.members.GetMember(r.Context(), claims.SubjectID, siteID)
		if err != nil {
			if errors.Is(err, ErrMemberNotFound) {
				return g.reject(r, "member", "member_not_found", ErrMemberNotFound)
			}
			g.metrics.GuardDecision("member", "lookup_error")
			return err
		}

		g.metrics.GuardDecision("member", "allow")
		return next(w, r, GuardContext{User: claims, Member: m})
	}
}

// RequireRole rejects members that do not hold role.
func (g *Guard) RequireRole(role session.Role, next Handler) Handler {
	name := role.String()
	return func(w http.ResponseWriter, r *http.Request, gc GuardContext) error {
		if !gc.Member.HasRole(role) {
			return g.reject(r, name, "forbidden", ErrForbidden)
		}
		g.metrics.GuardDecision(name, "allow")
		return next(w, r, gc)
	}
}

// AdminGuard is MemberGuard followed by an admin role check.
func (g *Guard) AdminGuard(next Handler) ErrorHandler {
	return g.MemberGuard(g.RequireRole(session.RoleAdmin, next))
}

// Member adapts a member-guarded handler to net/http.
func (g *Guard) Member(next Handler) http.Handler {
	return Serve(g.log, g.MemberGuard(next))
}

// Admin adapts an admin-guarded handler to net/http.
func (g *Guard) Admin(next Handler) http.Handler {
	return Serve(g.log, g.AdminGuard(next))
}

func (g *Guard) reject(r *http.Request, guard, outcome string, err error) error {
	g.metrics.GuardDecision(guard, outcome)
	g.log.Debug("guard.reject", "guard", guard, "outcome", outcome, "method", r.Method, "path", r.URL.Path)
	return &rejection{err: err}
}

func requestedSite(r *http.Request, claims session.AccessClaims) string {
	if v := strings.TrimSpace(mux.Vars(r)[SiteVar]); v != "" {
		return v
	}
	return claims.SiteID
}
