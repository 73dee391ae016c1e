// Package authapi serves the refresh protocol: POST /auth/refresh,
// POST /auth/logout and GET /auth/me, plus the guarded site routes.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"portal/cmd/internal/auth/cookie"
	"portal/cmd/internal/auth/guard"
	"portal/cmd/internal/auth/revocation"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/dbschema"
	"portal/cmd/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler wires HTTP auth endpoints to the codec, revocation store and cookies.
type Handler struct {
	log *slog.Logger
	cfg Config

	tokens      session.Codec
	revocations revocation.Store
	cookies     *cookie.Adapter

	guard   *guard.Guard
	metrics *metrics.Metrics

	pool        *pgxpool.Pool
	auditSchema string

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithGuard enables the guarded /sites routes.
func WithGuard(g *guard.Guard) HandlerOption {
	return func(h *Handler) { h.guard = g }
}

// WithMetrics records refresh and revocation outcomes.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithAuditPool appends audit events to <schema>.audit_log.
func WithAuditPool(pool *pgxpool.Pool, schema string) HandlerOption {
	return func(h *Handler) {
		h.pool = pool
		if v, err := dbschema.Normalize(schema); err == nil {
			h.auditSchema = v
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, tokens session.Codec, revocations revocation.Store, cookies *cookie.Adapter, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token codec")
	}
	if revocations == nil {
		return nil, errors.New("auth: nil revocation store")
	}
	if cookies == nil {
		return nil, errors.New("auth: nil cookie adapter")
	}

	h := &Handler{
		log:         log,
		cfg:         cfg.normalized(),
		tokens:      tokens,
		revocations: revocations,
		cookies:     cookies,
		auditSchema: dbschema.Default,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided router.
func (h *Handler) Register(r *mux.Router) {
	if h == nil || r == nil {
		return
	}
	r.HandleFunc("/auth/refresh", h.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
	if h.cfg.DevSessions {
		r.HandleFunc("/auth/dev/session", h.handleDevSession).Methods(http.MethodPost)
		h.log.Warn("auth.dev_sessions.enabled")
	}
	if h.guard != nil {
		h.registerSiteRoutes(r)
	}
}
