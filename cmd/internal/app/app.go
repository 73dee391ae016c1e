// Package app wires the portal server runtime: config, logging, backends and HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	authapi "portal/cmd/internal/auth/api"
	"portal/cmd/internal/auth/cookie"
	"portal/cmd/internal/auth/guard"
	"portal/cmd/internal/auth/revocation"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/members"
	"portal/cmd/internal/metrics"
	"portal/cmd/internal/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App is the portal server runtime. It owns backend connections and the HTTP handler.
type App struct {
	cfg Config
	log Logger

	refreshTTL time.Duration
	keyID      string

	pool *pgxpool.Pool
	rdb  *redis.Client

	metrics     *metrics.Metrics
	revocations revocation.Store

	handler http.Handler
}

// New constructs a fully wired App from the server and codec configs.
func New(ctx context.Context, cfg Config, sc session.Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, sc); err != nil {
		return nil, err
	}

	codec, err := session.NewCodec(sc)
	if err != nil {
		return nil, fmt.Errorf("app: token codec: %w", err)
	}

	a := &App{
		cfg:        cfg,
		log:        log,
		refreshTTL: sc.RefreshTokenTTL + sc.ClockSkew,
		keyID:      keyFingerprint(sc),
	}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	if err := a.build(ctx, codec); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, codec session.Codec) error {
	if err := a.openBackends(ctx); err != nil {
		return err
	}

	store, err := a.newRevocationStore()
	if err != nil {
		return err
	}
	a.revocations = store

	dir, err := a.newMemberDirectory(ctx)
	if err != nil {
		return err
	}

	cookies := cookie.NewAdapter(a.cfg.CookieConfig())

	g, err := guard.New(a.log, codec, cookies, dir, guard.WithMetrics(a.metrics))
	if err != nil {
		return err
	}

	opts := []authapi.HandlerOption{
		authapi.WithGuard(g),
		authapi.WithMetrics(a.metrics),
	}
	if a.pool != nil {
		opts = append(opts, authapi.WithAuditPool(a.pool, a.cfg.DBSchema))
	}
	auth, err := authapi.NewHandler(a.log, a.cfg.AuthConfig(), codec, store, cookies, opts...)
	if err != nil {
		return err
	}

	router := newRouter(a.log, a.cfg, a.pool, store, a.metrics, auth)

	var h http.Handler = router
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log, a.metrics)
	h = WithRequestID(h)
	a.handler = h
	return nil
}

func (a *App) openBackends(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled")
	} else {
		pool, err := NewDBPool(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("app: postgres: %w", err)
		}
		a.pool = pool
		a.log.Info("db.enabled", "schema", a.cfg.DBSchema)

		if a.cfg.MigrateOnStart {
			if err := migrations.Up(ctx, pool); err != nil {
				return err
			}
			a.log.Info("db.migrated")
		}
	}

	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("app: redis url: %w", err)
		}
		a.rdb = redis.NewClient(opt)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("app: redis: %w", err)
		}
		a.log.Info("redis.enabled", "addr", opt.Addr)
	}
	return nil
}

func (a *App) newRevocationStore() (revocation.Store, error) {
	switch a.cfg.RevocationStore {
	case StoreRedis:
		// Records outlive every refresh token they could cover.
		return revocation.NewRedisStore(a.rdb, revocation.WithRecordTTL(a.refreshTTL))
	case StorePostgres:
		return revocation.NewPostgresStore(a.pool, revocation.WithSchema(a.cfg.DBSchema))
	default:
		a.log.Warn("revocation.store.memory", "note", "revocations are lost on restart and not shared between instances")
		return revocation.NewMemoryStore(), nil
	}
}

func (a *App) newMemberDirectory(ctx context.Context) (guard.MemberLookup, error) {
	seed, err := members.ParseSeed(a.cfg.DevMembers)
	if err != nil {
		return nil, fmt.Errorf("app: DEV_MEMBERS: %w", err)
	}

	if a.pool == nil {
		a.log.Info("members.directory.memory", "seeded", len(seed))
		return members.NewMemoryDirectory(seed...)
	}

	dir, err := members.NewPostgresDirectory(a.pool, members.WithSchema(a.cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	for _, m := range seed {
		if err := dir.Put(ctx, m); err != nil {
			return nil, err
		}
	}
	a.log.Info("members.directory.postgres", "seeded", len(seed))
	return dir, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go a.runPruner(pruneCtx)

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", runtimeBaseURL(a.cfg.HTTPAddr),
		"revocation_store", a.cfg.RevocationStore,
		"db_enabled", a.pool != nil,
		"key_fingerprint", a.keyID,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// runPruner drops revocation records that can no longer match a live token.
func (a *App) runPruner(ctx context.Context) {
	p, ok := a.revocations.(revocation.Pruner)
	if !ok || a.cfg.PruneInterval <= 0 {
		return
	}

	t := time.NewTicker(a.cfg.PruneInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			a.pruneOnce(ctx, p, now)
		}
	}
}

func (a *App) pruneOnce(ctx context.Context, p revocation.Pruner, now time.Time) {
	cutoff := now.Add(-a.refreshTTL)
	n, err := p.Prune(ctx, cutoff)
	if err != nil {
		a.log.Warn("revocation.prune.fail", "err", err)
		return
	}
	if n > 0 {
		a.log.Info("revocation.prune", "removed", n, "cutoff", cutoff)
	}
}

func (a *App) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
