package app

import (
	"context"
	"net/http"
	"time"

	authapi "portal/cmd/internal/auth/api"
	"portal/cmd/internal/auth/revocation"
	"portal/cmd/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func newRouter(
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	store revocation.Store,
	m *metrics.Metrics,
	auth *authapi.Handler,
) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && dbPool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		if p, ok := store.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				http.Error(w, "revocation store not ready", http.StatusServiceUnavailable)
				log.Info("readyz.revocation.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	}).Methods(http.MethodGet, http.MethodHead)

	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	auth.Register(r)
	return r
}
