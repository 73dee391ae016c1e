package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	authapi "portal/cmd/internal/auth/api"
	"portal/cmd/internal/auth/cookie"
	"portal/cmd/internal/dbschema"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable read into Config.
const EnvPrefix = "PORTAL_"

// Revocation store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// ErrInvalidConfig is returned when env values parse but make no sense together.
var ErrInvalidConfig = errors.New("app: invalid config")

// Config is the runtime configuration for the portal server.
//
// Token codec settings (issuer, TTLs, keys) are loaded separately by session.LoadConfigFromEnv.
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	DatabaseURL        string `env:"DATABASE_URL"`
	DBSchema           string `env:"DB_SCHEMA" envDefault:"portal"`
	DBMaxConns         int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns         int32  `env:"DB_MIN_CONNS" envDefault:"0"`
	MigrateOnStart     bool   `env:"MIGRATE_ON_START" envDefault:"false"`
	ReadinessRequireDB bool   `env:"READINESS_REQUIRE_DB" envDefault:"false"`

	RedisURL string `env:"REDIS_URL"`

	// RevocationStore is one of memory, redis, postgres.
	RevocationStore string        `env:"REVOCATION_STORE" envDefault:"memory"`
	PruneInterval   time.Duration `env:"REVOCATION_PRUNE_INTERVAL" envDefault:"1h"`

	// DevMembers seeds the in-memory member directory: "uid:siteId:role[:name],...".
	DevMembers  string `env:"DEV_MEMBERS"`
	DevSessions bool   `env:"DEV_SESSIONS" envDefault:"false"`

	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieSameSite string `env:"COOKIE_SAMESITE" envDefault:"lax"`
	CookieDomain   string `env:"COOKIE_DOMAIN"`

	LoginURL      string `env:"LOGIN_URL" envDefault:"/login"`
	RotateRefresh bool   `env:"ROTATE_REFRESH" envDefault:"true"`
	TrustProxy    bool   `env:"TRUST_PROXY" envDefault:"false"`

	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	CORSMaxAgeSeconds    int      `env:"CORS_MAX_AGE_SECONDS" envDefault:"600"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig reads .env (when present) into the process env, then parses PORTAL_* variables.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("app: load .env: %w", err)
	}

	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("app: parse env: %w", err)
	}
	cfg.RevocationStore = strings.ToLower(strings.TrimSpace(cfg.RevocationStore))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.RevocationStore {
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("%w: REVOCATION_STORE=redis requires REDIS_URL", ErrInvalidConfig)
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("%w: REVOCATION_STORE=postgres requires DATABASE_URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown REVOCATION_STORE %q", ErrInvalidConfig, c.RevocationStore)
	}

	if _, ok := cookie.ParseSameSite(c.CookieSameSite); !ok {
		return fmt.Errorf("%w: unknown COOKIE_SAMESITE %q", ErrInvalidConfig, c.CookieSameSite)
	}
	if c.MigrateOnStart && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("%w: MIGRATE_ON_START requires DATABASE_URL", ErrInvalidConfig)
	}
	schema, err := dbschema.Normalize(c.DBSchema)
	if err != nil {
		return fmt.Errorf("%w: DB_SCHEMA: %w", ErrInvalidConfig, err)
	}
	// Embedded migrations create the default schema only.
	if c.MigrateOnStart && schema != dbschema.Default {
		return fmt.Errorf("%w: MIGRATE_ON_START only supports DB_SCHEMA=%s", ErrInvalidConfig, dbschema.Default)
	}
	return nil
}

// CookieConfig derives the cookie adapter settings.
func (c Config) CookieConfig() cookie.Config {
	cc := cookie.DefaultConfig()
	cc.Secure = c.CookieSecure
	cc.Domain = strings.TrimSpace(c.CookieDomain)
	if ss, ok := cookie.ParseSameSite(c.CookieSameSite); ok {
		cc.SameSite = ss
	} else {
		cc.SameSite = http.SameSiteLaxMode
	}
	return cc
}

// AuthConfig derives the refresh protocol settings.
func (c Config) AuthConfig() authapi.Config {
	ac := authapi.DefaultConfig()
	ac.RotateRefresh = c.RotateRefresh
	ac.TrustProxy = c.TrustProxy
	ac.DevSessions = c.DevSessions
	if v := strings.TrimSpace(c.LoginURL); v != "" {
		ac.LoginURL = v
	}
	return ac
}
