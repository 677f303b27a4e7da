package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultMetricsAddr     = ""
	defaultBackendTimeout  = 30 * time.Second
	defaultSessionLifetime = 24 * time.Hour
	defaultManagerMaxIdle  = 2 * time.Hour
	defaultManagerSweep    = 10 * time.Minute
)

type Config struct {
	BackendBaseURL   string
	HTTPAddr         string
	MetricsAddr      string
	DatabaseURL      string
	AuthCookieSecure bool
	BackendTimeout   time.Duration
	SessionLifetime  time.Duration
	ManagerMaxIdle   time.Duration
	ManagerSweep     time.Duration
}

type LoadOptions struct {
	RequireBackendBaseURL bool
	RequireDatabaseURL    bool
}

// Load is the serve-path configuration: the backend base URL is mandatory,
// the database (for durable sessions) is not.
func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireBackendBaseURL: true})
}

// LoadForMigrate requires the database the migrations run against.
func LoadForMigrate() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		BackendBaseURL:   strings.TrimSpace(os.Getenv("BACKEND_BASE_URL")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:      getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AuthCookieSecure: getenvBoolDefault("AUTH_COOKIE_SECURE", false),
		BackendTimeout:   getenvDurationDefault("BACKEND_TIMEOUT", defaultBackendTimeout),
		SessionLifetime:  getenvDurationDefault("SESSION_LIFETIME", defaultSessionLifetime),
		ManagerMaxIdle:   getenvDurationDefault("SESSION_MANAGER_MAX_IDLE", defaultManagerMaxIdle),
		ManagerSweep:     getenvDurationDefault("SESSION_MANAGER_SWEEP_INTERVAL", defaultManagerSweep),
	}

	if opts.RequireBackendBaseURL && cfg.BackendBaseURL == "" {
		return cfg, errors.New("BACKEND_BASE_URL is required")
	}
	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
