package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/artesjac-cart/internal/domain/pricing"
	"github.com/xenking/artesjac-cart/internal/handler"
)

const defaultAddr = "0.0.0.0:8080"

// Store kinds.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (ARTESJAC_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	SecureCookie bool   `default:"false" usage:"Mark the session cookie Secure" flag:"secure-cookie"`
	Remote       RemoteConfig
	Pricing      pricing.Config
	Store        StoreConfig
	Sync         SyncConfig
	Sessions     handler.RegistryConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RemoteConfig points at the ArtesJAC REST API.
type RemoteConfig struct {
	BaseURL string        `usage:"Base URL of the ArtesJAC API (e.g. https://api.artesjac.com/api)" flag:"remote-base-url"`
	Timeout time.Duration `default:"10s" usage:"Per-request timeout for API calls" flag:"remote-timeout"`
	Breaker BreakerConfig
}

// BreakerConfig controls the circuit breaker around API calls.
type BreakerConfig struct {
	MaxFailures      uint32        `default:"5"   usage:"Consecutive failures that open the breaker"`
	OpenTimeout      time.Duration `default:"30s" usage:"How long the breaker stays open"`
	HalfOpenRequests uint32        `default:"1"   usage:"Trial requests allowed while half-open"`
}

// StoreConfig selects the local cart store.
type StoreConfig struct {
	Kind        string `default:"memory" usage:"Local cart store: memory, file, redis or postgres" flag:"store"`
	Dir         string `default:"data/carts" usage:"Directory of the file store" flag:"store-dir"`
	DatabaseURL string `usage:"PostgreSQL connection URL; also enables the persistent order history (ARTESJAC_STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Redis       RedisConfig
}

// RedisConfig configures the redis cart store.
type RedisConfig struct {
	URL    string        `usage:"Redis URL (ARTESJAC_STORE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Addr   string        `usage:"Redis host:port, used when URL is empty" flag:"redis-addr"`
	TTL    time.Duration `default:"720h" usage:"Cart retention" flag:"redis-ttl"`
	Jitter time.Duration `default:"1h"   usage:"Random extension added to the retention" flag:"redis-jitter"`
}

// SyncConfig controls background reconciliation with the API.
type SyncConfig struct {
	Timeout time.Duration `default:"10s" usage:"Timeout of a single background cart sync" flag:"sync-timeout"`
}

// RateLimitConfig controls the per-session token bucket.
type RateLimitConfig struct {
	Max    int           `default:"120" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (session cookie)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ARTESJAC",
		Files:     []string{"config.yaml", "/etc/artesjac/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's ARTESJAC_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.Store.Redis.URL == "" {
		c.Store.Redis.URL = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote base URL is required: set ARTESJAC_REMOTE_BASE_URL")
	}
	if c.Pricing.FreeShippingThreshold < 0 || c.Pricing.StandardShippingFee < 0 {
		return errors.New("pricing threshold and fee must not be negative")
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("file store requires a directory")
		}
	case StoreRedis:
		if c.Store.Redis.URL == "" && c.Store.Redis.Addr == "" {
			return errors.New("redis store requires ARTESJAC_STORE_REDIS_URL, REDIS_URL or a redis address")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("postgres store requires ARTESJAC_STORE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown store kind %q", c.Store.Kind)
	}
	return nil
}
