// Package config loads fontshield configuration from an optional YAML
// file, an optional .env file and FONTSHIELD_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/fontshield/pkg/cache"
	"github.com/Sternrassler/fontshield/pkg/fontcss"
	"github.com/Sternrassler/fontshield/pkg/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FONTSHIELD_"

// Config is the full service configuration.
type Config struct {
	Listen  string        `yaml:"listen"`
	Origin  string        `yaml:"origin"`
	Cache   CacheConfig   `yaml:"cache"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Assets  AssetsConfig  `yaml:"assets"`
	Rewrite RewriteConfig `yaml:"rewrite"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CacheConfig selects the stylesheet cache backend.
type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	RedisURL   string        `yaml:"redis_url"`
	SQLitePath string        `yaml:"sqlite_path"`
	TTL        time.Duration `yaml:"ttl"`
}

// FetchConfig controls outbound stylesheet fetches.
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	FallbackUserAgent string        `yaml:"fallback_user_agent"`
	MaxAttempts       int           `yaml:"max_attempts"`
}

// AssetsConfig controls the font binary relay.
type AssetsConfig struct {
	Upstream string `yaml:"upstream"`
}

// RewriteConfig controls the HTML rewriter.
type RewriteConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen: ":8080",
		Cache: CacheConfig{
			Backend: cache.BackendMemory,
			TTL:     24 * time.Hour,
		},
		Fetch: FetchConfig{
			Timeout:           10 * time.Second,
			FallbackUserAgent: fontcss.DefaultFallbackUserAgent,
			MaxAttempts:       2,
		},
		Rewrite: RewriteConfig{MaxConcurrency: 8},
		Log:     LogConfig{Level: string(logging.LevelInfo)},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Load builds the configuration. path names a YAML file and may be empty.
// A .env file in the working directory is read if present; it never
// overrides variables already set in the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// applyEnv overlays FONTSHIELD_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("LISTEN", &c.Listen)
	str("ORIGIN", &c.Origin)
	str("CACHE_BACKEND", &c.Cache.Backend)
	str("CACHE_REDIS_URL", &c.Cache.RedisURL)
	str("CACHE_SQLITE_PATH", &c.Cache.SQLitePath)
	dur("CACHE_TTL", &c.Cache.TTL)
	dur("FETCH_TIMEOUT", &c.Fetch.Timeout)
	str("FETCH_FALLBACK_USER_AGENT", &c.Fetch.FallbackUserAgent)
	num("FETCH_MAX_ATTEMPTS", &c.Fetch.MaxAttempts)
	str("ASSETS_UPSTREAM", &c.Assets.Upstream)
	num("REWRITE_MAX_CONCURRENCY", &c.Rewrite.MaxConcurrency)
	str("LOG_LEVEL", &c.Log.Level)
	flag("LOG_PRETTY", &c.Log.Pretty)
	str("METRICS_PATH", &c.Metrics.Path)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if u, err := url.Parse(c.Origin); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("origin must be an absolute URL, got %q", c.Origin))
	}

	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendSQLite:
	case cache.BackendRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}

	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, errors.New("fetch.max_attempts must be at least 1"))
	}
	if c.Rewrite.MaxConcurrency < 1 {
		errs = append(errs, errors.New("rewrite.max_concurrency must be at least 1"))
	}
	if c.Assets.Upstream != "" {
		if u, err := url.Parse(c.Assets.Upstream); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("assets.upstream must be an absolute URL, got %q", c.Assets.Upstream))
		}
	}

	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path))
	}

	return errors.Join(errs...)
}

// CacheStoreConfig converts the cache section for cache.New.
func (c Config) CacheStoreConfig() cache.Config {
	return cache.Config{
		Backend:    c.Cache.Backend,
		RedisURL:   c.Cache.RedisURL,
		SQLitePath: c.Cache.SQLitePath,
		TTL:        c.Cache.TTL,
	}
}

// FetcherConfig converts the fetch section for fontcss.NewFetcher.
func (c Config) FetcherConfig() fontcss.Config {
	return fontcss.Config{
		FetchTimeout:      c.Fetch.Timeout,
		FallbackUserAgent: c.Fetch.FallbackUserAgent,
	}
}

// LoggingConfig converts the log section for logging.Setup.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
