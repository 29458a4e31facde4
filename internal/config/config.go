package config

import (
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Offline cache strategies accepted by --offline-strategy.
const (
	StrategyNetworkFirst = "network-first"
	StrategyCacheFirst   = "cache-first"
)

// Config holds all runtime configuration for moviego.
type Config struct {
	Listen       string
	DefaultTheme string

	// Media API
	APIBaseURL     string
	APIToken       string
	ProxyPrefix    string
	FetchTimeout   time.Duration
	MaxBodySize    int64
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimit      float64
	QueryCacheSize int

	// Offline cache worker
	StaticOrigin       string
	CacheVersion       string
	Precache           []string
	OfflineStrategy    string
	OfflineCrossOrigin bool
	OfflineStore       string
	OfflineQuota       int64
}

// envDefaults is the environment layer. Flags override it.
type envDefaults struct {
	Listen             string        `env:"MOVIEGO_LISTEN" envDefault:"127.0.0.1:8080"`
	DefaultTheme       string        `env:"MOVIEGO_DEFAULT_THEME" envDefault:"auto"`
	APIBaseURL         string        `env:"MOVIEGO_API_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	APIToken           string        `env:"MOVIEGO_API_TOKEN"`
	ProxyPrefix        string        `env:"MOVIEGO_PROXY_PREFIX" envDefault:"/api/tmdb"`
	FetchTimeout       time.Duration `env:"MOVIEGO_FETCH_TIMEOUT" envDefault:"10s"`
	MaxBodySize        string        `env:"MOVIEGO_MAX_BODY_SIZE" envDefault:"5MB"`
	MaxRetries         int           `env:"MOVIEGO_MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay     time.Duration `env:"MOVIEGO_RETRY_BASE_DELAY" envDefault:"1s"`
	RetryMaxDelay      time.Duration `env:"MOVIEGO_RETRY_MAX_DELAY" envDefault:"30s"`
	RateLimit          float64       `env:"MOVIEGO_RATE_LIMIT" envDefault:"40"`
	QueryCacheSize     int           `env:"MOVIEGO_QUERY_CACHE_SIZE" envDefault:"1000"`
	StaticOrigin       string        `env:"MOVIEGO_STATIC_ORIGIN"`
	CacheVersion       string        `env:"MOVIEGO_CACHE_VERSION" envDefault:"movie-app-v1"`
	Precache           string        `env:"MOVIEGO_PRECACHE" envDefault:"/,/index.html,/favicon.svg"`
	OfflineStrategy    string        `env:"MOVIEGO_OFFLINE_STRATEGY" envDefault:"network-first"`
	OfflineCrossOrigin bool          `env:"MOVIEGO_OFFLINE_CROSS_ORIGIN"`
	OfflineStore       string        `env:"MOVIEGO_OFFLINE_STORE"`
	OfflineQuota       string        `env:"MOVIEGO_OFFLINE_QUOTA" envDefault:"50MB"`
}

// Parse reads configuration from CLI flags with environment variable fallback.
func Parse(args []string) (*Config, error) {
	var d envDefaults
	if err := env.Parse(&d); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("moviego", flag.ContinueOnError)

	cfg := &Config{}

	fs.StringVar(&cfg.Listen, "listen", d.Listen, "Listen address")
	fs.StringVar(&cfg.DefaultTheme, "default-theme", d.DefaultTheme, "Default theme for HTML pages: auto, light, dark")
	fs.StringVar(&cfg.APIBaseURL, "api-base-url", d.APIBaseURL, "Media API base URL (upstream or proxy)")
	fs.StringVar(&cfg.APIToken, "api-token", d.APIToken, "Media API bearer token")
	fs.StringVar(&cfg.ProxyPrefix, "proxy-prefix", d.ProxyPrefix, "Path prefix of the credential-injecting API proxy")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", d.FetchTimeout, "Per-attempt upstream timeout")
	maxBodySize := fs.String("max-body-size", d.MaxBodySize, "Max upstream response size (e.g. 5MB)")
	fs.IntVar(&cfg.MaxRetries, "max-retries", d.MaxRetries, "Retries after the first attempt for retryable failures")
	fs.DurationVar(&cfg.RetryBaseDelay, "retry-base-delay", d.RetryBaseDelay, "Initial backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", d.RetryMaxDelay, "Backoff ceiling")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", d.RateLimit, "Upstream requests per second (0 disables)")
	fs.IntVar(&cfg.QueryCacheSize, "query-cache-size", d.QueryCacheSize, "Max cached API queries")
	fs.StringVar(&cfg.StaticOrigin, "static-origin", d.StaticOrigin, "Front-end origin URL (embedded shell if empty)")
	fs.StringVar(&cfg.CacheVersion, "cache-version", d.CacheVersion, "Offline cache version; bump to invalidate")
	precache := fs.String("precache", d.Precache, "Comma-separated root-relative paths cached at install")
	fs.StringVar(&cfg.OfflineStrategy, "offline-strategy", d.OfflineStrategy, "network-first or cache-first")
	fs.BoolVar(&cfg.OfflineCrossOrigin, "offline-cross-origin", d.OfflineCrossOrigin, "Also cache cross-origin static requests")
	fs.StringVar(&cfg.OfflineStore, "offline-store", d.OfflineStore, "SQLite path for the offline cache (memory if empty)")
	offlineQuota := fs.String("offline-quota", d.OfflineQuota, "Offline cache quota (e.g. 50MB)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	cfg.MaxBodySize, err = parseByteSize(*maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("parse max-body-size: %w", err)
	}

	cfg.OfflineQuota, err = parseByteSize(*offlineQuota)
	if err != nil {
		return nil, fmt.Errorf("parse offline-quota: %w", err)
	}

	cfg.Precache = splitList(*precache)

	switch cfg.OfflineStrategy {
	case StrategyNetworkFirst, StrategyCacheFirst:
	default:
		return nil, fmt.Errorf("invalid offline-strategy %q: must be %s or %s",
			cfg.OfflineStrategy, StrategyNetworkFirst, StrategyCacheFirst)
	}

	switch cfg.DefaultTheme {
	case "auto", "light", "dark":
	default:
		return nil, fmt.Errorf("invalid default-theme %q: must be auto, light, or dark", cfg.DefaultTheme)
	}

	if cfg.CacheVersion == "" {
		return nil, fmt.Errorf("cache-version must not be empty")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max-retries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return nil, fmt.Errorf("retry-max-delay %s is below retry-base-delay %s", cfg.RetryMaxDelay, cfg.RetryBaseDelay)
	}

	if _, err := url.Parse(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("parse api-base-url: %w", err)
	}
	if cfg.StaticOrigin != "" {
		u, err := url.Parse(cfg.StaticOrigin)
		if err != nil {
			return nil, fmt.Errorf("parse static-origin: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("static-origin must be http or https, got %q", cfg.StaticOrigin)
		}
	}

	cfg.ProxyPrefix = "/" + strings.Trim(cfg.ProxyPrefix, "/")

	return cfg, nil
}

// APIHost returns the origin host of the media API base URL, with the
// port kept unless it is the scheme's default. The offline worker never
// caches requests to it.
func (c *Config) APIHost() string {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return ""
	}
	switch {
	case u.Scheme == "https" && u.Port() == "443", u.Scheme == "http" && u.Port() == "80":
		return u.Hostname()
	}
	return u.Host
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseByteSize parses a human-readable byte size like "100MB", "5KB", "1GB".
func parseByteSize(s string) (int64, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty size string")
	}

	// Find where the numeric part ends
	i := 0
	for i < len(s) && ((s[i] >= '0' && s[i] <= '9') || s[i] == '.') {
		i++
	}

	numStr := s[:i]
	unit := s[i:]

	var num float64
	if _, err := fmt.Sscanf(numStr, "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	var multiplier int64
	switch unit {
	case "", "B":
		multiplier = 1
	case "KB", "kb":
		multiplier = 1024
	case "MB", "mb":
		multiplier = 1024 * 1024
	case "GB", "gb":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size unit %q in %q", unit, s)
	}

	return int64(num * float64(multiplier)), nil
}
