package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Jobs      JobsConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8001
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how Chromium is launched.
type BrowserConfig struct {
	// Headless is the default for requests that do not set it.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to every launched browser.
	// Format: "http://host:port" or "socks5://host:port".
	Proxy string

	// BlockedResourceTypes lists resource types the browser never loads.
	// Images and stylesheets stay enabled: the results feed needs layout
	// to lazy-load more entries.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// MaxSessions caps concurrently open browser sessions.
	MaxSessions int // default: 3
}

// ScraperConfig controls the search, scroll and visit loop.
type ScraperConfig struct {
	// NavigationTimeout bounds every page.Goto.
	NavigationTimeout time.Duration // default: 30s

	// ConsentTimeout bounds the wait for the cookie consent button.
	ConsentTimeout time.Duration // default: 5s

	// FeedTimeout bounds the wait for the results feed.
	FeedTimeout time.Duration // default: 15s

	// LinkReadTimeout bounds one read of the visible place links.
	LinkReadTimeout time.Duration // default: 5s

	// SettleTimeout bounds the network-idle wait on each place page.
	SettleTimeout time.Duration // default: 10s

	// ScrollPause is the pause after each feed scroll.
	ScrollPause time.Duration // default: 1.5s

	// MaxIdleScrolls ends the scroll loop after this many rounds in a row
	// without a new link.
	MaxIdleScrolls int // default: 5

	// PlaceDelayMin and PlaceDelayMax bound the random pause between
	// place visits.
	PlaceDelayMin time.Duration // default: 500ms
	PlaceDelayMax time.Duration // default: 1.5s

	// ScrapeTimeout is the overall deadline of one scrape call.
	ScrapeTimeout time.Duration // default: 5m

	DefaultLang      string // default: "en"
	DefaultMaxPlaces int    // default: 20
	MaxPlacesLimit   int    // default: 500
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	Enabled bool // default: true

	// MaxEntries is the maximum number of cached result lists.
	MaxEntries int // default: 500

	// TTL is how long a result list stays fresh.
	TTL time.Duration // default: 1h
}

// JobsConfig controls the async job manager.
type JobsConfig struct {
	// Retention is how long finished jobs stay queryable.
	Retention time.Duration // default: 24h

	// MaxBatchSize caps the number of queries in one batch.
	MaxBatchSize int // default: 50
}

// WebhookConfig controls job completion callbacks.
type WebhookConfig struct {
	// Secret signs webhook bodies. Empty disables the signature header.
	Secret string

	// Timeout bounds a single delivery attempt.
	Timeout time.Duration // default: 10s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("MAPSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("MAPSCOUT_PORT", 8001),
			Mode: envOr("MAPSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("MAPSCOUT_HEADLESS", true),
			NoSandbox:  envBoolOr("MAPSCOUT_NO_SANDBOX", false),
			BrowserBin: os.Getenv("MAPSCOUT_BROWSER_BIN"),
			Proxy:      os.Getenv("MAPSCOUT_PROXY"),
			BlockedResourceTypes: envSliceOr("MAPSCOUT_BLOCKED_RESOURCES", []string{
				"Font", "Media",
			}),
			MaxSessions: envIntOr("MAPSCOUT_MAX_SESSIONS", 3),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("MAPSCOUT_NAV_TIMEOUT", 30*time.Second),
			ConsentTimeout:    envDurationOr("MAPSCOUT_CONSENT_TIMEOUT", 5*time.Second),
			FeedTimeout:       envDurationOr("MAPSCOUT_FEED_TIMEOUT", 15*time.Second),
			LinkReadTimeout:   envDurationOr("MAPSCOUT_LINK_READ_TIMEOUT", 5*time.Second),
			SettleTimeout:     envDurationOr("MAPSCOUT_SETTLE_TIMEOUT", 10*time.Second),
			ScrollPause:       envDurationOr("MAPSCOUT_SCROLL_PAUSE", 1500*time.Millisecond),
			MaxIdleScrolls:    envIntOr("MAPSCOUT_MAX_IDLE_SCROLLS", 5),
			PlaceDelayMin:     envDurationOr("MAPSCOUT_PLACE_DELAY_MIN", 500*time.Millisecond),
			PlaceDelayMax:     envDurationOr("MAPSCOUT_PLACE_DELAY_MAX", 1500*time.Millisecond),
			ScrapeTimeout:     envDurationOr("MAPSCOUT_SCRAPE_TIMEOUT", 5*time.Minute),
			DefaultLang:       envOr("MAPSCOUT_DEFAULT_LANG", "en"),
			DefaultMaxPlaces:  envIntOr("MAPSCOUT_DEFAULT_MAX_PLACES", 20),
			MaxPlacesLimit:    envIntOr("MAPSCOUT_MAX_PLACES_LIMIT", 500),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("MAPSCOUT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("MAPSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("MAPSCOUT_RATE_RPS", 2.0),
			Burst:             envIntOr("MAPSCOUT_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			Enabled:    envBoolOr("MAPSCOUT_CACHE_ENABLED", true),
			MaxEntries: envIntOr("MAPSCOUT_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("MAPSCOUT_CACHE_TTL", time.Hour),
		},
		Jobs: JobsConfig{
			Retention:    envDurationOr("MAPSCOUT_JOB_RETENTION", 24*time.Hour),
			MaxBatchSize: envIntOr("MAPSCOUT_MAX_BATCH_SIZE", 50),
		},
		Webhook: WebhookConfig{
			Secret:  os.Getenv("MAPSCOUT_WEBHOOK_SECRET"),
			Timeout: envDurationOr("MAPSCOUT_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("MAPSCOUT_LOG_LEVEL", "info"),
			Format: envOr("MAPSCOUT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
