package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Browser   BrowserConfig   `yaml:"browser"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Retry     RetryConfig     `yaml:"retry"`
	Batch     BatchConfig     `yaml:"batch"`
	Cache     CacheConfig     `yaml:"cache"`
	Sink      SinkConfig      `yaml:"sink"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// SiteConfig describes the target portal.
type SiteConfig struct {
	// EntryURL is the page each session starts from.
	EntryURL string `yaml:"entry_url"`

	// QuickLinkLabels are link texts that lead from the landing page to the
	// arrest search. Followed softly.
	QuickLinkLabels []string `yaml:"quick_link_labels"`

	// JSONURLPattern selects which data requests are intercepted and whose
	// JSON responses are buffered for the interception strategy.
	// Case-insensitive regular expression; empty disables interception.
	JSONURLPattern string `yaml:"json_url_pattern"`
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`

	// Proxy is the proxy URL for all browser traffic.
	Proxy string `yaml:"proxy"`

	// Stealth masks navigator.webdriver and friends on every page.
	Stealth bool `yaml:"stealth"` // default: true

	// UserAgent, viewport, locale and timezone present a realistic desktop.
	UserAgent      string `yaml:"user_agent"`
	ViewportWidth  int    `yaml:"viewport_width"`  // default: 1920
	ViewportHeight int    `yaml:"viewport_height"` // default: 1080
	Locale         string `yaml:"locale"`          // default: "en-US"
	Timezone       string `yaml:"timezone"`        // default: "America/New_York"
}

// ScraperConfig controls one session's timing.
type ScraperConfig struct {
	// NavigationTimeout is the max time for page.Navigate and the load wait.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 30s

	// SessionTimeout bounds a whole attempt for one date.
	SessionTimeout time.Duration `yaml:"session_timeout"` // default: 120s

	// ActionTimeout is the per-interaction deadline (click, fill, eval).
	ActionTimeout time.Duration `yaml:"action_timeout"` // default: 3s

	// ClickTimeout is the short deadline for pagination clicks.
	ClickTimeout time.Duration `yaml:"click_timeout"` // default: 2s

	// PageSettle is the pause after each pagination click.
	PageSettle time.Duration `yaml:"page_settle"` // default: 800ms

	// SubmitSettle is the pause before extraction once the search fired.
	SubmitSettle time.Duration `yaml:"submit_settle"` // default: 1.5s

	// NoSubmitWait is the extra pause when no submit action could be sent.
	NoSubmitWait time.Duration `yaml:"no_submit_wait"` // default: 1s

	// MaxPages caps pagination clicks per session.
	MaxPages int `yaml:"max_pages"` // default: 50

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`
}

// RetryConfig controls whole-session retries on timeouts.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`     // default: 3
	InitialInterval time.Duration `yaml:"initial_interval"` // default: 1s
	MaxInterval     time.Duration `yaml:"max_interval"`     // default: 6s
}

// BatchConfig controls date iteration.
type BatchConfig struct {
	// Pause is the minimum spacing between consecutive dates.
	Pause time.Duration `yaml:"pause"` // default: 500ms
}

// CacheConfig controls the per-date result cache used by the HTTP trigger.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"` // default: 64
	TTL        time.Duration `yaml:"ttl"`         // default: 15m; 0 disables
}

// SinkConfig selects and configures the tabular sink.
type SinkConfig struct {
	// Backend is "sqlite" or "mongo".
	Backend string `yaml:"backend"` // default: "sqlite"

	// Destination names the table/collection written to.
	Destination string `yaml:"destination"` // default: "Sarasota County"

	// Mode is "replace" or "append".
	Mode string `yaml:"mode"` // default: "replace"

	SQLitePath    string `yaml:"sqlite_path"`    // default: "blotter.db"
	MongoURI      string `yaml:"mongo_uri"`      // default: "mongodb://localhost:27017"
	MongoDatabase string `yaml:"mongo_database"` // default: "blotter"
}

// WebhookConfig controls run-completed notifications.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// ServerConfig controls the HTTP trigger.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: false

	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 0.2
	Burst             int     `yaml:"burst"`               // default: 1
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "text"
}

// DefaultEntryURL is the Sarasota County Sheriff's arrest search.
const DefaultEntryURL = "https://www.sarasotasheriff.org/arrest-reports/index.php"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Site: SiteConfig{
			EntryURL: envOr("BLOTTER_ENTRY_URL", DefaultEntryURL),
			QuickLinkLabels: envSliceOr("BLOTTER_QUICK_LINKS", []string{
				"Arrests & Inmates", "Arrests & Inmates Search", "Arrest Inquiry",
			}),
			JSONURLPattern: envOr("BLOTTER_JSON_URL_PATTERN", "arrest|inmate|search|booking"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("BLOTTER_HEADLESS", true),
			NoSandbox:      envBoolOr("BLOTTER_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("BLOTTER_BROWSER_BIN"),
			Proxy:          os.Getenv("BLOTTER_PROXY"),
			Stealth:        envBoolOr("BLOTTER_STEALTH", true),
			UserAgent:      envOr("BLOTTER_USER_AGENT", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			ViewportWidth:  envIntOr("BLOTTER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envIntOr("BLOTTER_VIEWPORT_HEIGHT", 1080),
			Locale:         envOr("BLOTTER_LOCALE", "en-US"),
			Timezone:       envOr("BLOTTER_TIMEZONE", "America/New_York"),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("BLOTTER_NAV_TIMEOUT", 30*time.Second),
			SessionTimeout:    envDurationOr("BLOTTER_SESSION_TIMEOUT", 120*time.Second),
			ActionTimeout:     envDurationOr("BLOTTER_ACTION_TIMEOUT", 3*time.Second),
			ClickTimeout:      envDurationOr("BLOTTER_CLICK_TIMEOUT", 2*time.Second),
			PageSettle:        envDurationOr("BLOTTER_PAGE_SETTLE", 800*time.Millisecond),
			SubmitSettle:      envDurationOr("BLOTTER_SUBMIT_SETTLE", 1500*time.Millisecond),
			NoSubmitWait:      envDurationOr("BLOTTER_NO_SUBMIT_WAIT", time.Second),
			MaxPages:          envIntOr("BLOTTER_MAX_PAGES", 50),
			BlockedResourceTypes: envSliceOr("BLOTTER_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Retry: RetryConfig{
			MaxAttempts:     envIntOr("BLOTTER_RETRY_ATTEMPTS", 3),
			InitialInterval: envDurationOr("BLOTTER_RETRY_INITIAL", time.Second),
			MaxInterval:     envDurationOr("BLOTTER_RETRY_MAX", 6*time.Second),
		},
		Batch: BatchConfig{
			Pause: envDurationOr("BLOTTER_DATE_PAUSE", 500*time.Millisecond),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("BLOTTER_CACHE_ENTRIES", 64),
			TTL:        envDurationOr("BLOTTER_CACHE_TTL", 15*time.Minute),
		},
		Sink: SinkConfig{
			Backend:       envOr("BLOTTER_SINK", "sqlite"),
			Destination:   envOr("BLOTTER_SINK_DESTINATION", "Sarasota County"),
			Mode:          envOr("BLOTTER_SINK_MODE", "replace"),
			SQLitePath:    envOr("BLOTTER_SQLITE_PATH", "blotter.db"),
			MongoURI:      envOr("BLOTTER_MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: envOr("BLOTTER_MONGO_DATABASE", "blotter"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("BLOTTER_WEBHOOK_URL"),
			Secret: os.Getenv("BLOTTER_WEBHOOK_SECRET"),
		},
		Server: ServerConfig{
			Host: envOr("BLOTTER_HOST", "0.0.0.0"),
			Port: envIntOr("BLOTTER_PORT", 8080),
			Mode: envOr("BLOTTER_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("BLOTTER_AUTH_ENABLED", false),
			APIKeys: envSliceOr("BLOTTER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("BLOTTER_RATE_RPS", 0.2),
			Burst:             envIntOr("BLOTTER_RATE_BURST", 1),
		},
		Log: LogConfig{
			Level:  envOr("BLOTTER_LOG_LEVEL", "info"),
			Format: envOr("BLOTTER_LOG_FORMAT", "text"),
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
