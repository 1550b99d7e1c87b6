package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Site       SiteConfig
	Timing     TimingConfig
	Retrieval  RetrievalConfig
	UserAgents UserAgentConfig
	Auth       AuthConfig
	RunLimit   RunLimitConfig
	Cache      CacheConfig
	Jobs       JobConfig
	Log        LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions caps concurrently open browsing sessions.
	MaxSessions int // default: 4

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ViewportWidth and ViewportHeight size every session page.
	ViewportWidth  int // default: 1280
	ViewportHeight int // default: 800

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// SiteConfig locates the judgment search service.
type SiteConfig struct {
	// EntryURL is the search form.
	EntryURL string // default: "https://judgment.judicial.gov.tw/FJUD/default.aspx"

	// ResultBase resolves relative result and detail links.
	ResultBase string // default: "https://judgment.judicial.gov.tw/FJUD/"

	// Host resolves root-relative artifact links.
	Host string // default: "https://judgment.judicial.gov.tw"

	// FrameName is the name/id of the result frame.
	FrameName string // default: "iframe-data"

	// ResultsEndpoint is a substring of the result frame's URL.
	ResultsEndpoint string // default: "FJUD/data.aspx"
}

// TimingConfig bounds every wait in a browsing session.
type TimingConfig struct {
	// NavigationTimeout bounds loading the search form.
	NavigationTimeout time.Duration // default: 60s

	// DetailTimeout bounds loading a detail page and its root container.
	DetailTimeout time.Duration // default: 30s

	// FrameTimeout bounds discovering the result frame.
	FrameTimeout time.Duration // default: 20s

	// TitleTimeout bounds waiting for result titles to appear.
	TitleTimeout time.Duration // default: 20s

	// SearchSettle is the pause after submitting the query.
	SearchSettle time.Duration // default: 5s

	// NextSettle is the pause after clicking the next-page control.
	NextSettle time.Duration // default: 3s

	// RetrySettle is added per attempt while re-checking a transition.
	RetrySettle time.Duration // default: 2s

	// TransitionAttempts is how many snapshots are compared after a click.
	TransitionAttempts int // default: 3

	// NearDuplicateBits flags a new result page whose title fingerprint is
	// within this many bits of the previous page. 0 disables the check.
	NearDuplicateBits int // default: 3

	// PollInterval is the spacing of element-presence checks.
	PollInterval time.Duration // default: 250ms
}

// RetrievalConfig controls artifact downloads.
type RetrievalConfig struct {
	// Workers is the number of independent sessions fetching artifacts.
	// 1 keeps the pipeline strictly sequential.
	Workers int // default: 1

	// DownloadsPerSecond paces outbound artifact GETs.
	DownloadsPerSecond float64 // default: 2

	// DownloadBurst is the burst size of the download limiter.
	DownloadBurst int // default: 1

	// HTTPTimeout bounds one artifact GET.
	HTTPTimeout time.Duration // default: 60s

	// MaxArtifactBytes caps the size of a single artifact.
	MaxArtifactBytes int64 // default: 50 MB

	// TempDir is the parent of per-job download directories. Empty uses os.TempDir.
	TempDir string
}

// UserAgentConfig points at the line-delimited user-agent pool.
type UserAgentConfig struct {
	// File overrides the embedded pool.
	File string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RunLimitConfig caps how often one caller may start searches and
// downloads. Each run holds a browser session until it finishes.
type RunLimitConfig struct {
	// RunsPerMinute is the sustained rate of new runs per API key or IP.
	RunsPerMinute float64 // default: 6

	// Burst is how many runs a caller may start back to back.
	Burst int // default: 3
}

// CacheConfig controls the detail enrichment cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached detail pages.
	MaxEntries int // default: 5000

	// TTL is how long a cached detail page stays valid.
	TTL time.Duration // default: 1h
}

// JobConfig controls background job retention.
type JobConfig struct {
	// TTL is how long finished jobs stay queryable.
	TTL time.Duration // default: 1h
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
			Host: envOr("JUDFETCH_HOST", "0.0.0.0"),
			Port: envIntOr("JUDFETCH_PORT", 8080),
			Mode: envOr("JUDFETCH_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("JUDFETCH_HEADLESS", true),
			MaxSessions:    envIntOr("JUDFETCH_MAX_SESSIONS", 4),
			DefaultProxy:   os.Getenv("JUDFETCH_PROXY"),
			NoSandbox:      envBoolOr("JUDFETCH_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("JUDFETCH_BROWSER_BIN"),
			ViewportWidth:  envIntOr("JUDFETCH_VIEWPORT_WIDTH", 1280),
			ViewportHeight: envIntOr("JUDFETCH_VIEWPORT_HEIGHT", 800),
			BlockedResourceTypes: envSliceOr("JUDFETCH_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Site: SiteConfig{
			EntryURL:        envOr("JUDFETCH_ENTRY_URL", "https://judgment.judicial.gov.tw/FJUD/default.aspx"),
			ResultBase:      envOr("JUDFETCH_RESULT_BASE", "https://judgment.judicial.gov.tw/FJUD/"),
			Host:            envOr("JUDFETCH_SITE_HOST", "https://judgment.judicial.gov.tw"),
			FrameName:       envOr("JUDFETCH_FRAME_NAME", "iframe-data"),
			ResultsEndpoint: envOr("JUDFETCH_RESULTS_ENDPOINT", "FJUD/data.aspx"),
		},
		Timing: TimingConfig{
			NavigationTimeout:  envDurationOr("JUDFETCH_NAV_TIMEOUT", 60*time.Second),
			DetailTimeout:      envDurationOr("JUDFETCH_DETAIL_TIMEOUT", 30*time.Second),
			FrameTimeout:       envDurationOr("JUDFETCH_FRAME_TIMEOUT", 20*time.Second),
			TitleTimeout:       envDurationOr("JUDFETCH_TITLE_TIMEOUT", 20*time.Second),
			SearchSettle:       envDurationOr("JUDFETCH_SEARCH_SETTLE", 5*time.Second),
			NextSettle:         envDurationOr("JUDFETCH_NEXT_SETTLE", 3*time.Second),
			RetrySettle:        envDurationOr("JUDFETCH_RETRY_SETTLE", 2*time.Second),
			TransitionAttempts: envIntOr("JUDFETCH_TRANSITION_ATTEMPTS", 3),
			NearDuplicateBits:  envIntOr("JUDFETCH_NEAR_DUPLICATE_BITS", 3),
			PollInterval:       envDurationOr("JUDFETCH_POLL_INTERVAL", 250*time.Millisecond),
		},
		Retrieval: RetrievalConfig{
			Workers:            envIntOr("JUDFETCH_WORKERS", 1),
			DownloadsPerSecond: envFloatOr("JUDFETCH_DOWNLOAD_RPS", 2.0),
			DownloadBurst:      envIntOr("JUDFETCH_DOWNLOAD_BURST", 1),
			HTTPTimeout:        envDurationOr("JUDFETCH_HTTP_TIMEOUT", 60*time.Second),
			MaxArtifactBytes:   int64(envIntOr("JUDFETCH_MAX_ARTIFACT_BYTES", 50<<20)),
			TempDir:            os.Getenv("JUDFETCH_TEMP_DIR"),
		},
		UserAgents: UserAgentConfig{
			File: os.Getenv("JUDFETCH_USER_AGENTS_FILE"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("JUDFETCH_AUTH_ENABLED", true),
			APIKeys: envSliceOr("JUDFETCH_API_KEYS", nil),
		},
		RunLimit: RunLimitConfig{
			RunsPerMinute: envFloatOr("JUDFETCH_RUNS_PER_MINUTE", 6),
			Burst:         envIntOr("JUDFETCH_RUN_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("JUDFETCH_CACHE_MAX_ENTRIES", 5000),
			TTL:        envDurationOr("JUDFETCH_CACHE_TTL", time.Hour),
		},
		Jobs: JobConfig{
			TTL: envDurationOr("JUDFETCH_JOB_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("JUDFETCH_LOG_LEVEL", "info"),
			Format: envOr("JUDFETCH_LOG_FORMAT", "json"),
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
