package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config enumerates every recognized capture option with its type and
// default. Unknown options are rejected at the CLI/env boundary rather than
// silently dropped; components consume a validated Config as a frozen record.
type Config struct {
	// Proxy bind address for the intercepting transport.
	ProxyHost string `json:"proxyHost"`
	ProxyPort int    `json:"proxyPort"`

	// Browser settings.
	Headless     bool   `json:"headless"`
	ChromePath   string `json:"chromePath,omitempty"`
	WindowWidth  int    `json:"windowWidth"`
	WindowHeight int    `json:"windowHeight"`

	// Total-size budget in bytes across all raw exchange buffers.
	MaxSize int64 `json:"maxSize"`

	// Per-step timeouts.
	NavTimeout        time.Duration `json:"navTimeout"`
	BehaviorTimeout   time.Duration `json:"behaviorTimeout"`
	ScrollTimeout     time.Duration `json:"scrollTimeout"`
	ScreenshotTimeout time.Duration `json:"screenshotTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"`
	// Quiet window the network must hold for the idle wait to succeed.
	IdleWindow time.Duration `json:"idleWindow"`

	// Capture step toggles.
	RunBehaviors  bool `json:"runBehaviors"`
	GrabSecondary bool `json:"grabSecondary"`
	Autoplay      bool `json:"autoplay"`
	SiteSpecific  bool `json:"siteSpecific"`
	AutoScroll    bool `json:"autoScroll"`
	Screenshot    bool `json:"screenshot"`
	// Surface the screenshot as a navigable page in the archive.
	ScreenshotEntryPoint bool `json:"screenshotEntryPoint"`

	// Export options.
	IncludeRaw        bool `json:"includeRaw"`
	ProvenanceSummary bool `json:"provenanceSummary"`

	LogLevel string `json:"logLevel"`
}

// Defaults returns the baseline configuration every capture starts from.
func Defaults() Config {
	return Config{
		ProxyHost:            "127.0.0.1",
		ProxyPort:            0, // pick a free port
		Headless:             true,
		WindowWidth:          1440,
		WindowHeight:         900,
		MaxSize:              200 << 20, // 200MB
		NavTimeout:           30 * time.Second,
		BehaviorTimeout:      45 * time.Second,
		ScrollTimeout:        20 * time.Second,
		ScreenshotTimeout:    15 * time.Second,
		IdleTimeout:          30 * time.Second,
		IdleWindow:           2 * time.Second,
		RunBehaviors:         true,
		GrabSecondary:        true,
		Autoplay:             false,
		SiteSpecific:         true,
		AutoScroll:           true,
		Screenshot:           true,
		ScreenshotEntryPoint: true,
		IncludeRaw:           true,
		ProvenanceSummary:    true,
		LogLevel:             "info",
	}
}

// FromEnv overlays environment variables onto the defaults.
func FromEnv() Config {
	cfg := Defaults()
	cfg.ProxyHost = getEnv("SCOOP_PROXY_HOST", cfg.ProxyHost)
	cfg.ProxyPort = getEnvInt("SCOOP_PROXY_PORT", cfg.ProxyPort)
	cfg.ChromePath = getEnv("SCOOP_CHROME_PATH", cfg.ChromePath)
	cfg.LogLevel = getEnv("SCOOP_LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("SCOOP_MAX_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxSize = n
		}
	}
	if os.Getenv("SCOOP_HEADFUL") == "1" || os.Getenv("SCOOP_HEADFUL") == "true" {
		cfg.Headless = false
	}
	return cfg
}

// ValidationError reports a rejected option before any resource is acquired.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the configuration as a whole.
func (c Config) Validate() error {
	if c.ProxyPort < 0 || c.ProxyPort > 65535 {
		return &ValidationError{Field: "proxyPort", Reason: fmt.Sprintf("port out of range: %d", c.ProxyPort)}
	}
	if c.MaxSize <= 0 {
		return &ValidationError{Field: "maxSize", Reason: "must be positive"}
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return &ValidationError{Field: "window", Reason: "dimensions must be positive"}
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"navTimeout", c.NavTimeout},
		{"behaviorTimeout", c.BehaviorTimeout},
		{"scrollTimeout", c.ScrollTimeout},
		{"screenshotTimeout", c.ScreenshotTimeout},
		{"idleTimeout", c.IdleTimeout},
		{"idleWindow", c.IdleWindow},
	} {
		if t.d <= 0 {
			return &ValidationError{Field: t.name, Reason: "must be positive"}
		}
	}
	return nil
}

// ValidateURL accepts only absolute http(s) URLs as capture targets.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "url", Reason: "missing host"}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
