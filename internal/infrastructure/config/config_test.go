package config

import (
	"errors"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name  string
		wreck func(*Config)
		field string
	}{
		{"port too high", func(c *Config) { c.ProxyPort = 70000 }, "proxyPort"},
		{"negative port", func(c *Config) { c.ProxyPort = -1 }, "proxyPort"},
		{"zero budget", func(c *Config) { c.MaxSize = 0 }, "maxSize"},
		{"negative budget", func(c *Config) { c.MaxSize = -5 }, "maxSize"},
		{"zero window", func(c *Config) { c.WindowWidth = 0 }, "window"},
		{"zero nav timeout", func(c *Config) { c.NavTimeout = 0 }, "navTimeout"},
		{"zero idle window", func(c *Config) { c.IdleWindow = 0 }, "idleWindow"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.wreck(&cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	for _, ok := range []string{"https://example.com", "http://example.com/a?b=c", "https://example.com:8443/x"} {
		if err := ValidateURL(ok); err != nil {
			t.Fatalf("%q should validate: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "ftp://example.com", "file:///etc/passwd", "example.com", "https://"} {
		if err := ValidateURL(bad); err == nil {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}

func TestFromEnvOverlay(t *testing.T) {
	t.Setenv("SCOOP_PROXY_HOST", "0.0.0.0")
	t.Setenv("SCOOP_PROXY_PORT", "8899")
	t.Setenv("SCOOP_MAX_SIZE", "1048576")
	t.Setenv("SCOOP_HEADFUL", "1")
	t.Setenv("SCOOP_LOG_LEVEL", "debug")

	cfg := FromEnv()
	if cfg.ProxyHost != "0.0.0.0" || cfg.ProxyPort != 8899 {
		t.Fatalf("proxy env not applied: %s:%d", cfg.ProxyHost, cfg.ProxyPort)
	}
	if cfg.MaxSize != 1048576 {
		t.Fatalf("max size env not applied: %d", cfg.MaxSize)
	}
	if cfg.Headless {
		t.Fatalf("headful env not applied")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level env not applied: %s", cfg.LogLevel)
	}
}
