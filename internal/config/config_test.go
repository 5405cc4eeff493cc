package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VAULTCACHE_UPSTREAM_BASE_URL", "https://api.example.internal")
	t.Setenv("VAULTCACHE_AUTH_BASE_URL", "https://auth.example.internal")

	tests := []struct {
		name   string
		check  func(*Config) bool
		expect string
	}{
		{
			name:   "default host is 0.0.0.0",
			check:  func(c *Config) bool { return c.Host == "0.0.0.0" },
			expect: "0.0.0.0",
		},
		{
			name:   "default port is 8080",
			check:  func(c *Config) bool { return c.Port == 8080 },
			expect: "8080",
		},
		{
			name:   "default log level is info",
			check:  func(c *Config) bool { return c.LogLevel == "info" },
			expect: "info",
		},
		{
			name:   "default log format is json",
			check:  func(c *Config) bool { return c.LogFormat == "json" },
			expect: "json",
		},
		{
			name:   "single account convenience endpoints default on",
			check:  func(c *Config) bool { return c.EnableSingleAccount },
			expect: "true",
		},
		{
			name:   "listen addr format",
			check:  func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" },
			expect: "0.0.0.0:8080",
		},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("expected %s", tt.expect)
			}
		})
	}
}

func TestLoadRequiresUpstreamURLs(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("Load() without upstream URLs set: got nil error, want error")
	}
}
