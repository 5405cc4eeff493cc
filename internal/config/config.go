// Package config loads vaultcache's configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment
// variables.
type Config struct {
	// Server
	Host string `env:"VAULTCACHE_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"VAULTCACHE_PORT" envDefault:"8080"`

	// Storage: where the durable auth store lives. Empty means the
	// in-memory backend is used instead.
	StorageDir string `env:"VAULTCACHE_STORAGE_DIR"`

	// InitialCredentialFile optionally seeds a single credential (as JSON)
	// at startup, mirroring a single-account deployment.
	InitialCredentialFile string `env:"VAULTCACHE_INITIAL_CREDENTIAL_FILE"`

	// EnableSingleAccount turns on the /summary, /master_data, /store
	// convenience endpoints, which serve one of the tracked accounts.
	EnableSingleAccount bool `env:"VAULTCACHE_ENABLE_SINGLE_ACCOUNT" envDefault:"true"`

	// Upstream
	UpstreamBaseURL string `env:"VAULTCACHE_UPSTREAM_BASE_URL,required"`
	AuthBaseURL     string `env:"VAULTCACHE_AUTH_BASE_URL,required"`

	// Logging
	LogLevel  string `env:"VAULTCACHE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"VAULTCACHE_LOG_FORMAT" envDefault:"json"`

	// CORS
	CORSAllowedOrigins []string `env:"VAULTCACHE_CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
