// Package config loads client and shell settings from CONTEST_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/and161185/contest-shell/internal/storage"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIURL         string        `env:"CONTEST_API_URL" envDefault:"http://localhost:8080/api"`
	ConfigDir      string        `env:"CONTEST_CONFIG_DIR"` // empty means storage.DefaultDir()
	RequestTimeout time.Duration `env:"CONTEST_REQUEST_TIMEOUT" envDefault:"30s"`
	ToastTTL       time.Duration `env:"CONTEST_TOAST_TTL" envDefault:"4s"`
	PageSize       int           `env:"CONTEST_PAGE_SIZE" envDefault:"6"`
	ShellAddr      string        `env:"CONTEST_SHELL_ADDR" envDefault:"localhost:3000"`
	LogLevel       string        `env:"CONTEST_LOG_LEVEL" envDefault:"info"`
	Dev            bool          `env:"CONTEST_DEV" envDefault:"false"`

	// Shell login throttling
	LoginMaxFails int           `env:"CONTEST_LOGIN_MAX_FAILS" envDefault:"5"` // 0 disables
	LoginWindow   time.Duration `env:"CONTEST_LOGIN_WINDOW" envDefault:"15m"`
	LoginBlock    time.Duration `env:"CONTEST_LOGIN_BLOCK" envDefault:"15m"`
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = storage.DefaultDir()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CONTEST_API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("CONTEST_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.LoginMaxFails < 0 {
		return fmt.Errorf("CONTEST_LOGIN_MAX_FAILS must not be negative, got %d", c.LoginMaxFails)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("CONTEST_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	return nil
}
