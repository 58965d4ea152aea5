// Package config loads runtime configuration from FOCUSFRIEND_* environment
// variables and the optional XP policy file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

// Config is the process configuration.
type Config struct {
	DB         string `env:"FOCUSFRIEND_DB"`
	PolicyFile string `env:"FOCUSFRIEND_POLICY_FILE"`
	Strictness string `env:"FOCUSFRIEND_STRICTNESS" envDefault:"balanced"`

	GracePeriod  time.Duration `env:"FOCUSFRIEND_GRACE_PERIOD" envDefault:"8s"`
	TickInterval time.Duration `env:"FOCUSFRIEND_TICK_INTERVAL" envDefault:"1s"`

	// RemoteAddr is the scorer of record. Empty runs fully local.
	RemoteAddr    string        `env:"FOCUSFRIEND_REMOTE_ADDR"`
	SyncInterval  time.Duration `env:"FOCUSFRIEND_SYNC_INTERVAL" envDefault:"60s"`
	SyncTimeout   time.Duration `env:"FOCUSFRIEND_SYNC_TIMEOUT" envDefault:"5s"`
	ScoreTimeout  time.Duration `env:"FOCUSFRIEND_SCORE_TIMEOUT" envDefault:"3s"`
	SyncRetention int           `env:"FOCUSFRIEND_SYNC_RETENTION" envDefault:"100"`

	ListenAddr   string `env:"FOCUSFRIEND_LISTEN_ADDR" envDefault:":7420"`
	UserID       string `env:"FOCUSFRIEND_USER_ID" envDefault:"local"`
	HistoryLimit int    `env:"FOCUSFRIEND_HISTORY_LIMIT" envDefault:"50"`

	// OTelEndpoint enables tracing when set.
	OTelEndpoint string `env:"FOCUSFRIEND_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment configuration.
func Load() (Config, error) {
	var c Config
	if err := ParseEnv(&c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges the env tags cannot express.
func (c Config) Validate() error {
	switch {
	case c.GracePeriod < 0:
		return fmt.Errorf("grace period must not be negative, got %s", c.GracePeriod)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	case c.SyncInterval <= 0:
		return fmt.Errorf("sync interval must be positive, got %s", c.SyncInterval)
	case c.SyncTimeout <= 0 || c.ScoreTimeout <= 0:
		return fmt.Errorf("sync and score timeouts must be positive")
	case c.SyncRetention < 0:
		return fmt.Errorf("sync retention must not be negative, got %d", c.SyncRetention)
	case c.UserID == "":
		return fmt.Errorf("user id is required")
	}
	return nil
}

// Policy builds the XP policy: the strictness preset, overlaid by the
// policy file when one is configured, with the history limit applied last.
func (c Config) Policy() (xp.Policy, error) {
	p, err := xp.PolicyFor(xp.Strictness(c.Strictness))
	if err != nil {
		return xp.Policy{}, err
	}
	if c.PolicyFile != "" {
		if p, err = xp.LoadPolicy(c.PolicyFile, p); err != nil {
			return xp.Policy{}, err
		}
	}
	if c.HistoryLimit > 0 {
		p.HistoryLimit = c.HistoryLimit
	}
	if err := p.Validate(); err != nil {
		return xp.Policy{}, err
	}
	return p, nil
}

// Remote reports whether a scorer of record is configured.
func (c Config) Remote() bool {
	return c.RemoteAddr != ""
}
