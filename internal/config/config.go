package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "APD_"

// Config holds runtime settings for the HTTP service.
type Config struct {
	HTTPAddr            string        `koanf:"http_addr"`
	CORSOrigins         string        `koanf:"cors_origins"`
	SessionTTL          time.Duration `koanf:"session_ttl"`
	SessionCookie       string        `koanf:"session_cookie"`
	SessionCookieSecure bool          `koanf:"session_cookie_secure"`
	NonceTTL            time.Duration `koanf:"nonce_ttl"`
	LoginRatePerMinute  int           `koanf:"login_rate_per_minute"`
	LoginBurst          int           `koanf:"login_burst"`
	BcryptCost          int           `koanf:"bcrypt_cost"`
}

// Load reads APD_* environment variables into a Config.
//
//	APD_HTTP_ADDR         -> http_addr
//	APD_SESSION_TTL=30m   -> session_ttl
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = "0.0.0.0:8431"
	}
	if strings.TrimSpace(cfg.CORSOrigins) == "" {
		cfg.CORSOrigins = "*"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "apd_session"
	}
	if cfg.NonceTTL == 0 {
		cfg.NonceTTL = 3 * time.Second
	}
	if cfg.LoginRatePerMinute == 0 {
		cfg.LoginRatePerMinute = 30
	}
	if cfg.LoginBurst == 0 {
		cfg.LoginBurst = 10
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.SessionTTL < 0 || c.NonceTTL < 0 {
		return errors.New("session and nonce ttl must be positive")
	}
	if c.NonceTTL > time.Minute {
		return fmt.Errorf("nonce ttl %s is too long; nonces are meant to live seconds", c.NonceTTL)
	}
	if c.LoginRatePerMinute < 0 || c.LoginBurst < 0 {
		return errors.New("login rate limits must not be negative")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost %d out of range [4,31]", c.BcryptCost)
	}
	return nil
}

// AllowedOrigins splits the CSV origin list, falling back to "*".
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, part := range strings.Split(c.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
