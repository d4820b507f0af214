package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "ac360/backend/libs/config"
)

const (
	defaultPort     = "8090"
	defaultTimezone = "America/Chicago"
)

// Config defines hourly cache service configuration.
type Config struct {
	HTTP struct {
		Port      string `yaml:"port" env:"HOURLY_HTTP_PORT"`
		RateLimit int    `yaml:"rateLimitPerMinute" env:"HOURLY_RATE_LIMIT"`
	} `yaml:"http"`
	Database struct {
		DSN     string `yaml:"dsn" env:"HOURLY_POSTGRES_DSN"`
		Migrate bool   `yaml:"migrate" env:"HOURLY_POSTGRES_MIGRATE"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"HOURLY_REDIS_ADDR"`
		Password string `yaml:"password" env:"HOURLY_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"HOURLY_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"HOURLY_REDIS_TTL"`
	} `yaml:"redis"`
	Cache struct {
		Timezone         string `yaml:"timezone" env:"HOURLY_TIMEZONE"`
		DebounceMs       int    `yaml:"debounceMs" env:"HOURLY_DEBOUNCE_MS"`
		RunTimeoutSec    int    `yaml:"runTimeoutSeconds" env:"HOURLY_RUN_TIMEOUT"`
		WriteConcurrency int    `yaml:"writeConcurrency" env:"HOURLY_WRITE_CONCURRENCY"`
	} `yaml:"cache"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret" env:"HOURLY_JWT_SECRET"`
	} `yaml:"auth"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = defaultPort
	cfg.HTTP.RateLimit = 120
	cfg.Database.Migrate = true
	cfg.Cache.Timezone = defaultTimezone
	cfg.Cache.DebounceMs = 2000
	cfg.Cache.RunTimeoutSec = 30
	cfg.Cache.WriteConcurrency = 8

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Redis.DB < 0 {
		return errors.New("config: redis db must not be negative")
	}
	if c.Cache.WriteConcurrency < 0 {
		return errors.New("config: write concurrency must not be negative")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// Location resolves the plant time zone used for day and hour boundaries.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Cache.Timezone)
	if name == "" {
		name = defaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", name, err)
	}
	return loc, nil
}

// RedisEnabled reports whether the redis mirror is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// MirrorTTL returns ttl as duration; zero means no expiry.
func (c *Config) MirrorTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 0
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// DebounceDelay returns the trigger coalescing window.
func (c *Config) DebounceDelay() time.Duration {
	if c.Cache.DebounceMs <= 0 {
		return 0
	}
	return time.Duration(c.Cache.DebounceMs) * time.Millisecond
}

// RunTimeout bounds a single debounced recalculation.
func (c *Config) RunTimeout() time.Duration {
	if c.Cache.RunTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Cache.RunTimeoutSec) * time.Second
}
