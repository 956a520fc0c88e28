// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// RedisURL is optional. Without it caching is disabled and truth score
	// recomputes run in-process.
	RedisURL       string        `env:"REDIS_URL"`
	CacheOpTimeout time.Duration `env:"CACHE_OP_TIMEOUT" envDefault:"250ms"`
	// CacheInMemory caches in process when no REDIS_URL is set. Single instance only.
	CacheInMemory bool `env:"CACHE_IN_MEMORY" envDefault:"false"`

	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"12h"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"false"`

	WorkerConcurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`
	LocalQueueSize    int `env:"LOCAL_QUEUE_SIZE" envDefault:"256"`

	Logging   LoggingConfig
	Inventory InventoryConfig
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// InventoryConfig holds the hotel inventory provider settings
type InventoryConfig struct {
	APIKey  string `env:"INVENTORY_API_KEY"`
	BaseURL string `env:"INVENTORY_BASE_URL" envDefault:"https://api.stayprovider.example"`
}

// Load reads configuration from environment variables, after loading a .env
// file if one exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks values env.Parse cannot
func (c *Config) Validate() error {
	if c.WorkerConcurrency < 1 {
		return errors.New("WORKER_CONCURRENCY must be positive")
	}
	if c.LocalQueueSize < 1 {
		return errors.New("LOCAL_QUEUE_SIZE must be positive")
	}
	if c.CacheOpTimeout <= 0 {
		return errors.New("CACHE_OP_TIMEOUT must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return errors.New("LOG_FORMAT must be one of: json, console")
	}

	if c.RedisURL != "" {
		if _, err := c.AsynqRedis(); err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
	}
	return nil
}

// CachingEnabled reports whether a Redis backing store is configured
func (c *Config) CachingEnabled() bool {
	return c.RedisURL != ""
}

// HasInventory reports whether the inventory provider is configured
func (c *Config) HasInventory() bool {
	return c.Inventory.APIKey != ""
}

// AsynqRedis returns the asynq connection options for RedisURL
func (c *Config) AsynqRedis() (asynq.RedisConnOpt, error) {
	return asynq.ParseRedisURI(c.RedisURL)
}
