// Package config provides application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	Server      ServerConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Frankfurter FrankfurterConfig `mapstructure:"frankfurter"`
	Resilience  ResilienceConfig
	Cache       CacheConfig
	Worker      WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int  `mapstructure:"port"`
	ServeSwagger  bool `mapstructure:"serve_swagger"`
	ServeAsynqmon bool `mapstructure:"serve_asynqmon"`
}

// AuthConfig holds JWT issuance and validation settings.
type AuthConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	Audience    string `mapstructure:"audience"`
	TokenTTLMin int    `mapstructure:"token_ttl_min"`
}

// RedisConfig holds connection settings for the Redis instances.
// CacheAddr is optional: when empty the service uses in-memory caches.
type RedisConfig struct {
	CacheAddr string `mapstructure:"cache_addr"`
	AsynqAddr string `mapstructure:"asynq_addr"` // Redis instance for the Asynq task queue (required).
}

// FrankfurterConfig holds settings for the frankfurter provider.
type FrankfurterConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout_sec"`
}

// ResilienceConfig holds retry and circuit-breaker settings for upstream calls.
type ResilienceConfig struct {
	MaxAttempts        int `mapstructure:"max_attempts"`
	BackoffBaseSec     int `mapstructure:"backoff_base_sec"`
	BreakerFailures    int `mapstructure:"breaker_failures"`
	BreakerCooldownSec int `mapstructure:"breaker_cooldown_sec"`
}

// CacheConfig holds per-operation TTL policies, in minutes.
type CacheConfig struct {
	LatestSlidingMin      int `mapstructure:"latest_sliding_min"`
	LatestAbsoluteMin     int `mapstructure:"latest_absolute_min"`
	HistoricalSlidingMin  int `mapstructure:"historical_sliding_min"`
	HistoricalAbsoluteMin int `mapstructure:"historical_absolute_min"`
}

// WorkerConfig holds background refresh worker and task queue settings.
type WorkerConfig struct {
	Concurrency     int      `mapstructure:"concurrency"`
	MaxRetry        int      `mapstructure:"max_retry"`
	TimeoutSec      int      `mapstructure:"timeout_sec"`
	RefreshCron     string   `mapstructure:"refresh_cron"`
	RefreshProvider string   `mapstructure:"refresh_provider"`
	RefreshBases    []string `mapstructure:"refresh_bases"`
}

// LoadConfig reads configuration from config files, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or error loading it: %v\n", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Config search paths
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("./internal/config")

	viper.SetEnvPrefix("RATESVC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.serve_swagger", true)
	viper.SetDefault("server.serve_asynqmon", true)
	viper.SetDefault("auth.secret", "")
	viper.SetDefault("auth.issuer", "ratesvc")
	viper.SetDefault("auth.audience", "ratesvc-clients")
	viper.SetDefault("auth.token_ttl_min", 60)
	viper.SetDefault("redis.cache_addr", "")
	viper.SetDefault("redis.asynq_addr", "redis_asynq:6380")
	viper.SetDefault("frankfurter.base_url", "https://api.frankfurter.dev/v1")
	viper.SetDefault("frankfurter.timeout_sec", 90)
	viper.SetDefault("resilience.max_attempts", 5)
	viper.SetDefault("resilience.backoff_base_sec", 2)
	viper.SetDefault("resilience.breaker_failures", 3)
	viper.SetDefault("resilience.breaker_cooldown_sec", 30)
	viper.SetDefault("cache.latest_sliding_min", 5)
	viper.SetDefault("cache.latest_absolute_min", 60)
	viper.SetDefault("cache.historical_sliding_min", 10)
	viper.SetDefault("cache.historical_absolute_min", 120)
	viper.SetDefault("worker.concurrency", 1)
	viper.SetDefault("worker.max_retry", 3)
	viper.SetDefault("worker.timeout_sec", 120)
	viper.SetDefault("worker.refresh_cron", "@every 5m")
	viper.SetDefault("worker.refresh_provider", "frankfurter")
	viper.SetDefault("worker.refresh_bases", []string{"EUR", "USD"})

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if no config file, we have defaults and env
		fmt.Printf("Config file not found: %v\n", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are set and valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}

	if c.Auth.Secret == "" {
		errs = append(errs, fmt.Errorf("auth.secret is required (set RATESVC_AUTH_SECRET)"))
	}
	if c.Auth.TokenTTLMin <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl_min must be positive, got %d", c.Auth.TokenTTLMin))
	}

	if c.Redis.AsynqAddr == "" {
		errs = append(errs, fmt.Errorf("redis.asynq_addr is required (set RATESVC_REDIS_ASYNQ_ADDR)"))
	}

	if c.Frankfurter.BaseURL == "" {
		errs = append(errs, fmt.Errorf("frankfurter.base_url is required"))
	}
	if c.Frankfurter.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("frankfurter.timeout_sec must be positive, got %d", c.Frankfurter.Timeout))
	}

	if c.Resilience.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("resilience.max_attempts must be positive, got %d", c.Resilience.MaxAttempts))
	}
	if c.Resilience.BackoffBaseSec <= 0 {
		errs = append(errs, fmt.Errorf("resilience.backoff_base_sec must be positive, got %d", c.Resilience.BackoffBaseSec))
	}
	if c.Resilience.BreakerFailures <= 0 {
		errs = append(errs, fmt.Errorf("resilience.breaker_failures must be positive, got %d", c.Resilience.BreakerFailures))
	}
	if c.Resilience.BreakerCooldownSec <= 0 {
		errs = append(errs, fmt.Errorf("resilience.breaker_cooldown_sec must be positive, got %d", c.Resilience.BreakerCooldownSec))
	}

	if c.Cache.LatestSlidingMin <= 0 {
		errs = append(errs, fmt.Errorf("cache.latest_sliding_min must be positive, got %d", c.Cache.LatestSlidingMin))
	}
	if c.Cache.LatestAbsoluteMin <= 0 {
		errs = append(errs, fmt.Errorf("cache.latest_absolute_min must be positive, got %d", c.Cache.LatestAbsoluteMin))
	}
	if c.Cache.HistoricalSlidingMin <= 0 {
		errs = append(errs, fmt.Errorf("cache.historical_sliding_min must be positive, got %d", c.Cache.HistoricalSlidingMin))
	}
	if c.Cache.HistoricalAbsoluteMin <= 0 {
		errs = append(errs, fmt.Errorf("cache.historical_absolute_min must be positive, got %d", c.Cache.HistoricalAbsoluteMin))
	}

	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Worker.MaxRetry < 0 {
		errs = append(errs, fmt.Errorf("worker.max_retry must be non-negative, got %d", c.Worker.MaxRetry))
	}
	if c.Worker.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("worker.timeout_sec must be positive, got %d", c.Worker.TimeoutSec))
	}
	if c.Worker.RefreshCron == "" {
		errs = append(errs, fmt.Errorf("worker.refresh_cron is required"))
	}

	return errors.Join(errs...)
}
