// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// PoolConfig sizes the worker-process pool. A Workers value of zero
// means one worker per logical CPU.
type PoolConfig struct {
	Workers int `mapstructure:"workers"`
}

// CrawlerConfig governs the per-job fetch pipeline inside a worker.
type CrawlerConfig struct {
	MaxDepth          int    `mapstructure:"max_depth"`
	PageConcurrency   int    `mapstructure:"page_concurrency"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the chromium rendering subsystem.
type HeadlessConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MaxParallel int  `mapstructure:"max_parallel"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from environment variables and an optional file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Compatibility with the plain HOST/PORT contract.
	if err := v.BindEnv("server.host", "CRAWLER_SERVER_HOST", "HOST"); err != nil {
		return Config{}, fmt.Errorf("bind host env: %w", err)
	}
	if err := v.BindEnv("server.port", "CRAWLER_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("pool.workers", 0)
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.page_concurrency", 16)
	v.SetDefault("crawler.nav_timeout_seconds", 30)
	v.SetDefault("crawler.user_agent", "textcrawler/0.1")
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 16)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be >= 0")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.PageConcurrency <= 0 {
		return fmt.Errorf("crawler.page_concurrency must be > 0")
	}
	if c.Crawler.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.nav_timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	return nil
}

// WorkerCount resolves the pool size, defaulting to the host's logical
// core count.
func (c Config) WorkerCount() int {
	if c.Pool.Workers > 0 {
		return c.Pool.Workers
	}
	return runtime.NumCPU()
}

// NavTimeout returns the per-page navigation timeout as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Crawler.NavTimeoutSeconds) * time.Second
}

// ListenAddr joins host and port for http.Server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
