// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// UpstreamConfig describes the LPSN site and how politely to call it.
type UpstreamConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxBodyBytes   int     `mapstructure:"max_body_bytes"`
}

// CrawlerConfig governs the species fan-out.
type CrawlerConfig struct {
	Concurrency         int `mapstructure:"concurrency"`
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// HeadlessConfig configures the headless rendering fetcher.
// With Enabled set, pages are fetched statically first and promoted to the
// browser when they look like script shells; Always skips the static fetch.
type HeadlessConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Always             bool   `mapstructure:"always"`
	MaxParallel        int    `mapstructure:"max_parallel"`
	NavTimeoutSec      int    `mapstructure:"nav_timeout_seconds"`
	ReadySelector      string `mapstructure:"ready_selector"`
	PromotionThreshold int    `mapstructure:"promotion_threshold"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LPSN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("upstream.base_url", "https://lpsn.dsmz.de")
	v.SetDefault("upstream.user_agent", "lpsn-scraper/0.1")
	v.SetDefault("upstream.respect_robots", false)
	v.SetDefault("upstream.rate_limit_rps", 0)
	v.SetDefault("upstream.rate_limit_burst", 1)
	v.SetDefault("upstream.max_body_bytes", 10*1024*1024)
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.fetch_timeout_seconds", 15)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.always", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.ready_selector", "body")
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "lpsn-scraper")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.RateLimitRPS < 0 {
		return fmt.Errorf("upstream.rate_limit_rps must be >= 0")
	}
	if c.Crawler.Concurrency < 0 {
		return fmt.Errorf("crawler.concurrency must be >= 0")
	}
	if c.Crawler.FetchTimeoutSeconds < 0 {
		return fmt.Errorf("crawler.fetch_timeout_seconds must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}

// RequestTimeout is the budget of one inbound API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// FetchTimeout bounds each upstream page fetch, retries included.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.FetchTimeoutSeconds) * time.Second
}

// HTTPTimeout bounds a single upstream HTTP attempt.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavigationTimeout bounds a single headless page load.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// Backoff returns the initial and maximum retry delays.
func (c Config) Backoff() (time.Duration, time.Duration) {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
