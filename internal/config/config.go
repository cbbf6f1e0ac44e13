// Package config loads and validates feed configuration via Viper.
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/indicator-feed/internal/cascade"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Cascade   CascadeConfig   `mapstructure:"cascade"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Validator ValidatorConfig `mapstructure:"validator"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CacheConfig sets how long a group's readings are served from memory.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// CascadeConfig lists the proxies tried, in order, for every target URL.
type CascadeConfig struct {
	AttemptTimeout time.Duration   `mapstructure:"attempt_timeout"`
	Proxies        []cascade.Proxy `mapstructure:"proxies"`
}

// HTTPConfig picks the attempt transport and the headers it sends.
type HTTPConfig struct {
	Client         string `mapstructure:"client"`
	UserAgent      string `mapstructure:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language"`
}

// ValidatorConfig sets the minimum payload sizes accepted per kind.
type ValidatorConfig struct {
	MinJSONBytes int `mapstructure:"min_json_bytes"`
	MinHTMLBytes int `mapstructure:"min_html_bytes"`
}

// RateLimitConfig throttles attempts per proxy host. A zero rate disables it.
type RateLimitConfig struct {
	ProxyRPS   float64 `mapstructure:"proxy_rps"`
	ProxyBurst int     `mapstructure:"proxy_burst"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxParallel  int           `mapstructure:"max_parallel"`
	NavTimeout   time.Duration `mapstructure:"nav_timeout"`
	WaitSelector string        `mapstructure:"wait_selector"`
	Settle       time.Duration `mapstructure:"settle"`
}

// ExtractConfig tunes the HTML value extractor.
type ExtractConfig struct {
	Picker        string `mapstructure:"picker"`
	KeywordWindow int    `mapstructure:"keyword_window"`
}

// CatalogConfig points at an optional YAML catalog replacing the built-in one.
type CatalogConfig struct {
	File string `mapstructure:"file"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FEED")
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
	v.SetDefault("server.request_timeout", 3*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cascade.attempt_timeout", 10*time.Second)
	v.SetDefault("cascade.proxies", cascade.DefaultProxies())
	v.SetDefault("http.client", "colly")
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("http.accept_language", "en-US,en;q=0.9")
	v.SetDefault("validator.min_json_bytes", 100)
	v.SetDefault("validator.min_html_bytes", 1000)
	v.SetDefault("ratelimit.proxy_rps", 2.0)
	v.SetDefault("ratelimit.proxy_burst", 4)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout", 45*time.Second)
	v.SetDefault("headless.wait_selector", "body")
	v.SetDefault("headless.settle", 500*time.Millisecond)
	v.SetDefault("extract.picker", "largest")
	v.SetDefault("extract.keyword_window", 120)
	v.SetDefault("catalog.file", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}
	if c.Cascade.AttemptTimeout <= 0 {
		return fmt.Errorf("cascade.attempt_timeout must be > 0")
	}
	if len(c.Cascade.Proxies) == 0 {
		return fmt.Errorf("cascade.proxies must list at least one entry")
	}
	for i, p := range c.Cascade.Proxies {
		if p.Name == "" {
			return fmt.Errorf("cascade.proxies[%d].name must be set", i)
		}
	}
	switch c.HTTP.Client {
	case "colly", "resty":
	default:
		return fmt.Errorf("http.client must be colly or resty, got %q", c.HTTP.Client)
	}
	if c.Validator.MinJSONBytes < 0 || c.Validator.MinHTMLBytes < 0 {
		return fmt.Errorf("validator minimums must be >= 0")
	}
	if c.RateLimit.ProxyRPS < 0 {
		return fmt.Errorf("ratelimit.proxy_rps must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Extract.Picker {
	case "", "largest", "first":
	default:
		return fmt.Errorf("extract.picker must be largest or first, got %q", c.Extract.Picker)
	}
	if c.Extract.KeywordWindow <= 0 {
		return fmt.Errorf("extract.keyword_window must be > 0")
	}
	return nil
}

// RequestHeaders returns the browser-like headers sent with every attempt.
func (c Config) RequestHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7")
	h.Set("Cache-Control", "no-cache")
	if c.HTTP.UserAgent != "" {
		h.Set("User-Agent", c.HTTP.UserAgent)
	}
	if c.HTTP.AcceptLanguage != "" {
		h.Set("Accept-Language", c.HTTP.AcceptLanguage)
	}
	return h
}
