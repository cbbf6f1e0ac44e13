package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/indicator-feed/internal/cascade"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %v", cfg.Cache.TTL)
	}
	if cfg.Cascade.AttemptTimeout != 10*time.Second {
		t.Fatalf("expected 10s attempt timeout, got %v", cfg.Cascade.AttemptTimeout)
	}
	if got, want := len(cfg.Cascade.Proxies), len(cascade.DefaultProxies()); got != want {
		t.Fatalf("expected %d default proxies, got %d", want, got)
	}
	if last := cfg.Cascade.Proxies[len(cfg.Cascade.Proxies)-1]; !last.Direct() {
		t.Fatalf("expected the direct entry last, got %+v", last)
	}
	if cfg.Validator.MinJSONBytes != 100 || cfg.Validator.MinHTMLBytes != 1000 {
		t.Fatalf("unexpected validator defaults: %+v", cfg.Validator)
	}
	if cfg.Extract.Picker != "largest" || cfg.Extract.KeywordWindow != 120 {
		t.Fatalf("unexpected extract defaults: %+v", cfg.Extract)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
  level: warn
cache:
  ttl: 90s
cascade:
  attempt_timeout: 3s
  proxies:
    - name: allorigins
      prefix: "https://api.allorigins.win/raw?url="
      encode: true
    - name: direct
http:
  client: resty
  user_agent: feed-test
validator:
  min_json_bytes: 10
  min_html_bytes: 20
headless:
  enabled: true
  max_parallel: 2
  nav_timeout: 30s
extract:
  picker: first
  keyword_window: 80
catalog:
  file: /etc/feed/catalog.yaml
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 90*time.Second || cfg.Cascade.AttemptTimeout != 3*time.Second {
		t.Fatalf("expected duration overrides to apply: %+v %+v", cfg.Cache, cfg.Cascade)
	}
	if len(cfg.Cascade.Proxies) != 2 || !cfg.Cascade.Proxies[0].Encode || !cfg.Cascade.Proxies[1].Direct() {
		t.Fatalf("expected proxy overrides to apply: %+v", cfg.Cascade.Proxies)
	}
	if cfg.HTTP.Client != "resty" || cfg.Extract.Picker != "first" {
		t.Fatalf("expected client and picker overrides: %+v %+v", cfg.HTTP, cfg.Extract)
	}
	if cfg.Headless.NavTimeout != 30*time.Second || cfg.Headless.MaxParallel != 2 {
		t.Fatalf("expected headless overrides: %+v", cfg.Headless)
	}
	if cfg.Catalog.File != "/etc/feed/catalog.yaml" {
		t.Fatalf("expected catalog file, got %q", cfg.Catalog.File)
	}
	if got := cfg.RequestHeaders().Get("User-Agent"); got != "feed-test" {
		t.Fatalf("expected user agent header, got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Cache:   CacheConfig{TTL: time.Minute},
		Cascade: CascadeConfig{AttemptTimeout: time.Second, Proxies: []cascade.Proxy{{Name: "direct"}}},
		HTTP:    HTTPConfig{Client: "colly"},
		Extract: ExtractConfig{Picker: "largest", KeywordWindow: 120},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "invalid ttl", mutate: func(c *Config) { c.Cache.TTL = 0 }, want: "cache.ttl"},
		{name: "invalid attempt timeout", mutate: func(c *Config) { c.Cascade.AttemptTimeout = 0 }, want: "cascade.attempt_timeout"},
		{name: "no proxies", mutate: func(c *Config) { c.Cascade.Proxies = nil }, want: "cascade.proxies"},
		{name: "unnamed proxy", mutate: func(c *Config) { c.Cascade.Proxies = []cascade.Proxy{{Prefix: "https://p/"}} }, want: "cascade.proxies[0].name"},
		{name: "unknown client", mutate: func(c *Config) { c.HTTP.Client = "curl" }, want: "http.client"},
		{name: "negative validator minimum", mutate: func(c *Config) { c.Validator.MinHTMLBytes = -1 }, want: "validator"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimit.ProxyRPS = -1 }, want: "ratelimit.proxy_rps"},
		{
			name: "headless missing max parallel",
			mutate: func(c *Config) {
				c.Headless.Enabled = true
				c.Headless.MaxParallel = 0
			},
			want: "headless.max_parallel",
		},
		{name: "unknown picker", mutate: func(c *Config) { c.Extract.Picker = "median" }, want: "extract.picker"},
		{name: "invalid window", mutate: func(c *Config) { c.Extract.KeywordWindow = 0 }, want: "extract.keyword_window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Cascade.Proxies = append([]cascade.Proxy(nil), base.Cascade.Proxies...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	h := Config{HTTP: HTTPConfig{UserAgent: "ua", AcceptLanguage: "ko-KR"}}.RequestHeaders()
	if h.Get("Accept-Language") != "ko-KR" || h.Get("Cache-Control") != "no-cache" {
		t.Fatalf("unexpected headers: %v", h)
	}
}
