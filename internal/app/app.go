// Package app initializes and holds long-lived services, acting as the dependency injection container
// shared by every command.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/indicator-feed/internal/api"
	"github.com/JakeFAU/indicator-feed/internal/cache"
	"github.com/JakeFAU/indicator-feed/internal/cascade"
	"github.com/JakeFAU/indicator-feed/internal/catalog"
	"github.com/JakeFAU/indicator-feed/internal/clock/system"
	"github.com/JakeFAU/indicator-feed/internal/config"
	"github.com/JakeFAU/indicator-feed/internal/extract"
	collyfetcher "github.com/JakeFAU/indicator-feed/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/indicator-feed/internal/fetcher/headless"
	restyfetcher "github.com/JakeFAU/indicator-feed/internal/fetcher/resty"
	"github.com/JakeFAU/indicator-feed/internal/id/uuid"
	"github.com/JakeFAU/indicator-feed/internal/indicator"
	"github.com/JakeFAU/indicator-feed/internal/orchestrator"
	"github.com/JakeFAU/indicator-feed/internal/policy/ratelimit"
	"github.com/JakeFAU/indicator-feed/internal/provenance"
	"github.com/JakeFAU/indicator-feed/internal/validator"
)

// Renderer is a headless fetcher that holds a browser allocator until closed.
type Renderer interface {
	indicator.Fetcher
	Close()
}

// newRenderer is swapped in tests so no browser is needed.
var newRenderer = func(cfg headlessfetcher.Config) (Renderer, error) {
	return headlessfetcher.NewChromedp(cfg)
}

// App holds the shared services built from one Config.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	feed     *orchestrator.Orchestrator
	renderer Renderer
}

// New builds every component of the fetch layer and wires them into an orchestrator.
// A headless renderer that fails to start is logged and skipped; indicators that need
// rendering then degrade to placeholders.
func New(_ context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initializing feed services",
		zap.String("http_client", cfg.HTTP.Client),
		zap.Int("proxies", len(cfg.Cascade.Proxies)),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
	)

	cat, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	picker, err := extract.PickerByName(cfg.Extract.Picker)
	if err != nil {
		return nil, fmt.Errorf("configure extractor: %w", err)
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}
	opts := []cascade.Option{
		cascade.WithLogger(logger),
		cascade.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RateLimit.ProxyRPS,
			DefaultBurst: cfg.RateLimit.ProxyBurst,
		})),
	}
	if cfg.Headless.Enabled {
		renderer, err := newRenderer(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
			WaitSelector:      cfg.Headless.WaitSelector,
			Settle:            cfg.Headless.Settle,
		})
		if err != nil {
			logger.Warn("headless renderer init failed", zap.Error(err))
		} else {
			a.renderer = renderer
			opts = append(opts, cascade.WithRenderer(renderer))
		}
	}

	fetcher, err := cascade.New(cascade.Config{
		Proxies:        cfg.Cascade.Proxies,
		AttemptTimeout: cfg.Cascade.AttemptTimeout,
		Headers:        cfg.RequestHeaders(),
	}, transport, validator.NewLength(cfg.Validator.MinJSONBytes, cfg.Validator.MinHTMLBytes), opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build cascade: %w", err)
	}

	clock := system.New()
	feed, err := orchestrator.New(orchestrator.Dependencies{
		Cascade: fetcher,
		Extractor: extract.New(
			extract.WithPicker(picker),
			extract.WithClock(clock),
			extract.WithWindow(cfg.Extract.KeywordWindow),
		),
		Resolver: provenance.New(clock),
		Cache:    cache.New(cfg.Cache.TTL, clock),
		Catalog:  cat,
		IDs:      uuid.New(),
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	a.feed = feed

	logger.Info("feed services initialized", zap.Strings("groups", cat.Names()))
	return a, nil
}

func newTransport(cfg config.Config) (indicator.Fetcher, error) {
	switch cfg.HTTP.Client {
	case "", "colly":
		return collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.Cascade.AttemptTimeout,
		}), nil
	case "resty":
		return restyfetcher.New(restyfetcher.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.Cascade.AttemptTimeout,
		}), nil
	default:
		return nil, errors.New("unknown http client: " + cfg.HTTP.Client)
	}
}

// Config returns the configuration the services were built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Orchestrator exposes the concrete orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.feed
}

// Feed returns the orchestrator as the surface the HTTP API and CLI consume.
func (a *App) Feed() api.Feed {
	return a.feed
}

// Close releases the headless browser, if any, and flushes the logger.
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
		a.renderer = nil
	}
	// Sync on a console logger fails with ENOTTY; nothing useful to do about it.
	_ = a.logger.Sync()
}
