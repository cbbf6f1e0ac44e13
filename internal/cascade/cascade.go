// Package cascade fetches a target URL through an ordered list of CORS proxies,
// moving to the next entry whenever an attempt fails or its payload is rejected.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
	"github.com/JakeFAU/indicator-feed/internal/metrics"
)

// DefaultAttemptTimeout bounds a single proxy attempt.
const DefaultAttemptTimeout = 10 * time.Second

// Limiter throttles attempts per proxy host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls cascade behavior.
type Config struct {
	Proxies        []Proxy
	AttemptTimeout time.Duration
	// Headers are sent with every attempt.
	Headers http.Header
}

// Result is the accepted payload plus the attempts it took to get it.
type Result struct {
	Body     []byte
	Proxy    string
	URL      string
	Attempts []indicator.FetchAttempt
}

// Fetcher runs the proxy cascade.
type Fetcher struct {
	cfg       Config
	transport indicator.Fetcher
	renderer  indicator.Fetcher
	validator indicator.Validator
	limiter   Limiter
	logger    *zap.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithRenderer sets the transport used for descriptors that need JavaScript rendering.
func WithRenderer(renderer indicator.Fetcher) Option {
	return func(f *Fetcher) {
		f.renderer = renderer
	}
}

// WithLimiter throttles attempts per proxy host.
func WithLimiter(limiter Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = limiter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New builds a cascade Fetcher.
func New(cfg Config, transport indicator.Fetcher, validator indicator.Validator, opts ...Option) (*Fetcher, error) {
	if transport == nil {
		return nil, errors.New("cascade: transport is required")
	}
	if validator == nil {
		return nil, errors.New("cascade: validator is required")
	}
	if len(cfg.Proxies) == 0 {
		return nil, errors.New("cascade: at least one proxy entry is required")
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	cfg.Proxies = append([]Proxy(nil), cfg.Proxies...)
	f := &Fetcher{
		cfg:       cfg,
		transport: transport,
		validator: validator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.Named("cascade")
	return f, nil
}

// Proxies returns a copy of the configured proxy order.
func (f *Fetcher) Proxies() []Proxy {
	return append([]Proxy(nil), f.cfg.Proxies...)
}

// FetchRaw walks the proxy list once, in order, and returns the first payload that
// passes validation. It returns indicator.ErrAllProxiesExhausted when none does.
// Descriptors with Render set go through the renderer, waiting on their WaitSelector hint.
func (f *Fetcher) FetchRaw(ctx context.Context, target string, d indicator.Descriptor) (Result, error) {
	transport := f.transport
	req := indicator.FetchRequest{Headers: f.cfg.Headers, Timeout: f.cfg.AttemptTimeout}
	if d.Render && f.renderer != nil {
		transport = f.renderer
		req.WaitSelector = d.Hints.WaitSelector
	}
	attempts := make([]indicator.FetchAttempt, 0, len(f.cfg.Proxies))
	var lastErr error
	for i := 0; i < len(f.cfg.Proxies); i++ {
		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("cascade canceled: %w", err)
			break
		}
		proxy := f.cfg.Proxies[i]
		attempt, body := f.attempt(ctx, transport, proxy, target, d.Kind, req)
		attempts = append(attempts, attempt)
		metrics.ObserveCascadeAttempt(proxy.Name, string(attempt.Outcome), attempt.Latency)
		if attempt.Err == nil {
			metrics.ObservePayload(target, len(body))
			f.logger.Debug("attempt accepted",
				zap.String("proxy", proxy.Name),
				zap.String("target", target),
				zap.Int("attempt", i+1),
				zap.Int("bytes", len(body)),
				zap.Duration("latency", attempt.Latency),
			)
			return Result{Body: body, Proxy: proxy.Name, URL: attempt.URL, Attempts: attempts}, nil
		}
		lastErr = attempt.Err
		f.logger.Debug("attempt failed",
			zap.String("proxy", proxy.Name),
			zap.String("target", target),
			zap.Int("attempt", i+1),
			zap.String("outcome", string(attempt.Outcome)),
			zap.Duration("latency", attempt.Latency),
			zap.Error(attempt.Err),
		)
	}

	metrics.ObserveCascadeExhausted()
	f.logger.Warn("all proxies exhausted",
		zap.String("target", target),
		zap.Int("attempts", len(attempts)),
		zap.Error(lastErr),
	)
	return Result{Attempts: attempts}, fmt.Errorf("%w after %d attempts: %w", indicator.ErrAllProxiesExhausted, len(attempts), lastErr)
}

func (f *Fetcher) attempt(
	ctx context.Context,
	transport indicator.Fetcher,
	proxy Proxy,
	target string,
	kind indicator.Kind,
	req indicator.FetchRequest,
) (indicator.FetchAttempt, []byte) {
	requestURL := proxy.Compose(target)
	attempt := indicator.FetchAttempt{Proxy: proxy.Name, URL: requestURL}

	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	fail := func(outcome indicator.Outcome, err error) (indicator.FetchAttempt, []byte) {
		attempt.Outcome = outcome
		attempt.Latency = time.Since(start)
		attempt.Err = err
		return attempt, nil
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(attemptCtx, requestURL); err != nil {
			return fail(indicator.OutcomeRateLimited, fmt.Errorf("%w: %w", indicator.ErrRateLimited, err))
		}
	}

	req.URL = requestURL
	req.Headers = req.Headers.Clone()
	resp, err := transport.Fetch(attemptCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return fail(indicator.OutcomeTimeout, fmt.Errorf("%w: %w", indicator.ErrTimeout, err))
		}
		return fail(indicator.OutcomeNetworkError, fmt.Errorf("%w: %w", indicator.ErrNetwork, err))
	}
	attempt.StatusCode = resp.StatusCode
	attempt.PayloadBytes = len(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fail(indicator.OutcomeHTTPStatus, fmt.Errorf("%w: %d", indicator.ErrHTTPStatus, resp.StatusCode))
	}
	if err := f.validator.Validate(resp.Body, kind); err != nil {
		return fail(indicator.OutcomeRejected, err)
	}

	attempt.Outcome = indicator.OutcomeOK
	attempt.Latency = time.Since(start)
	return attempt, resp.Body
}
