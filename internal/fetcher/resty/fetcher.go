// Package restyfetcher implements indicator.Fetcher on top of go-resty.
package restyfetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

// Config controls the underlying resty client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher issues plain GETs through a shared resty client.
type Fetcher struct {
	client *resty.Client
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Fetcher{client: client}
}

// Fetch performs one GET. Non-2xx statuses are returned, not treated as errors.
func (f *Fetcher) Fetch(ctx context.Context, request indicator.FetchRequest) (indicator.FetchResponse, error) {
	req := f.client.R().SetContext(ctx)
	if len(request.Headers) > 0 {
		req.SetHeaderMultiValues(request.Headers)
	}
	resp, err := req.Get(request.URL)
	if err != nil {
		return indicator.FetchResponse{}, fmt.Errorf("resty get: %w", err)
	}
	return indicator.FetchResponse{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode(),
		Headers:    resp.Header().Clone(),
		Body:       append([]byte(nil), resp.Body()...),
		Duration:   resp.Time(),
	}, nil
}
