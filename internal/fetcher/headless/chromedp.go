// Package headless renders indicator pages that only populate their figures after
// JavaScript runs.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

const (
	defaultNavigation = 45 * time.Second
	defaultSettle     = 500 * time.Millisecond
	defaultReady      = "body"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	// MaxParallel bounds concurrent tabs. Zero means unbounded.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// WaitSelector is the ready selector for requests that do not name their own.
	WaitSelector string
	// Settle is the pause after the ready selector appears, letting late scripts fill figures.
	Settle time.Duration
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavigation
	}
	if c.WaitSelector == "" {
		c.WaitSelector = defaultReady
	}
	if c.Settle <= 0 {
		c.Settle = defaultSettle
	}
	return c
}

// page is one render job.
type page struct {
	url       string
	headers   http.Header
	userAgent string
	ready     string
	settle    time.Duration
}

// snapshot is what a finished render leaves behind. Zero status and empty url mean
// the browser never reported the document response.
type snapshot struct {
	html    string
	url     string
	status  int
	headers http.Header
}

type renderFunc func(ctx context.Context, p page) (snapshot, error)

// Fetcher implements indicator.Fetcher by rendering pages in headless Chrome.
type Fetcher struct {
	cfg    Config
	slots  *semaphore.Weighted
	render renderFunc
	stop   context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by a chromedp exec allocator. The
// browser starts lazily on the first render.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	browser, stop := chromedp.NewExecAllocator(context.Background(), opts...)
	return newFetcher(cfg.withDefaults(), chromeRender(browser), stop), nil
}

func newFetcher(cfg Config, render renderFunc, stop context.CancelFunc) *Fetcher {
	f := &Fetcher{cfg: cfg, render: render, stop: stop}
	if cfg.MaxParallel > 0 {
		f.slots = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}
	return f
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	if f.stop != nil {
		f.stop()
	}
}

// Fetch renders request.URL and returns the DOM once the ready selector is present.
// A request's WaitSelector takes precedence over the configured one.
func (f *Fetcher) Fetch(ctx context.Context, request indicator.FetchRequest) (indicator.FetchResponse, error) {
	if f.slots != nil {
		if err := f.slots.Acquire(ctx, 1); err != nil {
			return indicator.FetchResponse{}, fmt.Errorf("wait for render slot: %w", err)
		}
		defer f.slots.Release(1)
	}

	ctx, cancel := context.WithTimeout(ctx, f.budget(request.Timeout))
	defer cancel()

	start := time.Now()
	snap, err := f.render(ctx, page{
		url:       request.URL,
		headers:   request.Headers,
		userAgent: f.cfg.UserAgent,
		ready:     f.readySelector(request),
		settle:    f.cfg.Settle,
	})
	if err != nil {
		return indicator.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}

	resp := indicator.FetchResponse{
		URL:          snap.url,
		StatusCode:   snap.status,
		Headers:      snap.headers,
		Body:         []byte(snap.html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}
	if resp.URL == "" {
		resp.URL = request.URL
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	if resp.Headers == nil {
		resp.Headers = http.Header{}
	}
	return resp, nil
}

// budget is the shorter of the cascade's attempt timeout and the navigation timeout.
func (f *Fetcher) budget(requested time.Duration) time.Duration {
	limit := f.cfg.NavigationTimeout
	if limit <= 0 {
		limit = defaultNavigation
	}
	if requested > 0 && requested < limit {
		return requested
	}
	return limit
}

func (f *Fetcher) readySelector(request indicator.FetchRequest) string {
	switch {
	case request.WaitSelector != "":
		return request.WaitSelector
	case f.cfg.WaitSelector != "":
		return f.cfg.WaitSelector
	default:
		return defaultReady
	}
}

// chromeRender opens one tab per page under the shared browser allocator.
func chromeRender(browser context.Context) renderFunc {
	return func(ctx context.Context, p page) (snapshot, error) {
		tab, closeTab := chromedp.NewContext(browser)
		defer closeTab()
		// Tabs hang off the browser, not the caller; tie their lifetime to ctx.
		defer context.AfterFunc(ctx, closeTab)()

		doc := &document{}
		chromedp.ListenTarget(tab, doc.observe)

		var snap snapshot
		err := chromedp.Run(tab,
			prepareTab(p),
			chromedp.Navigate(p.url),
			chromedp.WaitReady(p.ready, chromedp.ByQuery),
			chromedp.Sleep(p.settle),
			chromedp.Location(&snap.url),
			chromedp.OuterHTML("html", &snap.html, chromedp.ByQuery),
		)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return snapshot{}, fmt.Errorf("chromedp run: %w", ctxErr)
			}
			return snapshot{}, fmt.Errorf("chromedp run: %w", err)
		}
		doc.fill(&snap)
		return snap, nil
	}
}

func prepareTab(p page) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if p.userAgent != "" {
			if err := emulation.SetUserAgentOverride(p.userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(p.headers) > 0 {
			if err := network.SetExtraHTTPHeaders(requestHeaders(p.headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// document records the main-frame response of a loading tab. Sub-resources are ignored.
type document struct {
	mu      sync.Mutex
	status  int
	url     string
	headers http.Header
}

func (d *document) observe(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	headers := responseHeaders(resp.Response.Headers)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = int(resp.Response.Status)
	d.url = resp.Response.URL
	d.headers = headers
}

// fill overlays the recorded response onto snap. The document URL wins over the
// tab location because it is what the server actually answered.
func (d *document) fill(snap *snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap.status = d.status
	snap.headers = d.headers
	if d.url != "" {
		snap.url = d.url
	}
}

// responseHeaders converts DevTools headers, which fold repeated values into one
// newline-separated string.
func responseHeaders(src network.Headers) http.Header {
	dst := make(http.Header, len(src))
	for key, value := range src {
		raw, ok := value.(string)
		if !ok {
			raw = fmt.Sprint(value)
		}
		for _, v := range strings.Split(raw, "\n") {
			dst.Add(key, v)
		}
	}
	return dst
}

func requestHeaders(src http.Header) network.Headers {
	dst := make(network.Headers, len(src))
	for key, values := range src {
		if len(values) > 0 {
			dst[key] = strings.Join(values, ", ")
		}
	}
	return dst
}
