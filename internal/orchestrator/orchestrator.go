// Package orchestrator runs one fetch pipeline per indicator concurrently and caches the
// aggregate per group. Every requested indicator always yields exactly one reading.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/indicator-feed/internal/cache"
	"github.com/JakeFAU/indicator-feed/internal/cascade"
	"github.com/JakeFAU/indicator-feed/internal/catalog"
	"github.com/JakeFAU/indicator-feed/internal/extract"
	"github.com/JakeFAU/indicator-feed/internal/indicator"
	"github.com/JakeFAU/indicator-feed/internal/metrics"
	"github.com/JakeFAU/indicator-feed/internal/provenance"
)

// ErrUnknownGroup is returned for a group name missing from the catalog.
var ErrUnknownGroup = errors.New("unknown indicator group")

// Cascade fetches a validated payload for one target URL.
type Cascade interface {
	FetchRaw(ctx context.Context, target string, d indicator.Descriptor) (cascade.Result, error)
}

// Extractor pulls a value out of a payload.
type Extractor interface {
	Parse(raw []byte, d indicator.Descriptor) (extract.Result, error)
}

// Dependencies wires an Orchestrator.
type Dependencies struct {
	Cascade   Cascade
	Extractor Extractor
	Resolver  *provenance.Resolver
	Cache     *cache.IndicatorCache
	Catalog   *catalog.Catalog
	IDs       indicator.IDGenerator
	Logger    *zap.Logger
}

// Cycle is the result of one FetchAll call.
type Cycle struct {
	Key       string              `json:"group"`
	Readings  []indicator.Reading `json:"readings"`
	RealCount int                 `json:"real_count"`
	Cached    bool                `json:"cached"`
	CreatedAt time.Time           `json:"created_at"`
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cascade   Cascade
	extractor Extractor
	resolver  *provenance.Resolver
	cache     *cache.IndicatorCache
	catalog   *catalog.Catalog
	ids       indicator.IDGenerator
	logger    *zap.Logger

	flight singleflight.Group

	mu       sync.RWMutex
	lastReal map[string]float64
}

// New validates deps and builds an Orchestrator.
func New(deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Cascade == nil:
		return nil, errors.New("orchestrator: cascade is required")
	case deps.Extractor == nil:
		return nil, errors.New("orchestrator: extractor is required")
	case deps.Resolver == nil:
		return nil, errors.New("orchestrator: resolver is required")
	case deps.Cache == nil:
		return nil, errors.New("orchestrator: cache is required")
	case deps.Catalog == nil:
		return nil, errors.New("orchestrator: catalog is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cascade:   deps.Cascade,
		extractor: deps.Extractor,
		resolver:  deps.Resolver,
		cache:     deps.Cache,
		catalog:   deps.Catalog,
		ids:       deps.IDs,
		logger:    logger.Named("orchestrator"),
		lastReal:  make(map[string]float64),
	}, nil
}

// Catalog exposes the groups this orchestrator serves.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}

// FetchAll returns one reading per descriptor, in request order, serving the cache
// when the key is fresh.
func (o *Orchestrator) FetchAll(ctx context.Context, key string, ds []indicator.Descriptor) []indicator.Reading {
	return o.Fetch(ctx, key, ds).Readings
}

// Fetch is FetchAll with cycle metadata. Concurrent calls for the same key and the same
// descriptors share one fan-out, which keeps running if the caller that started it goes away.
func (o *Orchestrator) Fetch(ctx context.Context, key string, ds []indicator.Descriptor) Cycle {
	shared := context.WithoutCancel(ctx)
	v, _, _ := o.flight.Do(flightKey(key, ds), func() (any, error) {
		if entry, ok := o.cache.Get(key); ok && matches(entry.Readings, ds) {
			return Cycle{
				Key:       key,
				Readings:  entry.Readings,
				RealCount: countReal(entry.Readings),
				Cached:    true,
				CreatedAt: entry.CreatedAt,
			}, nil
		}
		readings := o.fanOut(shared, key, ds)
		entry := o.cache.Set(key, readings)
		return Cycle{
			Key:       key,
			Readings:  entry.Readings,
			RealCount: countReal(entry.Readings),
			CreatedAt: entry.CreatedAt,
		}, nil
	})
	cycle, _ := v.(Cycle)
	cycle.Readings = indicator.CloneReadings(cycle.Readings)
	return cycle
}

// FetchGroup fetches a catalog group by name.
func (o *Orchestrator) FetchGroup(ctx context.Context, name string) (Cycle, error) {
	group, ok := o.catalog.Group(name)
	if !ok {
		return Cycle{}, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	return o.Fetch(ctx, group.Name, group.Indicators), nil
}

// ClearGroup drops the cached readings of one group.
func (o *Orchestrator) ClearGroup(name string) error {
	if _, ok := o.catalog.Group(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	o.cache.Clear(name)
	o.logger.Info("group cache cleared", zap.String("group", name))
	return nil
}

// ClearAll drops every cached group.
func (o *Orchestrator) ClearAll() {
	o.cache.ClearAll()
	o.logger.Info("cache cleared")
}

func (o *Orchestrator) fanOut(ctx context.Context, key string, ds []indicator.Descriptor) []indicator.Reading {
	start := time.Now()
	cycleID := o.newCycleID()
	logger := o.logger.With(zap.String("cycle_id", cycleID), zap.String("group", key))
	logger.Debug("fetch cycle started", zap.Int("indicators", len(ds)))

	readings := make([]indicator.Reading, len(ds))
	var wg sync.WaitGroup
	for i, d := range ds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readings[i] = o.runOne(ctx, key, d, logger)
		}()
	}
	wg.Wait()

	realCount := countReal(readings)
	for _, r := range readings {
		metrics.ObserveReading(key, r.DataSource, r.IsRealData)
	}
	elapsed := time.Since(start)
	metrics.ObserveFetchCycle(key, elapsed)
	logger.Info("fetch cycle finished",
		zap.Int("real", realCount),
		zap.Int("total", len(readings)),
		zap.Duration("duration", elapsed),
	)
	return readings
}

func (o *Orchestrator) runOne(ctx context.Context, key string, d indicator.Descriptor, logger *zap.Logger) (reading indicator.Reading) {
	memo := key + "/" + d.ID
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panic", zap.String("indicator", d.ID), zap.Any("panic", r))
			reading = o.resolver.Resolve(provenance.Outcome{Err: fmt.Errorf("%w: %v", indicator.ErrPipelinePanic, r)}, d, nil)
		}
	}()

	outcome := o.pipeline(ctx, d)
	reading = o.resolver.Resolve(outcome, d, o.lastRealValue(memo))
	if reading.IsRealData {
		o.rememberReal(memo, *reading.Value)
		return reading
	}
	logger.Info("indicator degraded",
		zap.String("indicator", d.ID),
		zap.String("data_source", reading.DataSource),
		zap.Error(outcome.Err),
	)
	return reading
}

// pipeline tries each URL in order. A URL whose payload was fetched but not understood
// makes the outcome an extraction failure even when later URLs are unreachable.
func (o *Orchestrator) pipeline(ctx context.Context, d indicator.Descriptor) provenance.Outcome {
	var payloadErr, fetchErr error
	for _, target := range d.URLs {
		res, err := o.cascade.FetchRaw(ctx, target, d)
		if err != nil {
			fetchErr = err
			continue
		}
		ext, err := o.extractor.Parse(res.Body, d)
		if err != nil {
			if payloadErr == nil {
				payloadErr = fmt.Errorf("extract %s via %s: %w", d.ID, res.Proxy, err)
			}
			continue
		}
		value := ext.Value
		return provenance.Outcome{Value: &value, Previous: ext.Previous}
	}
	if payloadErr != nil {
		return provenance.Outcome{Err: payloadErr}
	}
	if fetchErr == nil {
		fetchErr = fmt.Errorf("%w: %s has no urls", indicator.ErrAllProxiesExhausted, d.ID)
	}
	return provenance.Outcome{Err: fetchErr}
}

func (o *Orchestrator) lastRealValue(memo string) *float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.lastReal[memo]
	if !ok {
		return nil
	}
	return &v
}

func (o *Orchestrator) rememberReal(memo string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastReal[memo] = v
}

func (o *Orchestrator) newCycleID() string {
	if o.ids == nil {
		return ""
	}
	id, err := o.ids.NewID()
	if err != nil {
		o.logger.Warn("cycle id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// flightKey scopes singleflight sharing to callers asking for the same descriptors.
func flightKey(key string, ds []indicator.Descriptor) string {
	var b strings.Builder
	b.WriteString(key)
	for _, d := range ds {
		b.WriteByte(0)
		b.WriteString(d.ID)
	}
	return b.String()
}

// matches reports whether cached readings answer ds one-for-one, in order.
func matches(readings []indicator.Reading, ds []indicator.Descriptor) bool {
	if len(readings) != len(ds) {
		return false
	}
	for i, d := range ds {
		if readings[i].ID != d.ID {
			return false
		}
	}
	return true
}

func countReal(readings []indicator.Reading) int {
	n := 0
	for _, r := range readings {
		if r.IsRealData {
			n++
		}
	}
	return n
}
