package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
	"github.com/bobby-s-dev/ride-or-mud/pkg/client"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 300 * time.Millisecond
)

// Orchestrator turns a trail list into per-trail weather facts. Each grid
// group degrades on its own: fresh fetch, then cached payload, then an
// empty placeholder. A run never fails as a whole.
type Orchestrator struct {
	provider   client.Provider
	cache      *CacheStore
	logger     *zap.Logger
	batchSize  int
	batchDelay time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)

	mu    sync.RWMutex
	stats OrchestratorStats
}

type OrchestratorConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

// FetchResult holds the facts for every trail of a FetchAll run keyed by
// trail ID, plus how each group was served.
type FetchResult struct {
	RunID    string
	Facts    map[string]*models.WeatherFacts
	Groups   int
	Fresh    int
	Cached   int
	Fallback int
	Duration time.Duration
}

// AllFailed reports whether no group produced real data.
func (r *FetchResult) AllFailed() bool {
	return r.Groups > 0 && r.Fallback == r.Groups
}

type OrchestratorStats struct {
	Provider      string    `json:"provider"`
	LastRunID     string    `json:"last_run_id,omitempty"`
	LastFetchTime time.Time `json:"last_fetch_time"`
	Runs          int64     `json:"runs"`
	Rescores      int64     `json:"rescores"`
	Fresh         int64     `json:"fresh"`
	Cached        int64     `json:"cached"`
	Fallback      int64     `json:"fallback"`
}

type groupOutcome struct {
	facts  *models.WeatherFacts
	source models.FactsSource
}

func NewOrchestrator(provider client.Provider, cache *CacheStore, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchDelay := cfg.BatchDelay
	if batchDelay < 0 {
		batchDelay = DefaultBatchDelay
	}

	return &Orchestrator{
		provider:   provider,
		cache:      cache,
		logger:     logger,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		now:        time.Now,
		sleep:      sleepContext,
		stats:      OrchestratorStats{Provider: provider.Name()},
	}
}

// WithClock replaces the time source handed to the parser.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// WithSleep replaces the inter-batch wait.
func (o *Orchestrator) WithSleep(sleep func(ctx context.Context, d time.Duration)) *Orchestrator {
	o.sleep = sleep
	return o
}

func (o *Orchestrator) ProviderName() string {
	return o.provider.Name()
}

// FetchAll fetches one forecast per grid group in sequential batches and
// returns facts for every trail.
func (o *Orchestrator) FetchAll(ctx context.Context, trails []models.Trail, targetDate string) *FetchResult {
	start := time.Now()
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID), zap.String("target_date", targetDate))

	groups := GroupTrails(trails)
	outcomes := make([]groupOutcome, len(groups))

	logger.Info("Starting weather fetch",
		zap.String("provider", o.provider.Name()),
		zap.Int("trails", len(trails)),
		zap.Int("groups", len(groups)),
		zap.Int("batch_size", o.batchSize))

	for batchStart := 0; batchStart < len(groups); batchStart += o.batchSize {
		if batchStart > 0 && o.batchDelay > 0 {
			o.sleep(ctx, o.batchDelay)
		}

		batchEnd := batchStart + o.batchSize
		if batchEnd > len(groups) {
			batchEnd = len(groups)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := batchStart; i < batchEnd; i++ {
			g.Go(func() error {
				outcomes[i] = o.resolveGroup(gctx, logger, groups[i], targetDate)
				return ctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			logger.Warn("Weather fetch cancelled", zap.Int("batch_start", batchStart), zap.Error(err))
		}
	}

	result := &FetchResult{
		RunID:  runID,
		Facts:  make(map[string]*models.WeatherFacts, len(trails)),
		Groups: len(groups),
	}
	for i, group := range groups {
		out := outcomes[i]
		switch out.source {
		case models.SourceAPI:
			result.Fresh++
		case models.SourceCache:
			result.Cached++
		default:
			result.Fallback++
		}
		for _, trail := range group.Trails {
			result.Facts[trail.ID] = out.facts
		}
	}
	result.Duration = time.Since(start)

	o.mu.Lock()
	o.stats.LastRunID = runID
	o.stats.LastFetchTime = o.now()
	o.stats.Runs++
	o.stats.Fresh += int64(result.Fresh)
	o.stats.Cached += int64(result.Cached)
	o.stats.Fallback += int64(result.Fallback)
	o.mu.Unlock()

	logger.Info("Weather fetch completed",
		zap.Int("groups", result.Groups),
		zap.Int("fresh", result.Fresh),
		zap.Int("cached", result.Cached),
		zap.Int("fallback", result.Fallback),
		zap.Duration("duration", result.Duration))

	if result.AllFailed() {
		logger.Error("No weather data for any group")
	}

	return result
}

func (o *Orchestrator) resolveGroup(ctx context.Context, logger *zap.Logger, group models.TrailGroup, targetDate string) groupOutcome {
	key := o.cacheKey(group.Key)
	logger = logger.With(zap.String("group", string(group.Key)))
	rep := group.Representative

	raw, err := o.provider.Fetch(ctx, rep.Lat, rep.Lng)
	if err == nil {
		facts, parseErr := o.provider.Parse(raw, targetDate, o.now())
		if parseErr == nil {
			o.cache.Put(key, raw)
			return groupOutcome{facts: facts, source: models.SourceAPI}
		}
		err = parseErr
	}
	logger.Warn("Forecast fetch failed, trying cache", zap.Error(err))

	if cached, ok := o.cache.Get(key); ok {
		facts, parseErr := o.provider.Parse(cached, targetDate, o.now())
		if parseErr == nil {
			facts.Source = models.SourceCache
			logger.Warn("Serving stale forecast from cache")
			return groupOutcome{facts: facts, source: models.SourceCache}
		}
		logger.Warn("Cached forecast unreadable", zap.Error(parseErr))
	}

	logger.Warn("No forecast available, using empty facts")
	facts := models.EmptyFacts(targetDate)
	facts.Provider = o.provider.Name()
	return groupOutcome{facts: facts, source: models.SourceFallback}
}

// RescoreFromCache re-parses cached payloads for a new target date without
// any network access. Trails whose group has no live entry are left out.
// The boolean is false when no group had usable data.
func (o *Orchestrator) RescoreFromCache(trails []models.Trail, targetDate string) (map[string]*models.WeatherFacts, bool) {
	groups := GroupTrails(trails)
	facts := make(map[string]*models.WeatherFacts)

	for _, group := range groups {
		raw, ok := o.cache.Get(o.cacheKey(group.Key))
		if !ok {
			continue
		}
		parsed, err := o.provider.Parse(raw, targetDate, o.now())
		if err != nil {
			o.logger.Warn("Cached forecast unreadable",
				zap.String("group", string(group.Key)),
				zap.Error(err))
			continue
		}
		parsed.Source = models.SourceCache
		for _, trail := range group.Trails {
			facts[trail.ID] = parsed
		}
	}

	o.mu.Lock()
	o.stats.Rescores++
	o.mu.Unlock()

	if len(facts) == 0 {
		o.logger.Info("No cached forecasts for rescore", zap.String("target_date", targetDate))
		return nil, false
	}
	return facts, true
}

func (o *Orchestrator) Stats() OrchestratorStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stats
}

func (o *Orchestrator) cacheKey(key models.GridKey) string {
	return o.provider.Name() + ":" + string(key)
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
