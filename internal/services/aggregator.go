package services

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/catalog"
	"github.com/bobby-s-dev/ride-or-mud/internal/config"
	"github.com/bobby-s-dev/ride-or-mud/internal/scoring"
	"github.com/bobby-s-dev/ride-or-mud/internal/store"
	"github.com/bobby-s-dev/ride-or-mud/pkg/client"
)

// Aggregator holds the wired services shared by the server and the CLI.
type Aggregator struct {
	Catalog      *catalog.Catalog
	Engine       *scoring.Engine
	Cache        *CacheStore
	Orchestrator *Orchestrator
	Recommender  *Recommender
	// Relay is set only when a Tomorrow.io key is configured.
	Relay *client.TomorrowClient

	closers []func() error
	logger  *zap.Logger
}

func NewAggregator(cfg *config.Config, logger *zap.Logger) (*Aggregator, error) {
	cat, err := catalog.Load(cfg.CatalogPath, logger)
	if err != nil {
		return nil, err
	}

	engine, err := scoring.NewEngine(cfg.ScoringParams(cat.Home))
	if err != nil {
		return nil, fmt.Errorf("scoring parameters: %w", err)
	}

	a := &Aggregator{
		Catalog: cat,
		Engine:  engine,
		logger:  logger,
	}

	a.Cache = NewCacheStore(a.openBackingStore(cfg), cfg.Cache.MaxAge, logger)

	provider, relay := newProvider(cfg, logger)
	a.Relay = relay

	a.Orchestrator = NewOrchestrator(provider, a.Cache, OrchestratorConfig{
		BatchSize:  cfg.Weather.BatchSize,
		BatchDelay: cfg.Weather.BatchDelay,
	}, logger)
	a.Recommender = NewRecommender(cat.Trails, engine, a.Orchestrator, cfg.Location(), logger)

	logger.Info("Services initialized",
		zap.String("provider", provider.Name()),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("trails", len(cat.Trails)),
		zap.Int("in_range", len(a.Recommender.InRange())),
		zap.Bool("relay", relay != nil))

	return a, nil
}

// openBackingStore never fails: the cache is best effort. A database that
// cannot be opened is moved aside and recreated once, then the in-memory
// store takes over.
func (a *Aggregator) openBackingStore(cfg *config.Config) BackingStore {
	if cfg.Cache.Backend == config.BackendMemory {
		return store.NewMemoryStore(cfg.Cache.MaxEntries)
	}

	db, err := store.OpenSQLite(cfg.Cache.Path, cfg.Cache.MaxEntries, a.logger)
	if err != nil {
		a.logger.Warn("Cache database unusable, recreating",
			zap.String("path", cfg.Cache.Path),
			zap.Error(err))

		if aside, moved := moveAside(cfg.Cache.Path); moved {
			a.logger.Warn("Moved unreadable cache database", zap.String("to", aside))
			db, err = store.OpenSQLite(cfg.Cache.Path, cfg.Cache.MaxEntries, a.logger)
		}
	}
	if err != nil {
		a.logger.Warn("Falling back to in-memory cache",
			zap.String("path", cfg.Cache.Path),
			zap.Error(err))
		return store.NewMemoryStore(cfg.Cache.MaxEntries)
	}

	a.closers = append(a.closers, db.Close)
	return db
}

func moveAside(path string) (string, bool) {
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, aside); err != nil {
		return "", false
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return aside, true
}

// newProvider builds the configured forecast provider. A Tomorrow.io client
// is also returned whenever a key is present so the relay can be served.
func newProvider(cfg *config.Config, logger *zap.Logger) (client.Provider, *client.TomorrowClient) {
	options := cfg.ParseOptions()
	clientConfig := cfg.ClientConfig()

	var tomorrow *client.TomorrowClient
	if cfg.Weather.Provider == config.ProviderTomorrow || cfg.Weather.TomorrowAPIKey != "" {
		tomorrow = client.NewTomorrowClient(client.TomorrowConfig{
			APIKey:   cfg.Weather.TomorrowAPIKey,
			BaseURL:  cfg.Weather.TomorrowURL,
			RelayURL: cfg.Weather.TomorrowRelayURL,
		}, options, clientConfig, logger)
	}

	var relay *client.TomorrowClient
	if tomorrow != nil && tomorrow.HasKey() {
		relay = tomorrow
	}

	if cfg.Weather.Provider == config.ProviderTomorrow {
		logger.Info("Tomorrow.io client initialized", zap.Bool("direct", tomorrow.HasKey()))
		return tomorrow, relay
	}

	logger.Info("Open-Meteo client initialized")
	return client.NewOpenMeteoClient(cfg.Weather.OpenMeteoURL, options, clientConfig, logger), relay
}

// Close releases the backing store.
func (a *Aggregator) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
