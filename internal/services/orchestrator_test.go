package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
	"github.com/bobby-s-dev/ride-or-mud/internal/store"
	"github.com/bobby-s-dev/ride-or-mud/pkg/client"
)

// fakeProvider serves {"rain": <lat>} for every location unless told to fail.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	garbage bool

	inflight    int32
	maxInflight int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{fail: make(map[string]error)}
}

func coordKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Fetch(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	n := atomic.AddInt32(&p.inflight, 1)
	defer atomic.AddInt32(&p.inflight, -1)
	for {
		peak := atomic.LoadInt32(&p.maxInflight)
		if n <= peak || atomic.CompareAndSwapInt32(&p.maxInflight, peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	key := coordKey(lat, lng)
	p.calls = append(p.calls, key)
	if err := p.fail[key]; err != nil {
		return nil, err
	}
	if p.garbage {
		return json.RawMessage(`{"nope": true}`), nil
	}
	return json.RawMessage(fmt.Sprintf(`{"rain": %g}`, lat)), nil
}

func (p *fakeProvider) Parse(raw json.RawMessage, targetDate string, now time.Time) (*models.WeatherFacts, error) {
	var payload struct {
		Rain *float64 `json:"rain"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &client.MalformedPayloadError{Provider: "fake", Reason: "decoding", Err: err}
	}
	if payload.Rain == nil {
		return nil, &client.MalformedPayloadError{Provider: "fake", Reason: "missing rain"}
	}
	facts := models.EmptyFacts(targetDate)
	facts.Provider = "fake"
	facts.Source = models.SourceAPI
	facts.RainfallAccumulated = *payload.Rain
	return facts, nil
}

func (p *fakeProvider) failAt(lat, lng float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[coordKey(lat, lng)] = &client.NetworkError{Provider: "fake", StatusCode: 503, Body: "down"}
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type harness struct {
	provider *fakeProvider
	clock    *fakeClock
	backing  *store.MemoryStore
	cache    *CacheStore
	orch     *Orchestrator
	sleeps   []time.Duration
}

func newHarness(t *testing.T, batchSize int) *harness {
	t.Helper()
	h := &harness{
		provider: newFakeProvider(),
		backing:  store.NewMemoryStore(0),
	}
	clock := newFakeClock()
	h.clock = clock
	h.cache = newTestCache(h.backing, clock)
	h.orch = NewOrchestrator(h.provider, h.cache, OrchestratorConfig{
		BatchSize:  batchSize,
		BatchDelay: 300 * time.Millisecond,
	}, zap.NewNop()).
		WithClock(clock.Now).
		WithSleep(func(ctx context.Context, d time.Duration) {
			h.sleeps = append(h.sleeps, d)
		})
	return h
}

var (
	trailA1 = models.Trail{ID: "a1", Name: "A1", Lat: 32.25, Lng: 34.90}
	trailA2 = models.Trail{ID: "a2", Name: "A2", Lat: 32.26, Lng: 34.91}
	trailB1 = models.Trail{ID: "b1", Name: "B1", Lat: 31.95, Lng: 34.95}
	trailC1 = models.Trail{ID: "c1", Name: "C1", Lat: 33.10, Lng: 35.60}
)

func TestGridKeyFor(t *testing.T) {
	assert.Equal(t, models.GridKey("32.25,34.90"), GridKeyFor(32.25, 34.90))
	assert.Equal(t, models.GridKey("32.25,34.90"), GridKeyFor(32.26, 34.91))
	assert.Equal(t, models.GridKey("32.30,34.90"), GridKeyFor(32.28, 34.90))
}

func TestGroupTrails(t *testing.T) {
	groups := GroupTrails([]models.Trail{trailB1, trailA1, trailC1, trailA2})

	require.Len(t, groups, 3)
	assert.Equal(t, "b1", groups[0].Representative.ID)
	assert.Equal(t, "a1", groups[1].Representative.ID)
	assert.Equal(t, "c1", groups[2].Representative.ID)
	require.Len(t, groups[1].Trails, 2)
	assert.Equal(t, "a2", groups[1].Trails[1].ID)

	assert.Empty(t, GroupTrails(nil))
}

func TestFetchAll_OneFetchPerCell(t *testing.T) {
	h := newHarness(t, 5)

	res := h.orch.FetchAll(context.Background(), []models.Trail{trailA1, trailA2, trailB1}, "2026-10-20")

	assert.Equal(t, 2, h.provider.callCount())
	assert.Equal(t, 2, res.Groups)
	assert.Equal(t, 2, res.Fresh)
	assert.Len(t, res.Facts, 3)
	assert.Same(t, res.Facts["a1"], res.Facts["a2"])
	assert.Equal(t, 32.25, res.Facts["a2"].RainfallAccumulated)
	assert.Equal(t, models.SourceAPI, res.Facts["b1"].Source)
	assert.NotEmpty(t, res.RunID)

	assert.ElementsMatch(t, []string{"fake:32.25,34.90", "fake:31.95,34.95"}, h.cache.Keys())
	assert.Empty(t, h.sleeps)
}

func TestFetchAll_Batches(t *testing.T) {
	h := newHarness(t, 3)

	var trails []models.Trail
	for i := 0; i < 7; i++ {
		trails = append(trails, models.Trail{
			ID:  fmt.Sprintf("t%d", i),
			Lat: 30 + float64(i)*0.5,
			Lng: 35,
		})
	}

	res := h.orch.FetchAll(context.Background(), trails, "2026-10-20")

	assert.Equal(t, 7, res.Fresh)
	assert.Equal(t, 7, h.provider.callCount())
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond}, h.sleeps)
	assert.LessOrEqual(t, atomic.LoadInt32(&h.provider.maxInflight), int32(3))
}

func TestFetchAll_CancelledContextIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	provider := newFakeProvider()
	cache := newTestCache(store.NewMemoryStore(0), newFakeClock())
	orch := NewOrchestrator(provider, cache, OrchestratorConfig{BatchSize: 1}, zap.New(core)).
		WithSleep(func(context.Context, time.Duration) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := orch.FetchAll(ctx, []models.Trail{trailA1, trailB1}, "2026-10-20")
	assert.Len(t, res.Facts, 2)
	assert.Equal(t, 2, logs.FilterMessage("Weather fetch cancelled").Len())
}

func TestFetchAll_CacheFallbackMatchesCachedPayload(t *testing.T) {
	h := newHarness(t, 5)
	trails := []models.Trail{trailA1, trailB1}

	h.orch.FetchAll(context.Background(), trails, "2026-10-20")
	h.provider.failAt(trailA1.Lat, trailA1.Lng)

	res := h.orch.FetchAll(context.Background(), trails, "2026-10-22")
	assert.Equal(t, 1, res.Fresh)
	assert.Equal(t, 1, res.Cached)
	assert.Equal(t, 0, res.Fallback)

	cached, ok := h.cache.Get("fake:32.25,34.90")
	require.True(t, ok)
	expected, err := h.provider.Parse(cached, "2026-10-22", time.Now())
	require.NoError(t, err)
	expected.Source = models.SourceCache

	assert.Equal(t, expected, res.Facts["a1"])
}

func TestFetchAll_ZeroFallback(t *testing.T) {
	h := newHarness(t, 5)
	h.provider.failAt(trailA1.Lat, trailA1.Lng)

	res := h.orch.FetchAll(context.Background(), []models.Trail{trailA1, trailA2}, "2026-10-20")

	assert.Equal(t, 1, res.Fallback)
	assert.True(t, res.AllFailed())
	facts := res.Facts["a2"]
	require.NotNil(t, facts)
	assert.Equal(t, models.SourceFallback, facts.Source)
	assert.Equal(t, 0.0, facts.RainfallAccumulated)
	assert.Nil(t, facts.Target.TempAtRefHour)
	assert.Equal(t, "2026-10-20", facts.Target.Date)
	assert.Empty(t, h.cache.Keys())
}

func TestFetchAll_ExpiredCacheEntryIsNotServed(t *testing.T) {
	h := newHarness(t, 5)
	trails := []models.Trail{trailA1}

	h.orch.FetchAll(context.Background(), trails, "2026-10-20")
	h.clock.Advance(2*time.Hour + time.Minute)
	h.provider.failAt(trailA1.Lat, trailA1.Lng)

	res := h.orch.FetchAll(context.Background(), trails, "2026-10-20")
	assert.Equal(t, 0, res.Cached)
	assert.Equal(t, 1, res.Fallback)
	assert.Equal(t, models.SourceFallback, res.Facts["a1"].Source)
}

func TestFetchAll_UnparseablePayloadFallsBack(t *testing.T) {
	h := newHarness(t, 5)
	h.provider.garbage = true

	res := h.orch.FetchAll(context.Background(), []models.Trail{trailA1}, "2026-10-20")

	assert.Equal(t, 1, res.Fallback)
	assert.Empty(t, h.cache.Keys(), "unparseable payloads are not cached")
}

func TestRescoreFromCache(t *testing.T) {
	h := newHarness(t, 5)
	trails := []models.Trail{trailA1, trailA2, trailB1}

	facts, ok := h.orch.RescoreFromCache(trails, "2026-10-20")
	assert.False(t, ok)
	assert.Nil(t, facts)

	h.orch.FetchAll(context.Background(), trails, "2026-10-20")
	calls := h.provider.callCount()
	require.NoError(t, h.backing.Remove("fake:31.95,34.95"))

	facts, ok = h.orch.RescoreFromCache(trails, "2026-10-23")
	require.True(t, ok)
	assert.Equal(t, calls, h.provider.callCount(), "rescore never fetches")
	assert.Len(t, facts, 2)
	assert.Contains(t, facts, "a1")
	assert.Contains(t, facts, "a2")
	assert.NotContains(t, facts, "b1")
	assert.Equal(t, "2026-10-23", facts["a1"].Target.Date)
	assert.Equal(t, models.SourceCache, facts["a1"].Source)

	stats := h.orch.Stats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(2), stats.Rescores)
	assert.Equal(t, "fake", stats.Provider)
}

func TestRescoreFromCache_ExpiredEntryMeansNoData(t *testing.T) {
	h := newHarness(t, 5)
	trails := []models.Trail{trailA1, trailB1}

	h.orch.FetchAll(context.Background(), trails, "2026-10-20")
	h.clock.Advance(2*time.Hour + time.Minute)

	facts, ok := h.orch.RescoreFromCache(trails, "2026-10-21")
	assert.False(t, ok)
	assert.Nil(t, facts)
	assert.Equal(t, 2, h.provider.callCount())
}
