package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
	"github.com/bobby-s-dev/ride-or-mud/internal/scoring"
	"github.com/bobby-s-dev/ride-or-mud/internal/services"
	"github.com/bobby-s-dev/ride-or-mud/internal/store"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Fetch(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (stubProvider) Parse(raw json.RawMessage, targetDate string, now time.Time) (*models.WeatherFacts, error) {
	facts := models.EmptyFacts(targetDate)
	facts.Provider = "stub"
	facts.Source = models.SourceAPI
	facts.RainfallAccumulated = 12
	facts.RainfallWindowHours = 72
	facts.Target.TempAtRefHour = models.Float(21)
	return facts, nil
}

func newTestCLI(t *testing.T) (*CLI, *bytes.Buffer) {
	t.Helper()
	logger := zap.NewNop()

	engine, err := scoring.NewEngine(scoring.DefaultParams())
	require.NoError(t, err)

	cache := services.NewCacheStore(store.NewMemoryStore(0), time.Hour, logger)
	orch := services.NewOrchestrator(stubProvider{}, cache, services.OrchestratorConfig{BatchSize: 3, BatchDelay: time.Millisecond}, logger).
		WithSleep(func(context.Context, time.Duration) {})
	trails := []models.Trail{
		{ID: "ben-shemen", Name: "Ben Shemen", Lat: 31.95, Lng: 34.93, Region: "Center", Soil: models.SoilClaySilt},
		{ID: "arava", Name: "Arava", Lat: 29.855, Lng: 35.050, Region: "South", Soil: models.SoilDesert},
	}
	rec := services.NewRecommender(trails, engine, orch, time.UTC, logger)

	cli := New(rec)
	out := &bytes.Buffer{}
	cli.rootCmd.SetOut(out)
	cli.rootCmd.SetErr(out)
	return cli, out
}

func TestRank(t *testing.T) {
	cli, out := newTestCLI(t)
	cli.SetArgs([]string{"rank"})

	require.NoError(t, cli.Execute(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Tomorrow")
	assert.Contains(t, text, "Ben Shemen")
	assert.Contains(t, text, "12.0 mm")
	assert.Contains(t, text, "21°C")
	assert.Contains(t, text, "RAIN 72H")
	assert.NotContains(t, text, "RAIN 48H")
	assert.NotContains(t, text, "Arava")
}

func TestWriteRanking_FallbackUsesDefaultWindow(t *testing.T) {
	facts := models.EmptyFacts("2026-10-20")
	set := &services.RecommendationSet{
		Date:      "2026-10-20",
		DateLabel: "Tomorrow",
		AllFailed: true,
		Recommendations: []models.Recommendation{
			{Trail: models.Trail{Name: "Ben Shemen"}, Facts: facts},
		},
		Unscored: []string{"arava"},
	}

	out := &bytes.Buffer{}
	require.NoError(t, writeRanking(out, set))
	assert.Contains(t, out.String(), "RAIN 48H")
	assert.Contains(t, out.String(), "No cached forecast for 1 trail(s): arava")
}

func TestRank_CacheOnly(t *testing.T) {
	cli, out := newTestCLI(t)

	cli.SetArgs([]string{"rank", "--cache-only"})
	err := cli.Execute(context.Background())
	assert.ErrorIs(t, err, errNoCachedForecasts)

	// cobra keeps flag values between executions
	cli.SetArgs([]string{"rank", "--cache-only=false"})
	require.NoError(t, cli.Execute(context.Background()))

	out.Reset()
	date := time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02")
	cli.SetArgs([]string{"rank", "--cache-only", "--date", date})
	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, out.String(), "served by cache")
}

func TestRank_BadDate(t *testing.T) {
	cli, _ := newTestCLI(t)
	cli.SetArgs([]string{"rank", "--date", "2001-01-01"})

	err := cli.Execute(context.Background())
	assert.ErrorIs(t, err, services.ErrDateOutOfRange)
}

func TestTrails(t *testing.T) {
	cli, out := newTestCLI(t)
	cli.SetArgs([]string{"trails"})

	require.NoError(t, cli.Execute(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Home: Tel Mond")
	assert.Contains(t, text, "ben-shemen")
	assert.Contains(t, text, "arava")
	assert.Contains(t, text, "yes")
	assert.Contains(t, text, "no")
}
