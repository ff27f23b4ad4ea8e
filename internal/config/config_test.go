package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, ProviderOpenMeteo, cfg.Weather.Provider)
	assert.Equal(t, 5, cfg.Weather.BatchSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Weather.BatchDelay)
	assert.Equal(t, 2*time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, BackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, 3, cfg.CircuitBreaker.Threshold)
	assert.True(t, cfg.Scoring.EnableSlipPenalty)
	assert.Equal(t, "Asia/Jerusalem", cfg.Location().String())
	assert.Equal(t, zapcore.InfoLevel, cfg.ZapLevel())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIBER_PORT", "9090")
	t.Setenv("WEATHER_PROVIDER", "tomorrow")
	t.Setenv("TOMORROW_API_KEY", "secret")
	t.Setenv("FETCH_BATCH_SIZE", "3")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("REFERENCE_HOUR", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, ProviderTomorrow, cfg.Weather.Provider)
	assert.Equal(t, 3, cfg.Weather.BatchSize)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, zapcore.DebugLevel, cfg.ZapLevel())

	opts := cfg.ParseOptions()
	assert.Equal(t, 7, opts.RefHour)
	assert.Equal(t, 48, opts.WindowHours)
	assert.Equal(t, time.UTC, opts.Location)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown provider":      {"WEATHER_PROVIDER": "darksky"},
		"tomorrow without key":  {"WEATHER_PROVIDER": "tomorrow"},
		"batch too large":       {"FETCH_BATCH_SIZE": "8"},
		"delay too short":       {"FETCH_BATCH_DELAY": "10ms"},
		"bad relay url":         {"TOMORROW_RELAY_URL": "not a url"},
		"thresholds inverted":   {"SCORE_YELLOW_THRESHOLD": "80"},
		"unknown timezone":      {"TIMEZONE": "Mars/Olympus"},
		"bad log level":         {"LOG_LEVEL": "verbose"},
		"unparseable duration":  {"CACHE_MAX_AGE": "soon"},
		"sqlite without a path": {"CACHE_PATH": ""},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestConfig_ScoringParams(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_DRIVE_MINUTES", "90")
	t.Setenv("ENABLE_SLIP_PENALTY", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	home := models.HomeLocation{Name: "Home", Lat: 32, Lng: 35}
	p := cfg.ScoringParams(home)
	assert.Equal(t, home, p.Home)
	assert.Equal(t, 90, p.MaxDriveMinutes)
	assert.False(t, p.EnableSlip)
	assert.Equal(t, 70, p.GreenThreshold)
	assert.Equal(t, 40, p.YellowThreshold)

	cc := cfg.ClientConfig()
	assert.Equal(t, 10*time.Second, cc.Timeout)
	assert.Equal(t, 3, cc.Threshold)
}
