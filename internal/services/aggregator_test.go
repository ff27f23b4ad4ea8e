package services

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/config"
	"github.com/bobby-s-dev/ride-or-mud/pkg/client"
)

func loadTestConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestNewAggregator_OpenMeteoMemory(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{"CACHE_BACKEND": "memory"})

	a, err := NewAggregator(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, client.OpenMeteoName, a.Orchestrator.ProviderName())
	assert.Nil(t, a.Relay)
	assert.Len(t, a.Catalog.Trails, 18)
	assert.NotEmpty(t, a.Recommender.InRange())
}

func TestNewAggregator_TomorrowSQLite(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"WEATHER_PROVIDER": "tomorrow",
		"TOMORROW_API_KEY": "k",
	})
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

	a, err := NewAggregator(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, client.TomorrowName, a.Orchestrator.ProviderName())
	require.NotNil(t, a.Relay)
	assert.True(t, a.Relay.HasKey())
	assert.NoError(t, a.Close())
}

func TestNewAggregator_RelayWithOpenMeteo(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"CACHE_BACKEND":    "memory",
		"TOMORROW_API_KEY": "k",
	})

	a, err := NewAggregator(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, client.OpenMeteoName, a.Orchestrator.ProviderName())
	assert.NotNil(t, a.Relay)
}

func TestNewAggregator_BadCatalog(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{"CACHE_BACKEND": "memory"})
	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewAggregator(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewAggregator_CorruptCacheFileIsRecreated(t *testing.T) {
	cfg := loadTestConfig(t, nil)
	dir := t.TempDir()
	cfg.Cache.Path = filepath.Join(dir, "cache.db")
	require.NoError(t, os.WriteFile(cfg.Cache.Path, bytes.Repeat([]byte("garbage!"), 1024), 0o644))

	a, err := NewAggregator(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	a.Cache.Put("k", json.RawMessage(`1`))
	_, ok := a.Cache.Get("k")
	assert.True(t, ok)

	aside, err := filepath.Glob(filepath.Join(dir, "cache.db.corrupt-*"))
	require.NoError(t, err)
	assert.Len(t, aside, 1)
}

func TestNewAggregator_UnopenableCacheFallsBackToMemory(t *testing.T) {
	cfg := loadTestConfig(t, nil)
	cfg.Cache.Path = filepath.Join(t.TempDir(), "no", "such", "dir", "cache.db")

	a, err := NewAggregator(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	a.Cache.Put("k", json.RawMessage(`1`))
	_, ok := a.Cache.Get("k")
	assert.True(t, ok)
}
