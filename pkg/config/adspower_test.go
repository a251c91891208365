package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadAdsPowerConfigAppliesDefaults(t *testing.T) {
	cfg := LoadAdsPowerConfig()
	assert.Equal(t, "http://local.adspower.net:50325", cfg.BaseURL)
	assert.Equal(t, 15, cfg.MaxConcurrency)
	assert.True(t, cfg.DeleteProfileOnExit)
	assert.Equal(t, 5, cfg.GridCols)
	assert.Equal(t, 2, cfg.GridRows)
	assert.Equal(t, 1920, cfg.ScreenWidth)
	assert.Equal(t, 1080, cfg.ScreenHeight)
	assert.Equal(t, 1200*time.Millisecond, cfg.RateLimitDelay)
	assert.False(t, cfg.ForceOnly)
}

func TestLoadAdsPowerConfigReadsOverrides(t *testing.T) {
	t.Setenv("ADSP_BASE_URL", "http://adspower.internal:9000")
	t.Setenv("ADSP_TOKEN", "secret-token")
	t.Setenv("ADSP_MAX_CONCURRENCY", "4")
	t.Setenv("ADSP_DELETE_PROFILE_ON_EXIT", "false")
	t.Setenv("ADSP_GRID_COLS", "3")
	t.Setenv("ADSP_GRID_ROWS", "1")
	t.Setenv("ADSP_TILE_INDEX", "2")
	t.Setenv("ADSP_SCREEN_RES", "2560x1440")
	t.Setenv("ADSP_RATE_LIMIT_DELAY_MS", "500")
	t.Setenv("FORCE_ADSPOWER_ONLY", "true")

	cfg := LoadAdsPowerConfig()
	assert.Equal(t, "http://adspower.internal:9000", cfg.BaseURL)
	assert.Equal(t, "secret-token", cfg.Token)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.False(t, cfg.DeleteProfileOnExit)
	assert.Equal(t, 3, cfg.GridCols)
	assert.Equal(t, 1, cfg.GridRows)
	assert.Equal(t, 2, cfg.TileIndex)
	assert.Equal(t, 2560, cfg.ScreenWidth)
	assert.Equal(t, 1440, cfg.ScreenHeight)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimitDelay)
	assert.True(t, cfg.ForceOnly)
}

func TestParseScreenResFallsBackOnMalformedInput(t *testing.T) {
	w, h := parseScreenRes("not-a-resolution", 1920, 1080)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestLoadRAGConfigAppliesDefaults(t *testing.T) {
	cfg := LoadRAGConfig()
	assert.Empty(t, cfg.BaseURL)
	assert.Equal(t, 2.0, cfg.RatePerSecond)
	assert.Equal(t, 2, cfg.Burst)
}

func TestLoadRAGConfigReadsOverrides(t *testing.T) {
	t.Setenv("RAG_BASE_URL", "http://r2r.internal:7272")
	t.Setenv("RAG_RATE_LIMIT_PER_SECOND", "5")
	t.Setenv("RAG_RATE_LIMIT_BURST", "10")

	cfg := LoadRAGConfig()
	assert.Equal(t, "http://r2r.internal:7272", cfg.BaseURL)
	assert.Equal(t, 5.0, cfg.RatePerSecond)
	assert.Equal(t, 10, cfg.Burst)
}
