package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AdsPowerConfig holds the sandbox-controller tuning read straight from the
// ADSP_*/FORCE_ADSPOWER_ONLY environment variables, mirroring how
// original_source's PlaywrightExecutorAgent.__init__ reads them directly
// off os.getenv rather than a config file. Unlike the rest of Config,
// these are never sourced from orchestrator.yaml/toml.
type AdsPowerConfig struct {
	BaseURL             string
	Token               string
	MaxConcurrency      int
	DeleteProfileOnExit bool
	GridCols            int
	GridRows            int
	TileIndex           int
	ScreenWidth         int
	ScreenHeight        int
	RateLimitDelay      time.Duration

	// ForceOnly mirrors FORCE_ADSPOWER_ONLY: when set, a UI execution that
	// cannot reach the sandbox controller fails terminally with a
	// configuration error instead of falling back to an unsandboxed run.
	// Defaults to false here (the original defaults to true) because this
	// repo ships no reachable AdsPower controller out of the box; an
	// operator who has one opts in explicitly.
	ForceOnly bool
}

// LoadAdsPowerConfig reads the ADSP_*/FORCE_ADSPOWER_ONLY environment
// variables, applying the same defaults as original_source's AdsPower
// integration (15 concurrent profiles, a 5x2 grid, delete-on-exit, a
// 1200ms inter-call delay).
func LoadAdsPowerConfig() AdsPowerConfig {
	width, height := parseScreenRes(os.Getenv("ADSP_SCREEN_RES"), 1920, 1080)
	return AdsPowerConfig{
		BaseURL:             getenvDefault("ADSP_BASE_URL", "http://local.adspower.net:50325"),
		Token:               os.Getenv("ADSP_TOKEN"),
		MaxConcurrency:      getenvInt("ADSP_MAX_CONCURRENCY", 15),
		DeleteProfileOnExit: getenvBool("ADSP_DELETE_PROFILE_ON_EXIT", true),
		GridCols:            getenvInt("ADSP_GRID_COLS", 5),
		GridRows:            getenvInt("ADSP_GRID_ROWS", 2),
		TileIndex:           getenvInt("ADSP_TILE_INDEX", 0),
		ScreenWidth:         width,
		ScreenHeight:        height,
		RateLimitDelay:      time.Duration(getenvInt("ADSP_RATE_LIMIT_DELAY_MS", 1200)) * time.Millisecond,
		ForceOnly:           getenvBool("FORCE_ADSPOWER_ONLY", false),
	}
}

func getenvDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseScreenRes parses an "WIDTHxHEIGHT" resolution string (e.g.
// "1920x1080"), returning the given fallback dimensions when raw is empty
// or malformed.
func parseScreenRes(raw string, fallbackW, fallbackH int) (int, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallbackW, fallbackH
	}
	parts := strings.SplitN(strings.ToLower(raw), "x", 2)
	if len(parts) != 2 {
		return fallbackW, fallbackH
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return fallbackW, fallbackH
	}
	return w, h
}
