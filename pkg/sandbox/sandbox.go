// Package sandbox implements the Browser Sandbox Manager: it bounds how
// many fingerprinted browser profiles may run concurrently, places each
// profile's window on a fixed screen grid, and tracks a batch's remote
// profile group across runs via a small on-disk cache.
//
// Grounded directly on original_source's PlaywrightExecutorAgent (the
// AdsPower integration in
// ui-automation/backend/app/agents/web/playwright_script_executor_agent.py):
// its module-level asyncio.Semaphore concurrency gate, _calc_tile_bounds
// grid math, and _ensure_adspower_group/_cache_group JSON file cache.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

// DefaultMaxConcurrency mirrors the original's default AdsPower concurrency
// cap (max_conc).
const DefaultMaxConcurrency = 15

// Semaphore bounds the number of concurrently open browser sandboxes.
// Acquire blocks until a slot is free or ctx is cancelled; Release always
// returns a slot, even if the caller never successfully used it, so a
// reservation is symmetric with its release on every code path (the same
// reserve/release discipline as the Agent Runtime's registration).
type Semaphore struct {
	slots chan struct{}
	max   int

	mu    sync.Mutex
	inUse int
}

// NewSemaphore constructs a Semaphore with the given capacity, or
// DefaultMaxConcurrency if capacity <= 0.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = DefaultMaxConcurrency
	}
	return &Semaphore{slots: make(chan struct{}, capacity), max: capacity}
}

// Acquire blocks until a slot is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		s.mu.Lock()
		s.inUse++
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Calling Release without a matching successful
// Acquire is a caller error; it is not guarded against here, mirroring the
// original's raw semaphore.release() call.
func (s *Semaphore) Release() {
	<-s.slots
	s.mu.Lock()
	s.inUse--
	s.mu.Unlock()
}

// InUse reports how many slots are currently held, for observability
// (mirrors the original's "[ADSP concurrency] in_use=X/Y" log line).
func (s *Semaphore) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// Capacity returns the semaphore's total slot count.
func (s *Semaphore) Capacity() int { return s.max }

// GridConfig describes the single-screen tiling grid profile windows are
// placed on, defaulting to the original's 5x2 layout.
type GridConfig struct {
	Cols   int
	Rows   int
	Margin int
	Screen ScreenSize
}

// ScreenSize is the host's primary display resolution in pixels.
type ScreenSize struct {
	Width  int
	Height int
}

// DefaultGridConfig mirrors ADSP_GRID_COLS/ADSP_GRID_ROWS/ADSP_MARGIN_PX's
// defaults (5 cols, 2 rows, 8px margin) against a 1920x1080 fallback
// screen.
func DefaultGridConfig() GridConfig {
	return GridConfig{Cols: 5, Rows: 2, Margin: 8, Screen: ScreenSize{Width: 1920, Height: 1080}}
}

// TileBounds computes the pixel bounds of the grid cell at index (0-based,
// row-major), clamping out-of-range indices to the last valid cell and
// enforcing a 200x150 minimum cell size — a direct translation of
// _calc_tile_bounds.
func TileBounds(cfg GridConfig, index, total int) models.WindowBounds {
	if total <= 0 {
		total = 1
	}
	if index < 0 {
		index = 0
	}
	if index >= total {
		index = total - 1
	}

	cols := cfg.Cols
	if cols <= 0 {
		cols = 1
	}
	rows := cfg.Rows
	if rows <= 0 {
		rows = 1
	}

	cellW := (cfg.Screen.Width - (cols+1)*cfg.Margin) / cols
	if cellW < 200 {
		cellW = 200
	}
	cellH := (cfg.Screen.Height - (rows+1)*cfg.Margin) / rows
	if cellH < 150 {
		cellH = 150
	}

	r := index / cols
	c := index % cols
	return models.WindowBounds{
		Left:   cfg.Margin + c*(cellW+cfg.Margin),
		Top:    cfg.Margin + r*(cellH+cfg.Margin),
		Width:  cellW,
		Height: cellH,
	}
}

// GroupCache persists batch-ID-to-remote-profile-group-ID mappings across
// runs, mirroring _cache_group/_ensure_adspower_group's JSON file cache.
type GroupCache struct {
	path string
	mu   sync.Mutex
}

// NewGroupCache constructs a GroupCache backed by the file at path.
func NewGroupCache(path string) *GroupCache {
	return &GroupCache{path: path}
}

// Lookup returns the cached group ID for batchID, or "" if absent.
func (g *GroupCache) Lookup(batchID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cache, err := g.read()
	if err != nil {
		return "", err
	}
	return cache[batchID], nil
}

// Store records batchID's group ID, creating the cache file if absent.
func (g *GroupCache) Store(batchID, groupID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cache, err := g.read()
	if err != nil {
		return err
	}
	cache[batchID] = groupID
	return g.write(cache)
}

func (g *GroupCache) read() (map[string]string, error) {
	data, err := os.ReadFile(g.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("sandbox: read group cache: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]string), nil
	}
	var cache map[string]string
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("sandbox: parse group cache: %w", err)
	}
	return cache, nil
}

func (g *GroupCache) write(cache map[string]string) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("sandbox: marshal group cache: %w", err)
	}
	if err := os.WriteFile(g.path, data, 0o644); err != nil {
		return fmt.Errorf("sandbox: write group cache: %w", err)
	}
	return nil
}
