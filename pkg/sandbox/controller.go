package sandbox

import (
	"context"
	"net/http"
	"time"
)

// ControllerConfig configures a Controller's connection to the AdsPower
// local API, read from config.AdsPowerConfig by the caller.
type ControllerConfig struct {
	BaseURL        string
	Token          string
	RateLimitDelay time.Duration
}

// Controller is a thin HTTP client for the AdsPower local API, grounded on
// original_source's _adspower_api_call (a base URL plus a token query
// param against a local AdsPower daemon). This repo only needs the
// reachability check FORCE_ADSPOWER_ONLY depends on; profile
// creation/teardown is intentionally out of scope for the core this
// exercise rewrites (spec.md's "browser profile lifecycle" collaborator
// contract).
type Controller struct {
	cfg    ControllerConfig
	client *http.Client
}

// NewController constructs a Controller for cfg. A zero-value BaseURL or
// Token is valid — Reachable simply reports false in that case, matching
// the original's "未配置 ADSP_TOKEN，跳过 AdsPower" (no token configured,
// skip AdsPower) behavior.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Configured reports whether a base URL and token were supplied at all,
// without making a network call.
func (c *Controller) Configured() bool {
	return c != nil && c.cfg.BaseURL != "" && c.cfg.Token != ""
}

// Reachable reports whether the AdsPower local API answers at BaseURL. A
// nil Controller, or one missing BaseURL/Token, is never reachable. Any
// transport error (connection refused, DNS failure, timeout) is treated
// as unreachable rather than propagated, since the caller's only decision
// is "proceed" vs "fail with a configuration error".
func (c *Controller) Reachable(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/api/v1/user/list?page_size=1&token="+c.cfg.Token, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// RateLimitDelay returns the configured inter-call delay, mirroring the
// original's adsp_rate_delay_ms throttle between successive AdsPower API
// calls.
func (c *Controller) RateLimitDelay() time.Duration {
	if c == nil {
		return 0
	}
	return c.cfg.RateLimitDelay
}
