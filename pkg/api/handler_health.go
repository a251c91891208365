package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// agentHealth is one agent's reported status for the /health response:
// {status, last_error, calls, failures, success_rate}.
type agentHealth struct {
	Status      string  `json:"status"`
	LastError   string  `json:"last_error,omitempty"`
	Calls       int64   `json:"calls"`
	Failures    int64   `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
}

// healthHandler implements GET /health: overall status plus a per-agent
// breakdown, grounded on tarsy's healthHandler (database + worker_pool
// checks folded into one status). An agent with a recorded LastError is
// reported unhealthy and turns the overall status to degraded; the overall
// status is never unhealthy here, so the response is always 200.
func (s *Server) healthHandler(c *gin.Context) {
	overall := healthStatusHealthy
	agentsOut := make(map[string]agentHealth, len(s.agents))

	for _, report := range s.rt.Health() {
		status := healthStatusHealthy
		lastErr := ""
		if report.LastError != nil {
			status = healthStatusUnhealthy
			lastErr = report.LastError.Error()
			overall = healthStatusDegraded
		}

		var calls, failures int64
		var successRate float64
		if a, ok := s.agents[report.Type]; ok {
			snap := a.Metrics().Snapshot()
			calls, failures = snap.Calls, snap.Failures
			if calls > 0 {
				successRate = float64(calls-failures) / float64(calls)
			}
		}

		agentsOut[string(report.Type)] = agentHealth{
			Status:      status,
			LastError:   lastErr,
			Calls:       calls,
			Failures:    failures,
			SuccessRate: successRate,
		}
	}

	httpStatus := http.StatusOK
	if overall == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status": overall,
		"agents": agentsOut,
	})
}
