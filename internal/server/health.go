package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type ComponentHealth struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

type Health struct {
	Status        HealthStatus               `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version,omitempty"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentHealth `json:"components"`
}

// handleHealth pings the database; an unreachable database answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{
		Status:        HealthStatusHealthy,
		Timestamp:     time.Now().UTC(),
		Version:       s.cfg.Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Components:    map[string]ComponentHealth{},
	}

	if s.db != nil {
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := s.db.Ping(ctx)
		cancel()
		if err != nil {
			h.Status = HealthStatusUnhealthy
			h.Components["database"] = ComponentHealth{Status: "down", Message: "database ping failed"}
		} else {
			h.Components["database"] = ComponentHealth{
				Status:    "up",
				LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
			}
		}
	}

	status := http.StatusOK
	if h.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(h)
}
