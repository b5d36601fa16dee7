package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthChecker provides liveness and readiness probes
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, redis *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns 200 whenever the process is serving requests
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness checks all dependencies and returns 503 if unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// Check probes the database and redis cache
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.db != nil {
		start := time.Now()
		dep := DependencyStatus{Status: StatusHealthy}
		if err := h.db.PingContext(ctx); err != nil {
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
			status.Status = StatusUnhealthy
		}
		dep.LatencyMS = time.Since(start).Milliseconds()
		status.Dependencies["database"] = dep
	}

	if h.redis != nil {
		start := time.Now()
		dep := DependencyStatus{Status: StatusHealthy}
		if err := h.redis.Ping(ctx).Err(); err != nil {
			// The cache is optional; losing it degrades reads but serves traffic.
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
			if status.Status != StatusUnhealthy {
				status.Status = StatusDegraded
			}
		}
		dep.LatencyMS = time.Since(start).Milliseconds()
		status.Dependencies["redis"] = dep
	}

	return status
}
