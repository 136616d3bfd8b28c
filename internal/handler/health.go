package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/salonpos/access-service/internal/client"
	"github.com/salonpos/access-service/internal/config"
	"github.com/salonpos/access-service/internal/util/logger"
)

var startTime = time.Now()

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      HealthStatus           `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Version     string                 `json:"version,omitempty"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker interface for implementing health checks
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// HealthHandler handles health check requests
type HealthHandler struct {
	config   *config.Config
	checkers []HealthChecker
	version  string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cfg *config.Config, version string, db *sql.DB, redis *client.RedisClient) *HealthHandler {
	h := &HealthHandler{
		config:  cfg,
		version: version,
	}

	if db != nil {
		h.checkers = append(h.checkers, &databaseChecker{db: db})
	}
	if redis != nil {
		h.checkers = append(h.checkers, &redisChecker{rc: redis})
	}
	h.checkers = append(h.checkers, &applicationChecker{config: cfg})

	logger.Info("Health handler initialized with %d checkers", len(h.checkers))
	return h
}

// ServeHTTP handles the /healthz endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:      HealthStatusHealthy,
		Timestamp:   time.Now().UTC(),
		Version:     h.version,
		Environment: h.config.Env,
		Uptime:      time.Since(startTime).String(),
		Checks:      make(map[string]CheckResult),
	}

	overallStatus := HealthStatusHealthy
	for _, checker := range h.checkers {
		checkStart := time.Now()
		result := checker.Check(ctx)
		result.Latency = time.Since(checkStart).String()
		response.Checks[checker.Name()] = result

		switch result.Status {
		case HealthStatusDegraded:
			if overallStatus != HealthStatusUnhealthy {
				overallStatus = HealthStatusDegraded
			}
		case HealthStatusUnhealthy:
			overallStatus = HealthStatusUnhealthy
		}
	}
	response.Status = overallStatus

	statusCode := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode health response: %v", err)
	}
}

// LivenessHandler handles the /livez endpoint
func (h *HealthHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "live - uptime: %s\n", time.Since(startTime).String())
}

// ReadinessHandler handles the /readyz endpoint
func (h *HealthHandler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, checker := range h.checkers {
		if checker.Name() != "database" {
			continue
		}
		if result := checker.Check(ctx); result.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "not ready - database: %s\n", result.Error)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ready")
}

type databaseChecker struct {
	db *sql.DB
}

func (d *databaseChecker) Name() string { return "database" }

func (d *databaseChecker) Check(ctx context.Context) CheckResult {
	if err := d.db.PingContext(ctx); err != nil {
		logger.Error("Database ping error: %v", err)
		return CheckResult{
			Status: HealthStatusUnhealthy,
			Error:  fmt.Sprintf("ping failed: %v", err),
		}
	}
	return CheckResult{
		Status:  HealthStatusHealthy,
		Message: "database connection successful",
	}
}

type redisChecker struct {
	rc *client.RedisClient
}

func (r *redisChecker) Name() string { return "redis" }

func (r *redisChecker) Check(ctx context.Context) CheckResult {
	if err := r.rc.HealthCheck(ctx); err != nil {
		// Redis only backs the rate limiter, which fails open; degraded, not down.
		return CheckResult{
			Status: HealthStatusDegraded,
			Error:  err.Error(),
		}
	}
	return CheckResult{
		Status:  HealthStatusHealthy,
		Message: "redis connection successful",
	}
}

type applicationChecker struct {
	config *config.Config
}

func (a *applicationChecker) Name() string { return "application" }

func (a *applicationChecker) Check(ctx context.Context) CheckResult {
	if !a.config.IsDevelopment() && a.config.Door.Secret == "" {
		return CheckResult{
			Status:  HealthStatusUnhealthy,
			Message: "door secret not configured outside development",
		}
	}
	return CheckResult{
		Status:  HealthStatusHealthy,
		Message: "application configuration is valid",
	}
}
