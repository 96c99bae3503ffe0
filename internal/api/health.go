package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Pinger is a dependency the readiness probe can check.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	postgres Pinger
	redis    Pinger
	env      string
	version  string
}

func NewHealthHandler(pgPool *pgxpool.Pool, rdb *redis.Client, env, version string) *HealthHandler {
	h := &HealthHandler{env: env, version: version}
	if pgPool != nil {
		h.postgres = pgPool.Ping
	}
	if rdb != nil {
		h.redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return h
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness fails when Postgres is down. Redis only carries the change feed
// and the sweep lock, so losing it degrades the service without stopping it.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{
		"postgres": probe(ctx, h.postgres),
		"redis":    probe(ctx, h.redis),
	}

	status := "ok"
	switch {
	case deps["postgres"] == "down":
		status = "error"
	case deps["redis"] == "down":
		status = "degraded"
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}

func probe(ctx context.Context, ping Pinger) string {
	if ping == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := ping(ctx); err != nil {
		return "down"
	}
	return "ok"
}
