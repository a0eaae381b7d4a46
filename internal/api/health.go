package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// readinessTimeout bounds the retrieval-server ping during readiness checks.
const readinessTimeout = 5 * time.Second

// Pinger reports whether an upstream dependency is reachable.
// *lightrag.Client satisfies it.
type Pinger interface {
	Health(ctx context.Context) error
}

// health is the liveness probe for Docker/Kubernetes.
// Returns 200 OK if the process is alive.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness is the readiness probe. It pings the retrieval server so
// traffic is only routed once answers can actually be grounded.
func readiness(retrieval Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if retrieval == nil {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "retrieval server not configured", logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := retrieval.Health(ctx); err != nil {
			logger.Warn("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", "retrieval server not ready", logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	}
}
