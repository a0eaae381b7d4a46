package api

import (
	"log/slog"
	"net/http"

	"github.com/honeyrag/honeyrag/internal/session"
)

// maxSearchQueryLength is the maximum allowed search query length in bytes.
const maxSearchQueryLength = 1000

// searchHandler handles the cross-session search endpoint.
type searchHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// search handles GET /api/v1/search?q=...&limit=20.
// Returns substring matches across all stored messages.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query parameter 'q' is required", h.logger)
		return
	}
	if len(query) > maxSearchQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}

	limit := parseIntParam(r, "limit", 20, 1, 100)

	results, err := h.store.SearchMessages(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("searching messages", "error", err, "query_len", len(query))
		writeError(w, http.StatusInternalServerError, "search_failed", "failed to search messages", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	}, h.logger)
}

// statsHandler handles the usage counters endpoint.
type statsHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// stats handles GET /api/v1/stats.
func (h *statsHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.logger.Error("getting stats", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "failed to get stats", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, stats, h.logger)
}
