package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/honeyrag/honeyrag/internal/session"
)

// Session validation constants.
const (
	maxTitleLength     = 100
	maxModelNameLength = 100
	defaultListLimit   = 100
	maxListLimit       = 1000
	maxListOffset      = 100000
)

// sessionHandler handles session CRUD endpoints.
type sessionHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// createSessionRequest is the request body for creating a session.
type createSessionRequest struct {
	Title     string `json:"title"`
	ModelName string `json:"modelName"`
}

// list handles GET /api/v1/sessions with pagination.
// Query parameters: limit (default 100, max 1000), offset (default 0).
func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultListLimit, 1, maxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, maxListOffset)

	sessions, err := h.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
		"limit":    limit,
		"offset":   offset,
	}, h.logger)
}

// create handles POST /api/v1/sessions.
func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	if len(req.Title) > maxTitleLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "title too long (max 100 characters)", h.logger)
		return
	}
	if len(req.ModelName) > maxModelNameLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "modelName too long (max 100 characters)", h.logger)
		return
	}

	if req.Title == "" {
		req.Title = "New Session"
	}

	sess, err := h.store.CreateSession(r.Context(), req.Title, req.ModelName)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create session", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, sess, h.logger)
}

// get handles GET /api/v1/sessions/{id}.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	sess, err := h.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("getting session", "error", err, "session", sessionID)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get session", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, sess, h.logger)
}

// messages handles GET /api/v1/sessions/{id}/messages.
func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	// Existence check first so unknown sessions return 404, not an empty list.
	if _, err := h.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("getting session", "error", err, "session", sessionID)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get session", h.logger)
		return
	}

	limit := parseIntParam(r, "limit", 0, 0, maxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, maxListOffset)

	msgs, err := h.store.GetMessages(r.Context(), sessionID, limit, offset)
	if err != nil {
		h.logger.Error("getting messages", "error", err, "session", sessionID)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get messages", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"total":    len(msgs),
	}, h.logger)
}

// delete handles DELETE /api/v1/sessions/{id}.
func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.DeleteSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("deleting session", "error", err, "session", sessionID)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete session", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseSessionID extracts and validates the {id} path value.
func parseSessionID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid session id", logger)
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
