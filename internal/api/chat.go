package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/honeyrag/honeyrag/internal/agent"
	"github.com/honeyrag/honeyrag/internal/model"
)

// maxChatBodyBytes limits chat request bodies to 1MB.
const maxChatBodyBytes = 1 << 20

// ChatAgent is the agent surface consumed by the chat endpoints.
// *agent.Agent satisfies it.
type ChatAgent interface {
	ID() string
	Name() string
	Description() string
	ModelName() string
	Run(ctx context.Context, sessionID uuid.UUID, query string) (*agent.Response, error)
	RunStream(ctx context.Context, sessionID uuid.UUID, query string, cb model.StreamCallback) (*agent.Response, error)
}

// chatHandler handles the synchronous and streaming chat endpoints.
type chatHandler struct {
	agent  ChatAgent
	logger *slog.Logger
}

// chatRequest is the request body for both chat endpoints.
type chatRequest struct {
	SessionID string `json:"sessionId"`
	Query     string `json:"query"`
}

// chatResponse is the response body of the synchronous endpoint.
type chatResponse struct {
	Response   string   `json:"response"`
	SessionID  string   `json:"sessionId"`
	References []string `json:"references,omitempty"`
}

// parseChatRequest decodes and validates the chat request body.
func parseChatRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, error) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid request body: %w", err)
	}
	if req.SessionID == "" {
		return uuid.Nil, "", errors.New("sessionId is required")
	}
	if req.Query == "" {
		return uuid.Nil, "", errors.New("query is required")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid sessionId: %w", err)
	}
	return sessionID, req.Query, nil
}

// send handles POST /api/v1/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	sessionID, query, err := parseChatRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	resp, err := h.agent.Run(r.Context(), sessionID, query)
	if err != nil {
		status, code := chatErrorStatus(err)
		h.logger.Error("chat turn failed", "error", err, "session", sessionID)
		writeError(w, status, code, err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:   resp.Text,
		SessionID:  sessionID.String(),
		References: resp.References,
	}, h.logger)
}

// chatErrorStatus maps agent errors to HTTP status and a stable code.
func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrInvalidSession):
		return http.StatusNotFound, "invalid_session"
	case errors.Is(err, agent.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, agent.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model_unavailable"
	default:
		return http.StatusInternalServerError, "execution_failed"
	}
}

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // Partial response text
	EventDone  = "done"  // Stream completed successfully
	EventError = "error" // Error occurred during streaming
)

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes successfully.
type DonePayload struct {
	Response   string   `json:"response"`
	SessionID  string   `json:"sessionId"`
	References []string `json:"references,omitempty"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// stream handles POST /api/v1/chat/stream.
// Streams partial responses as Server-Sent Events while the model generates.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID, query, err := parseChatRequest(w, r)
	if err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "invalid_request", Message: err.Error()})
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "session", sessionID)

	resp, err := h.agent.RunStream(ctx, sessionID, query, func(cctx context.Context, chunk string) error {
		select {
		case <-cctx.Done():
			return cctx.Err()
		default:
		}
		return writeEvent(w, flusher, EventChunk, ChunkPayload{Text: chunk})
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "session", sessionID)
			return
		}
		h.handleStreamError(w, flusher, err)
		return
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:   resp.Text,
		SessionID:  sessionID.String(),
		References: resp.References,
	})

	h.logger.Info("SSE stream completed", "session", sessionID, "response_len", len(resp.Text))
}

// handleStreamError maps agent errors to SSE error events.
func (h *chatHandler) handleStreamError(w io.Writer, f http.Flusher, err error) {
	_, code := chatErrorStatus(err)
	h.logger.Error("stream failed", "error", err, "code", code)
	_ = writeEvent(w, f, EventError, ErrorPayload{Code: code, Message: err.Error()})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
