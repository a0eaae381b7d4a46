package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// maxDocumentBytes limits document ingestion bodies to 10MB.
const maxDocumentBytes = 10 << 20

// Ingester accepts text into the knowledge base.
// *knowledge.Base satisfies it.
type Ingester interface {
	AddText(ctx context.Context, text, source string) error
}

// documentHandler handles knowledge ingestion.
type documentHandler struct {
	knowledge Ingester
	logger    *slog.Logger
}

// ingestRequest is the request body for document ingestion.
type ingestRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// ingest handles POST /api/v1/documents.
// Indexing happens asynchronously on the retrieval server, so acceptance
// is reported with 202.
func (h *documentHandler) ingest(w http.ResponseWriter, r *http.Request) {
	if h.knowledge == nil {
		writeError(w, http.StatusServiceUnavailable, "knowledge_unavailable", "knowledge base not configured", h.logger)
		return
	}

	var req ingestRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required", h.logger)
		return
	}

	if err := h.knowledge.AddText(r.Context(), req.Text, req.Source); err != nil {
		h.logger.Error("ingesting document", "error", err, "source", req.Source)
		writeError(w, http.StatusBadGateway, "ingest_failed", "failed to ingest document", h.logger)
		return
	}

	h.logger.Info("document accepted", "source", req.Source, "bytes", len(req.Text))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"}, h.logger)
}
