package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeIngester records ingested text.
type fakeIngester struct {
	text   string
	source string
	err    error
}

func (f *fakeIngester) AddText(_ context.Context, text, source string) error {
	f.text = text
	f.source = source
	return f.err
}

func TestDocumentIngest(t *testing.T) {
	ing := &fakeIngester{}
	handler := newTestServer(t, ServerConfig{Knowledge: ing})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents",
		strings.NewReader(`{"text":"Bees communicate via waggle dance.","source":"bee-facts.txt"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "accepted")
	assert.Equal(t, "Bees communicate via waggle dance.", ing.text)
	assert.Equal(t, "bee-facts.txt", ing.source)
}

func TestDocumentIngestValidation(t *testing.T) {
	handler := newTestServer(t, ServerConfig{Knowledge: &fakeIngester{}})

	t.Run("empty text", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(`{"text":"   "}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(`{broken`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDocumentIngestBackendFailure(t *testing.T) {
	handler := newTestServer(t, ServerConfig{Knowledge: &fakeIngester{err: errors.New("lightrag down")}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(`{"text":"x"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "ingest_failed")
}

func TestDocumentIngestWithoutKnowledge(t *testing.T) {
	handler := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(`{"text":"x"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "knowledge_unavailable")
}
