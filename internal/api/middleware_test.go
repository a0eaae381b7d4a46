package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/honeyrag/honeyrag/internal/log"
)

func TestRecoveryMiddleware(t *testing.T) {
	logger := log.NewNop()

	t.Run("no panic passes through", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("success"))
		})

		wrapped := recoveryMiddleware(logger)(handler)
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "success", w.Body.String())
	})

	t.Run("panic returns 500", func(t *testing.T) {
		handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			panic("test panic")
		})

		wrapped := recoveryMiddleware(logger)(handler)
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "internal_error")
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("assigns a new id", func(t *testing.T) {
		var got string
		handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got, _ = requestIDFromContext(r.Context())
		})

		wrapped := requestIDMiddleware()(handler)
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.NotEmpty(t, got)
		assert.Equal(t, got, w.Header().Get("X-Request-ID"))
	})

	t.Run("reuses incoming id", func(t *testing.T) {
		handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {})

		wrapped := requestIDMiddleware()(handler)
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", "upstream-id")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		assert.Equal(t, "upstream-id", w.Header().Get("X-Request-ID"))
	})
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{Level: -4})

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	wrapped := loggingMiddleware(logger)(handler)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, buf.String(), "status=404")
}

func TestCORSMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := corsMiddleware([]string{"http://localhost:3000"})(handler)

	t.Run("allowed origin gets headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight returns 204", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestLoggingWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		w := httptest.NewRecorder()
		lw := &loggingWriter{w: w}

		lw.WriteHeader(http.StatusCreated)

		assert.Equal(t, http.StatusCreated, lw.statusCode)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("default status is 200", func(t *testing.T) {
		w := httptest.NewRecorder()
		lw := &loggingWriter{w: w}

		n, err := lw.Write([]byte("test"))

		assert.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, http.StatusOK, lw.statusCode)
		assert.Equal(t, int64(4), lw.bytesWritten)
	})
}
