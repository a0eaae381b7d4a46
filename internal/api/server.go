package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/honeyrag/honeyrag/internal/session"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Streaming chat turns can take a while to wind down.
	ShutdownTimeout = 30 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generous because SSE chat streams stay open while the model generates.
	WriteTimeout = 2 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Agent        ChatAgent      // Required
	SessionStore *session.Store // Required
	Knowledge    Ingester       // Optional: nil disables document ingestion
	Retrieval    Pinger         // Optional: nil makes /ready always return 503
	CORSOrigins  []string       // Allowed origins for CORS
	TrustProxy   bool           // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst    int            // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if cfg.SessionStore == nil {
		return nil, errors.New("session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{agent: cfg.Agent, logger: logger}
	sh := &sessionHandler{store: cfg.SessionStore, logger: logger}
	ah := &agentsHandler{agents: []ChatAgent{cfg.Agent}, logger: logger}
	srch := &searchHandler{store: cfg.SessionStore, logger: logger}
	st := &statsHandler{store: cfg.SessionStore, logger: logger}
	dh := &documentHandler{knowledge: cfg.Knowledge, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/agents", ah.list)

	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	mux.HandleFunc("GET /api/v1/sessions", sh.list)
	mux.HandleFunc("POST /api/v1/sessions", sh.create)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.messages)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.delete)

	mux.HandleFunc("GET /api/v1/search", srch.search)
	mux.HandleFunc("POST /api/v1/documents", dh.ingest)
	mux.HandleFunc("GET /api/v1/stats", st.stats)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Retrieval, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler with tracing applied.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "honeyrag.api")
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
