// Package lightrag provides an HTTP client for a LightRAG server.
//
// The LightRAG server owns document storage, chunking, embedding and
// graph-based retrieval; this client only speaks its HTTP API:
//
//   - POST /query          - retrieve an answer or raw context for a query
//   - POST /documents/text - ingest a text document
//   - GET  /health         - liveness probe
//
// The client is safe for concurrent use.
package lightrag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sentinel errors for retrieval operations.
var (
	// ErrEmptyQuery indicates the query string is empty.
	ErrEmptyQuery = errors.New("empty query")

	// ErrUnavailable indicates the LightRAG server could not be reached.
	ErrUnavailable = errors.New("lightrag server unavailable")

	// ErrServer indicates the LightRAG server returned a non-2xx status.
	ErrServer = errors.New("lightrag server error")
)

// Query modes supported by the LightRAG server.
const (
	ModeNaive  = "naive"  // plain vector similarity
	ModeLocal  = "local"  // entity-centric graph retrieval
	ModeGlobal = "global" // relation-centric graph retrieval
	ModeHybrid = "hybrid" // local + global combined (default)
	ModeMix    = "mix"    // graph + vector combined
)

// DefaultTimeout bounds a single HTTP request to the server.
// Retrieval over large graphs can be slow, so this is generous.
const DefaultTimeout = 60 * time.Second

// maxErrorBodyBytes limits how much of an error response body is read
// for inclusion in error messages.
const maxErrorBodyBytes = 2048

// Client is a handle to a LightRAG server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the LightRAG server at baseURL.
// A nil logger falls back to slog.Default().
func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// QueryRequest is the payload for a retrieval query.
type QueryRequest struct {
	Query string `json:"query"`
	// Mode selects the retrieval strategy. Empty defaults to hybrid.
	Mode string `json:"mode,omitempty"`
	// TopK limits the number of retrieved entities/chunks. 0 = server default.
	TopK int `json:"top_k,omitempty"`
	// OnlyNeedContext asks for the raw retrieved context instead of a
	// server-side generated answer. The agent sets this: generation happens
	// locally against vLLM, not inside LightRAG.
	OnlyNeedContext bool `json:"only_need_context,omitempty"`
}

// QueryResult is the server's answer to a retrieval query.
type QueryResult struct {
	// Response holds the generated answer, or the raw context when
	// OnlyNeedContext was set.
	Response string `json:"response"`
}

// Query performs a retrieval query against the server.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}

	start := time.Now()
	var result QueryResult
	if err := c.post(ctx, "/query", req, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("lightrag query completed",
		"mode", req.Mode,
		"duration", time.Since(start),
		"response_bytes", len(result.Response),
	)
	return &result, nil
}

// InsertTextRequest is the payload for text ingestion.
type InsertTextRequest struct {
	Text string `json:"text"`
	// FileSource labels where the text came from; surfaced by the server
	// as the document's source reference.
	FileSource string `json:"file_source,omitempty"`
}

// InsertResult reports the outcome of an ingestion request.
type InsertResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// InsertText ingests a text document into the server's knowledge store.
// Ingestion is asynchronous on the server side: a success status means the
// document was accepted into the processing pipeline, not that indexing
// finished.
func (c *Client) InsertText(ctx context.Context, text, source string) (*InsertResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty document text", ErrEmptyQuery)
	}

	var result InsertResult
	if err := c.post(ctx, "/documents/text", InsertTextRequest{Text: text, FileSource: source}, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("lightrag document accepted", "source", source, "status", result.Status)
	return &result, nil
}

// Health probes the server's health endpoint.
// Returns nil when the server responds 200.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrServer, resp.StatusCode)
	}
	return nil
}

// WaitHealthy polls the health endpoint with exponential backoff until the
// server is up, ctx is canceled, or maxWait elapses. The stack launcher
// starts LightRAG alongside this service, so startup order is not guaranteed.
func (c *Client) WaitHealthy(ctx context.Context, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = maxWait

	operation := func() error {
		return c.Health(ctx)
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("waiting for lightrag at %s: %w", c.baseURL, err)
	}
	return nil
}

// post sends a JSON POST request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%w: %s returned %d: %s", ErrServer, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}
