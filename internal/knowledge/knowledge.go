// Package knowledge associates a named knowledge base with its retrieval backend.
//
// The knowledge base does not store documents itself: document storage,
// chunking, embedding and ranking live in the external LightRAG server. This
// package pairs a name and description with a Retriever and exposes search
// and ingestion in terms the agent understands.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeyrag/honeyrag/internal/lightrag"
)

// ErrNoRetriever indicates the knowledge base was built without a retrieval backend.
var ErrNoRetriever = errors.New("no retriever configured")

// DefaultTopK is the number of results requested when the caller does not specify one.
const DefaultTopK = 5

// Retriever is the retrieval backend consumed by a knowledge base.
// *lightrag.Client satisfies it; tests substitute fakes.
type Retriever interface {
	Query(ctx context.Context, req lightrag.QueryRequest) (*lightrag.QueryResult, error)
	InsertText(ctx context.Context, text, source string) (*lightrag.InsertResult, error)
	Health(ctx context.Context) error
}

// Document is a unit of retrieved knowledge handed to the agent.
type Document struct {
	Content string // Retrieved context text
	Source  string // Where the content came from (best effort)
}

// Base is a named knowledge base backed by a Retriever.
type Base struct {
	Name        string
	Description string

	retriever Retriever
	logger    *slog.Logger
}

// Config contains required parameters for a knowledge base.
type Config struct {
	Name        string
	Description string
	Retriever   Retriever
	Logger      *slog.Logger
}

// New creates a knowledge base descriptor.
func New(cfg Config) (*Base, error) {
	if cfg.Retriever == nil {
		return nil, ErrNoRetriever
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{
		Name:        cfg.Name,
		Description: cfg.Description,
		retriever:   cfg.Retriever,
		logger:      logger,
	}, nil
}

// Search retrieves context relevant to query from the backend.
// topK <= 0 uses DefaultTopK. The backend returns a single context block;
// it is wrapped in a one-element slice so callers are insulated from the
// backend's response shape.
func (b *Base) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	result, err := b.retriever.Query(ctx, lightrag.QueryRequest{
		Query:           query,
		Mode:            lightrag.ModeHybrid,
		TopK:            topK,
		OnlyNeedContext: true,
	})
	if err != nil {
		return nil, fmt.Errorf("searching knowledge base %q: %w", b.Name, err)
	}

	content := strings.TrimSpace(result.Response)
	if content == "" {
		b.logger.Debug("knowledge search returned no context", "base", b.Name)
		return nil, nil
	}

	return []Document{{Content: content, Source: b.Name}}, nil
}

// AddText ingests a text document into the backend store.
func (b *Base) AddText(ctx context.Context, text, source string) error {
	result, err := b.retriever.InsertText(ctx, text, source)
	if err != nil {
		return fmt.Errorf("adding document to %q: %w", b.Name, err)
	}
	b.logger.Info("document submitted to knowledge base",
		"base", b.Name,
		"source", source,
		"status", result.Status,
	)
	return nil
}

// Status reports whether the retrieval backend is reachable and healthy.
func (b *Base) Status(ctx context.Context) error {
	if err := b.retriever.Health(ctx); err != nil {
		return fmt.Errorf("knowledge base %q backend: %w", b.Name, err)
	}
	return nil
}
