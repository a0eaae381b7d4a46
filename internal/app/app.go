// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the retrieval client, knowledge base,
// model client, session store and agent from configuration. Construction is
// linear: each component is built from the previous ones, and a failure at
// any step tears down everything already initialized.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/honeyrag/honeyrag/internal/agent"
	"github.com/honeyrag/honeyrag/internal/config"
	"github.com/honeyrag/honeyrag/internal/knowledge"
	"github.com/honeyrag/honeyrag/internal/lightrag"
	"github.com/honeyrag/honeyrag/internal/model"
	"github.com/honeyrag/honeyrag/internal/session"
)

// Agent identity. The runtime registers exactly one agent.
const (
	AgentID          = "honeyrag-agent"
	AgentName        = "HoneyRAG Agent"
	AgentDescription = "HoneyRAG Agent - Local RAG powered by vLLM + LightRAG"

	KnowledgeName        = "HoneyRAG Knowledge"
	KnowledgeDescription = "Knowledge base powered by LightRAG"
)

// agentInstructions is the fixed instruction list prepended to every turn.
var agentInstructions = []string{
	"You are a helpful assistant with access to a knowledge base.",
	"ALWAYS search the knowledge base to find information before answering questions.",
	"Be concise and accurate in your responses.",
	"Include references to source documents when available.",
}

// closeTimeout bounds trace flushing during shutdown.
const closeTimeout = 5 * time.Second

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Retrieval *lightrag.Client
	Knowledge *knowledge.Base
	Model     *model.Client
	Sessions  *session.Store
	Agent     *agent.Agent

	otelShutdown func(context.Context) error
}

// Close releases all resources in reverse construction order.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	var firstErr error

	if a.Sessions != nil {
		if err := a.Sessions.Close(); err != nil {
			a.Logger.Warn("closing session store", "error", err)
			firstErr = err
		}
	}

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("flushing traces", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
