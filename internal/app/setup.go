package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/honeyrag/honeyrag/internal/agent"
	"github.com/honeyrag/honeyrag/internal/config"
	"github.com/honeyrag/honeyrag/internal/knowledge"
	"github.com/honeyrag/honeyrag/internal/lightrag"
	"github.com/honeyrag/honeyrag/internal/model"
	"github.com/honeyrag/honeyrag/internal/observability"
	"github.com/honeyrag/honeyrag/internal/session"
)

// Version is the service version, overridable at build time with
// -ldflags "-X github.com/honeyrag/honeyrag/internal/app.Version=...".
var Version = "dev"

// Setup creates and initializes the application from configuration.
// cfg must already be validated. Call Close() on the returned App.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	otelShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "honeyrag",
		Version:     Version,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = otelShutdown

	a.Retrieval = lightrag.New(cfg.RetrievalURL(), logger)

	kb, err := knowledge.New(knowledge.Config{
		Name:        KnowledgeName,
		Description: KnowledgeDescription,
		Retriever:   a.Retrieval,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating knowledge base: %w", err)
	}
	a.Knowledge = kb

	mdl, err := model.New(model.Config{
		BaseURL: cfg.VLLMURL,
		APIKey:  cfg.VLLMAPIKey,
		Model:   cfg.ModelName,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	a.Model = mdl

	store, err := session.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	a.Sessions = store

	ag, err := agent.New(agent.Config{
		ID:           AgentID,
		Name:         AgentName,
		Description:  AgentDescription,
		Instructions: agentInstructions,

		Model:     mdl,
		Knowledge: kb,
		Sessions:  store,

		SearchKnowledge:       true,
		AddKnowledgeToContext: true,
		ReadChatHistory:       true,
		Markdown:              true,

		MaxHistoryMessages: cfg.MaxHistoryMessages,
		Temperature:        cfg.Temperature,
		MaxTokens:          cfg.MaxTokens,

		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	a.Agent = ag

	logger.Info("application initialized",
		"agent", AgentID,
		"model", cfg.ModelName,
		"retrieval", cfg.RetrievalURL(),
		"db", cfg.DBPath,
	)

	return a, nil
}
