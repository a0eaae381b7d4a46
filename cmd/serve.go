package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeyrag/honeyrag/internal/api"
	"github.com/honeyrag/honeyrag/internal/app"
	"github.com/honeyrag/honeyrag/internal/config"
)

// retrievalWaitTimeout bounds the startup wait for the LightRAG server.
// The stack launcher usually brings LightRAG up first, but a cold start
// can take a while to load its storage.
const retrievalWaitTimeout = 60 * time.Second

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ServeAddr())
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting honeyrag", "version", app.Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Wait for the retrieval server, but serve anyway if it stays down:
	// /ready keeps reporting 503 and turns degrade to no-context answers.
	if err := a.Retrieval.WaitHealthy(ctx, retrievalWaitTimeout); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("retrieval server not healthy, serving degraded", "error", err)
	}

	srv, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Agent:        a.Agent,
		SessionStore: a.Sessions,
		Knowledge:    a.Knowledge,
		Retrieval:    a.Retrieval,
		CORSOrigins:  cfg.CORSOrigins,
		TrustProxy:   cfg.TrustProxy,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := srv.Run(ctx, addr); err != nil {
		return fmt.Errorf("running server: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
