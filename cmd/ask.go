package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/honeyrag/honeyrag/internal/app"
	"github.com/honeyrag/honeyrag/internal/config"
)

// runAsk answers a one-shot question from the command line.
// A throwaway session is created so the agent pipeline runs exactly as it
// does behind the HTTP API.
func runAsk() error {
	question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if question == "" {
		return fmt.Errorf("usage: honeyrag ask <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	sess, err := a.Sessions.CreateSession(ctx, "ask", cfg.ModelName)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		_ = a.Sessions.DeleteSession(context.Background(), sess.ID)
	}()

	// Stream chunks to stdout as they arrive.
	resp, err := a.Agent.RunStream(ctx, sess.ID, question, func(_ context.Context, chunk string) error {
		_, werr := fmt.Print(chunk)
		return werr
	})
	if err != nil {
		return fmt.Errorf("running agent: %w", err)
	}
	fmt.Println()

	if len(resp.References) > 0 {
		fmt.Println()
		fmt.Println("References:")
		for _, ref := range resp.References {
			fmt.Printf("  - %s\n", ref)
		}
	}

	return nil
}
