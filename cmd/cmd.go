// Package cmd provides the CLI commands for the honeyrag service.
//
// Commands:
//   - serve: HTTP API server with SSE streaming (the default deployment mode)
//   - ask: one-shot question from the command line
//   - version: build and configuration information
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/honeyrag/honeyrag/internal/log"
)

// Execute is the main entry point for the honeyrag CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ask":
		return runAsk()
	case "version", "--version", "-v":
		return runVersion()
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("HoneyRAG - Local RAG agent powered by vLLM + LightRAG")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  honeyrag serve [addr]    Start the HTTP API server (default: 0.0.0.0:8081)")
	fmt.Println("  honeyrag ask <question>  Ask a one-shot question")
	fmt.Println("  honeyrag version         Show version and configuration")
	fmt.Println("  honeyrag help            Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  VLLM_MODEL               Model served by vLLM (default: Qwen/Qwen3-8B)")
	fmt.Println("  VLLM_URL                 vLLM OpenAI-compatible URL (default: http://localhost:8000/v1)")
	fmt.Println("  LIGHTRAG_PORT            LightRAG server port (default: 9621)")
	fmt.Println("  LIGHTRAG_URL             Full LightRAG URL (overrides LIGHTRAG_PORT)")
	fmt.Println("  AGNO_PORT                HTTP server port (default: 8081)")
	fmt.Println("  HONEYRAG_DB_PATH         Session database path (default: honeyrag.db)")
	fmt.Println("  DEBUG                    Enable debug logging")
	fmt.Println()
	fmt.Println("Shared settings can also live in configs/.env or ~/.honeyrag/config.yaml.")
}
