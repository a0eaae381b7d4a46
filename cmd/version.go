package cmd

import (
	"fmt"

	"github.com/honeyrag/honeyrag/internal/app"
	"github.com/honeyrag/honeyrag/internal/config"
)

// runVersion prints version and effective configuration.
func runVersion() error {
	fmt.Printf("honeyrag %s\n", app.Version)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.ModelName)
	fmt.Printf("  vLLM URL: %s\n", cfg.VLLMURL)
	fmt.Printf("  LightRAG URL: %s\n", cfg.RetrievalURL())
	fmt.Printf("  Serve address: %s\n", cfg.ServeAddr())
	fmt.Printf("  Database: %s\n", cfg.DBPath)
	fmt.Printf("  Max history messages: %d\n", cfg.MaxHistoryMessages)

	return nil
}
