// Package main provides the lightweight MCP entry point for the genotype insight server.
// It requires no external services: the reference table is embedded (or read from a file),
// results are cached in memory and analyses are stored in SQLite.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/genotype-insight-server/internal/config"
	"github.com/genotype-insight-server/internal/mcp"
)

func main() {
	// stdout carries MCP traffic in stdio mode
	log.SetOutput(os.Stderr)

	cfg := config.LoadLiteConfig()

	log.Printf("Starting genotype MCP server (Lite) with transport: %s", cfg.Transport)
	log.Printf("Data directory: %s", cfg.DataDir)

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}

	log.Println("Genotype MCP server (Lite) stopped")
}
