// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the Pathwise orchestration HTTP server.
//
// This is the main entry point for the containerized orchestrator service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12310)
//   - PATHWISE_DATA_DIR: Badger database directory (default: ./data)
//   - LLM_BACKEND_TYPE: text-generation provider - openai, ollama, none (default: none)
//   - OPENAI_API_KEY: API key when LLM_BACKEND_TYPE=openai
//   - OLLAMA_URI, OLLAMA_MODEL: endpoint and model when LLM_BACKEND_TYPE=ollama
//   - PATHWISE_SESSION_RETENTION: drop sessions untouched longer than this
//     duration, e.g. "720h" (default: disabled)
//   - PATHWISE_LOG_DIR: also write JSON logs to this directory (optional)
//   - GIN_MODE: gin framework mode (default: release)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pathwise-ai/pathwise/pkg/logging"
	"github.com/pathwise-ai/pathwise/services/orchestrator"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "orchestrator",
		LogDir:  os.Getenv("PATHWISE_LOG_DIR"),
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := orchestrator.Config{
		Port:             getEnvInt("ORCHESTRATOR_PORT", 12310),
		DataDir:          getEnvString("PATHWISE_DATA_DIR", "./data"),
		LLMBackend:       getEnvString("LLM_BACKEND_TYPE", "none"),
		GinMode:          os.Getenv("GIN_MODE"),
		SessionRetention: getEnvDuration("PATHWISE_SESSION_RETENTION", 0),
	}

	slog.Info("Starting orchestrator",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"llm_backend", cfg.LLMBackend,
	)

	svc, err := orchestrator.New(cfg, logger.Slog())
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Shut down cleanly on SIGINT/SIGTERM so Badger closes its value log.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := svc.Shutdown(ctx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
	}()

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable parsed as a duration,
// or a default when unset or malformed.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("ignoring malformed duration", "env", key, "value", value)
	}
	return defaultValue
}
