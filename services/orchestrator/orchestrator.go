// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the core orchestration service for Pathwise.
//
// This package contains the main Orchestrator type that wires together all
// components of the service: the durable Badger store, the context
// service with its in-process cache, the text-generation client, the
// workflow engine with its stage set, and the HTTP surface.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12310, DataDir: "./data"}
//	svc, err := orchestrator.New(cfg, slog.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/pathwise-ai/pathwise/services/llm"
	"github.com/pathwise-ai/pathwise/services/orchestrator/contextsvc"
	"github.com/pathwise-ai/pathwise/services/orchestrator/evaluation"
	"github.com/pathwise-ai/pathwise/services/orchestrator/middleware"
	"github.com/pathwise-ai/pathwise/services/orchestrator/observability"
	"github.com/pathwise-ai/pathwise/services/orchestrator/routes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/stages"
	"github.com/pathwise-ai/pathwise/services/orchestrator/storage/badgerstore"
	"github.com/pathwise-ai/pathwise/services/orchestrator/ttl"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Description
//
// Service abstracts the orchestrator lifecycle, enabling testing and
// alternative implementations. Run blocks until Shutdown is called or the
// server fails; Router exposes the gin engine for integration tests.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() should only be
// called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Shutdown stops the HTTP server gracefully and releases the store.
	Shutdown(ctx context.Context) error

	// Router returns the underlying gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// # Description
//
// Config centralizes all configuration for the orchestrator service.
// Values are populated from environment variables by cmd/orchestrator, or
// programmatically for testing. Zero values get defaults from New().
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int `validate:"omitempty,min=1,max=65535"`

	// DataDir is the Badger database directory. Empty selects an
	// in-memory database, which loses all state on process exit and is
	// intended for tests only.
	DataDir string

	// LLMBackend selects the text-generation collaborator.
	// Valid values: "openai", "ollama", "none". With "none" every stage
	// uses its deterministic fallback. Default: "none"
	LLMBackend string `validate:"omitempty,oneof=openai ollama none"`

	// GinMode sets the gin framework mode.
	// Valid values: "debug", "release", "test". Default: "release"
	GinMode string `validate:"omitempty,oneof=debug release test"`

	// CacheTTL bounds the age of context cache entries. Default: 1 hour
	CacheTTL time.Duration

	// CacheCapacity bounds the context cache entry count. Default: 1024
	CacheCapacity int `validate:"omitempty,min=1"`

	// LLMTimeout bounds each collaborator call. Default: 30s
	LLMTimeout time.Duration

	// SessionRetention removes sessions untouched for longer than this
	// window. Zero disables the retention sweeper.
	SessionRetention time.Duration

	// RateLimitRPS is the per-client request budget in requests per
	// second. Default: 20
	RateLimitRPS float64 `validate:"omitempty,min=0"`

	// RateLimitBurst is the per-client burst size. Default: 40
	RateLimitBurst int `validate:"omitempty,min=1"`
}

// Validate checks the configuration against its constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid orchestrator config: %w", err)
	}
	return nil
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "none"
	}
	if cfg.GinMode == "" {
		cfg.GinMode = gin.ReleaseMode
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = contextsvc.DefaultCacheTTL
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = 1024
	}
	if cfg.LLMTimeout == 0 {
		cfg.LLMTimeout = stages.DefaultLLMTimeout
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 40
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service coordinates:
//   - Durable session storage and checkpoints via Badger
//   - The context service (store + cache + audit trail)
//   - The workflow engine running the learning pipeline
//   - HTTP routing via gin
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config      Config
	logger      *slog.Logger
	router      *gin.Engine
	server      *http.Server
	db          *badgerstore.DB
	contexts    *contextsvc.ContextService
	engine      *workflow.Engine
	checkpoints *workflow.CheckpointStore
	cleaner     *ttl.Cleaner
}

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all orchestrator components:
//  1. Applies default configuration and validates it
//  2. Opens the Badger database (durable tier)
//  3. Builds the context service over store and cache
//  4. Creates the text-generation client for the configured backend
//  5. Builds the workflow engine over the stage set
//  6. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - logger: Structured logger. May be nil; slog.Default() is used.
//
// # Outputs
//
//   - Service: Ready-to-run orchestrator service
//   - error: Non-nil if the config is invalid or the store fails to open
func New(cfg Config, logger *slog.Logger) (Service, error) {
	cfg = applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &service{
		config: cfg,
		logger: logger,
	}

	var storeCfg badgerstore.Config
	if cfg.DataDir == "" {
		logger.Warn("no data directory configured, using in-memory store")
		storeCfg = badgerstore.InMemoryConfig()
	} else {
		storeCfg = badgerstore.DefaultConfig()
		storeCfg.Path = cfg.DataDir
	}
	storeCfg.Logger = logger
	db, err := badgerstore.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.db = db

	store := contextsvc.NewStore(db)
	cache := contextsvc.NewCache(cfg.CacheTTL, cfg.CacheCapacity)
	s.contexts = contextsvc.NewContextService(store, cache, logger)

	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		s.db.Close()
		return nil, fmt.Errorf("initialize LLM client: %w", err)
	}

	deps := &stages.Deps{
		LLM:     llmClient,
		Logger:  logger,
		Timeout: cfg.LLMTimeout,
	}
	if llmClient != nil {
		deps.Enricher = evaluation.NewEnricher(llmClient, cfg.LLMTimeout, logger)
	}

	checkpoints := workflow.NewCheckpointStore(db)
	s.checkpoints = checkpoints
	engine, err := workflow.NewEngine(stages.All(deps), workflow.Topology, checkpoints, s.contexts, logger)
	if err != nil {
		s.db.Close()
		return nil, fmt.Errorf("build workflow engine: %w", err)
	}
	s.engine = engine

	if cfg.SessionRetention > 0 {
		s.cleaner = ttl.NewCleaner(store, s.contexts, checkpoints, cfg.SessionRetention, 0, logger)
	}

	s.initRouter()
	return s, nil
}

// buildLLMClient creates the collaborator client for the configured
// backend. Backend "none" returns a nil client; stages then run their
// deterministic fallbacks.
func buildLLMClient(cfg Config) (llm.Client, error) {
	switch cfg.LLMBackend {
	case "openai":
		return llm.NewOpenAIClient()
	case "ollama":
		return llm.NewOllamaClient()
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", cfg.LLMBackend)
	}
}

// initRouter sets up the gin HTTP router with all routes.
func (s *service) initRouter() {
	gin.SetMode(s.config.GinMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(s.logger),
		middleware.RateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst),
		observability.Middleware(),
	)
	routes.SetupRoutes(router, s.engine, s.contexts, s.checkpoints)
	s.router = router
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until Shutdown or a fatal error.
func (s *service) Run() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cleaner != nil {
		s.cleaner.Start()
	}

	s.logger.Info("Starting orchestrator server", "port", s.config.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.db.Close()
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the store.
func (s *service) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.cleaner != nil {
		s.cleaner.Stop()
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.logger.Info("Orchestrator shut down")
	return firstErr
}

// Router returns the underlying gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}
