package server

import (
	"fmt"

	"github.com/sleepstars/chatgate/internal/auth"
	"github.com/sleepstars/chatgate/internal/clients"
	"github.com/sleepstars/chatgate/internal/config"
	"github.com/sleepstars/chatgate/internal/logger"
	"github.com/sleepstars/chatgate/internal/modelbridge"
	"github.com/sleepstars/chatgate/internal/orchestrator"
	"github.com/sleepstars/chatgate/internal/resolver"
	"github.com/sleepstars/chatgate/internal/synthesizer"
	"github.com/sleepstars/chatgate/internal/translator"
)

// NewLogger creates the root logger described by cfg.
func NewLogger(cfg config.LogConfig) (*logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logger.New(logger.Options{
		Level:      level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}), nil
}

// NewResolver creates the model resolver selected by cfg.
func NewResolver(cfg config.ModelsConfig) (resolver.Resolver, error) {
	return resolver.New(resolver.Options{
		Kind:       cfg.Resolver,
		Namespace:  cfg.Namespace,
		Mapping:    cfg.Mapping,
		Advertised: cfg.Advertised,
	})
}

// Build assembles the gateway from configuration.
func Build(cfg *config.Config, log *logger.Logger) (*Server, error) {
	r, err := NewResolver(cfg.Models)
	if err != nil {
		return nil, err
	}

	policy, err := translator.ParseEmptyContentPolicy(cfg.Translation.EmptyContent)
	if err != nil {
		return nil, err
	}

	backend, err := clients.New(clients.BackendConfig{
		Type:           cfg.Backend.Type,
		APIBase:        cfg.Backend.APIBase,
		APIKey:         cfg.Backend.APIKey,
		Model:          cfg.Backend.Model,
		Timeout:        cfg.Backend.Timeout,
		DisabledParams: cfg.Backend.DisabledParams,
		DefaultParams:  cfg.Backend.DefaultParams,
		MockContent:    cfg.Backend.MockContent,
		ChunkDelay:     cfg.Backend.ChunkDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	log.Info("Using %s backend (resolver=%s, empty_content=%s, simulate_stream=%v)",
		cfg.Backend.Type, cfg.Models.Resolver, policy, cfg.Backend.SimulateStream)

	pipeline := orchestrator.NewPipeline(orchestrator.Options{
		Translator:     translator.New(r, policy, log),
		Bridge:         modelbridge.NewModelBridge(backend, log),
		Synthesizer:    synthesizer.New(synthesizer.Options{}),
		SimulateStream: cfg.Backend.SimulateStream,
		ChunkDelay:     cfg.Backend.ChunkDelay,
		Logger:         log,
	})

	return New(Options{
		Addr:       cfg.Server.Addr,
		PathPrefix: cfg.Server.PathPrefix,
		Pipeline:   pipeline,
		Validator:  auth.NewValidator(cfg.Auth.APIKeys),
		Resolver:   r,
		Logger:     log,
	}), nil
}
