// Package factory builds the backend.Client named by the configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/backend/local"
	"github.com/idilsaglam/tada/internal/backend/surreal"
	"github.com/idilsaglam/tada/internal/config"
)

// New creates a backend client based on the backend config type.
func New(ctx context.Context, cfg config.BackendConfig, tokens backend.TokenStore, log zerolog.Logger) (backend.Client, error) {
	if tokens == nil {
		tokens = backend.NopTokenStore{}
	}
	switch cfg.Type {
	case config.BackendLocal:
		if cfg.DataFile == "" {
			return local.New(local.WithTokenStore(tokens)), nil
		}
		return local.Open(cfg.DataFile, local.WithTokenStore(tokens))
	case config.BackendSurreal:
		return Surreal(ctx, cfg, tokens, log)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// Surreal connects to the SurrealDB backend described by cfg.
func Surreal(ctx context.Context, cfg config.BackendConfig, tokens backend.TokenStore, log zerolog.Logger) (*surreal.Client, error) {
	if cfg.Type != config.BackendSurreal {
		return nil, fmt.Errorf("backend type %q is not %s", cfg.Type, config.BackendSurreal)
	}
	return surreal.Connect(ctx, surreal.Config{
		Endpoint:  cfg.Endpoint,
		Namespace: cfg.Namespace,
		Database:  cfg.Database,
		Access:    cfg.Access,
	}, surreal.WithTokenStore(tokens), surreal.WithLogger(log.With().Str("backend", "surreal").Logger()))
}
