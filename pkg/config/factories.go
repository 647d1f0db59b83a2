package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/ramondl/httpserv/internal/logger"
	"github.com/ramondl/httpserv/pkg/auth"
	"github.com/ramondl/httpserv/pkg/stats"
	"github.com/ramondl/httpserv/pkg/stats/badgerlog"
	"github.com/ramondl/httpserv/pkg/stats/memory"
)

// CreateLogStore creates a request log store based on configuration.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": in-memory request log, lost on restart
//   - "badger": BadgerDB-backed request log that survives restarts
func CreateLogStore(cfg *RequestLogConfig) (stats.LogStore, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewLogStore(), nil
	case "badger":
		return createBadgerLogStore(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown request log store type: %q", cfg.Type)
	}
}

// createBadgerLogStore creates a BadgerDB-backed request log store.
func createBadgerLogStore(options map[string]any) (stats.LogStore, error) {
	type BadgerLogStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg BadgerLogStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger log store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("badger log store: path is required")
	}

	store, err := badgerlog.Open(storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger log store: %w", err)
	}

	logger.Debug("Request log persisted to %s", storeCfg.Path)
	return store, nil
}

// CreateAuthenticator creates a Basic authenticator from configuration.
//
// Returns nil (authentication disabled) when no credentials file is
// configured.
func CreateAuthenticator(cfg *AuthConfig) (*auth.Authenticator, error) {
	if cfg.CredentialsFile == "" {
		return nil, nil
	}

	store, err := auth.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	logger.Info("Loaded %d credential(s) from %s", store.Len(), cfg.CredentialsFile)
	return auth.NewAuthenticator(store, cfg.Realm), nil
}
