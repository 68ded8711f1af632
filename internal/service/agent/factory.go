package agent

import (
	"context"
	"fmt"

	"github.com/oshokin/alarm-agent/internal/config"
	"github.com/oshokin/alarm-agent/internal/logger"
	"github.com/oshokin/alarm-agent/internal/repository/alarms"
	"github.com/oshokin/alarm-agent/internal/repository/kv"
)

// CloseFunc releases resources opened by the factories.
type CloseFunc func()

// OpenStore opens the device store described by cfg.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (kv.Store, CloseFunc, error) {
	switch cfg.Type {
	case config.StoreSQLite:
		store, err := kv.OpenSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, nil, err
		}

		return store, func() {
			if err := store.Close(); err != nil {
				logger.WarnKV(ctx, "Failed to close store", "path", cfg.Path, "error", err)
			}
		}, nil
	case config.StoreFile, "":
		return kv.NewFileStore(cfg.Path), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

// OpenSource connects to the alarm source described by cfg.
func OpenSource(ctx context.Context, cfg *config.Config) (alarms.Source, CloseFunc, error) {
	switch cfg.Source.Type {
	case config.SourceREST:
		source, err := alarms.NewRESTSource(cfg.Source.URL, cfg.Source.APIKey, alarms.WithCallTimeout(cfg.Timeout))
		if err != nil {
			return nil, nil, err
		}

		return source, func() {}, nil
	case config.SourcePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		source, err := alarms.OpenPostgresSource(connectCtx, cfg.Source.DSN)
		if err != nil {
			return nil, nil, err
		}

		return source, source.Close, nil
	case config.SourceFile, "":
		return alarms.NewFileSource(cfg.Source.File), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// NewFromConfig opens the store and the source described by cfg and wires an agent.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Agent, CloseFunc, error) {
	store, closeStore, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	source, closeSource, err := OpenSource(ctx, cfg)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("open alarm source: %w", err)
	}

	a, err := New(&Options{
		OwnerID:       cfg.OwnerID,
		Source:        source,
		Store:         store,
		LockFile:      cfg.LockFile,
		SyncInterval:  cfg.SyncInterval,
		QueueLimit:    cfg.QueueLimit,
		HealthAddress: cfg.HealthAddress,
	})
	if err != nil {
		closeSource()
		closeStore()

		return nil, nil, err
	}

	return a, func() {
		a.Close()
		closeSource()
		closeStore()
	}, nil
}
