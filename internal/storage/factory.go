// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"github.com/squadfront/server/internal/config"
	"github.com/squadfront/server/internal/storage/memory"
	"github.com/squadfront/server/internal/storage/postgres"
	sqlitestorage "github.com/squadfront/server/internal/storage/sqlite"
)

// Dependencies holds what the database-backed archives need
type Dependencies struct {
	DB            config.DBConfig
	Logger        *slog.Logger
	DBLogger      zerolog.Logger
	FlushInterval time.Duration
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(deps.DB, deps.FlushInterval, deps.Logger, deps.DBLogger), nil
	case "sqlite":
		b, err := sqlitestorage.New(sqlitestorage.Config{
			Path:          cfg.SQLite.Path,
			FlushInterval: deps.FlushInterval,
		}, deps.Logger, deps.DBLogger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "none":
		return NopBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
