// Package sqlitestorage implements the storage.Backend interface using a SQLite file.
// It wraps the GORM backend via composition; the only SQLite-specific concerns are
// opening the file with its PRAGMAs and closing the connection on shutdown.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"github.com/squadfront/server/internal/database"
	gormstorage "github.com/squadfront/server/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path          string // empty keeps the archive in memory
	FlushInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db *database.Manager
}

// New opens the SQLite database and creates the backend.
func New(cfg Config, log *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	manager := database.NewManager(dbLog)
	if err := manager.ConnectSqlite(cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:            manager.DB,
			Logger:        log,
			FlushInterval: cfg.FlushInterval,
		}),
		db: manager,
	}, nil
}

// Close flushes the embedded GORM backend and closes the database.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		_ = b.db.Close()
		return err
	}
	return b.db.Close()
}
