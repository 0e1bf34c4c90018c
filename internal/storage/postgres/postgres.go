// Package postgres implements the storage.Backend interface on PostgreSQL.
// The archive logic lives in the embedded GORM backend; this package owns the connection.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"github.com/squadfront/server/internal/config"
	"github.com/squadfront/server/internal/database"
	gormstorage "github.com/squadfront/server/internal/storage/gorm"
)

// Backend wraps the GORM backend with a Postgres connection opened on Init.
type Backend struct {
	*gormstorage.Backend
	cfg           config.DBConfig
	log           *slog.Logger
	flushInterval time.Duration
	db            *database.Manager
}

// New creates a Postgres backend. No connection is made until Init.
func New(cfg config.DBConfig, flushInterval time.Duration, log *slog.Logger, dbLog zerolog.Logger) *Backend {
	return &Backend{
		cfg:           cfg,
		log:           log,
		flushInterval: flushInterval,
		db:            database.NewManager(dbLog),
	}
}

// Init connects to Postgres, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if err := b.db.ConnectPostgres(b.cfg); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:            b.db.DB,
		Logger:        b.log,
		FlushInterval: b.flushInterval,
	})
	return b.Backend.Init()
}

// Close flushes the embedded GORM backend and closes the connection pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		_ = b.db.Close()
		return err
	}
	return b.db.Close()
}
