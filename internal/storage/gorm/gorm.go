// Package gormstorage implements the storage.Backend interface using GORM
// with an internal round queue and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/squadfront/server/internal/database"
	"github.com/squadfront/server/internal/model"
	"github.com/squadfront/server/internal/model/convert"
	"github.com/squadfront/server/internal/queue"
	"github.com/squadfront/server/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// ErrUnknownMatch is returned for rounds or results of a match never started on this backend.
var ErrUnknownMatch = errors.New("unknown match")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps    Dependencies
	rounds  *queue.Queue[model.Round]
	matches map[string]uint // session id -> match row id
	mu      sync.Mutex

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:    deps,
		rounds:  queue.New[model.Round](),
		matches: make(map[string]uint),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.Logger.Info("Database setup complete", "dialect", b.deps.DB.Dialector.Name())

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writer()
	return nil
}

// Close stops the DB writer goroutine and flushes what is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// StartMatch inserts the match with its roster synchronously so later rounds can reference it.
func (b *Backend) StartMatch(m *core.MatchRecord) error {
	gormObj := convert.CoreToMatch(*m)
	if err := b.deps.DB.Create(&gormObj).Error; err != nil {
		return fmt.Errorf("failed to insert match %s: %w", m.SessionID, err)
	}

	b.mu.Lock()
	b.matches[m.SessionID] = gormObj.ID
	b.mu.Unlock()
	return nil
}

// RecordRound converts and queues a round with its squad results.
func (b *Backend) RecordRound(r *core.RoundRecord) error {
	matchID, ok := b.matchID(r.SessionID)
	if !ok {
		return fmt.Errorf("round %d of %s: %w", r.Round, r.SessionID, ErrUnknownMatch)
	}
	b.rounds.Push(convert.CoreToRound(*r, matchID))
	return nil
}

// EndMatch flushes queued rounds, then closes the match row.
func (b *Backend) EndMatch(r *core.MatchResult) error {
	matchID, ok := b.matchID(r.SessionID)
	if !ok {
		return fmt.Errorf("result of %s: %w", r.SessionID, ErrUnknownMatch)
	}
	if err := b.Flush(); err != nil {
		return err
	}

	err := b.deps.DB.Model(&model.Match{}).
		Where("id = ?", matchID).
		Updates(convert.MatchResultUpdates(*r)).Error
	if err != nil {
		return fmt.Errorf("failed to close match %s: %w", r.SessionID, err)
	}

	b.mu.Lock()
	delete(b.matches, r.SessionID)
	b.mu.Unlock()
	return nil
}

// Rounds loads the archived rounds of a match in order.
func (b *Backend) Rounds(sessionID string) ([]core.RoundRecord, error) {
	var m model.Match
	if err := b.deps.DB.Where("session_id = ?", sessionID).First(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to find match %s: %w", sessionID, err)
	}

	var rows []model.Round
	err := b.deps.DB.Preload("Squads").
		Where("match_id = ?", m.ID).
		Order("number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load rounds of %s: %w", sessionID, err)
	}

	out := make([]core.RoundRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, convert.RoundToCore(row, sessionID))
	}
	return out, nil
}

// Pending returns the number of rounds waiting for the writer.
func (b *Backend) Pending() int {
	return b.rounds.Len()
}

// Flush writes all queued rounds now.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return writeQueue(b.deps.DB, b.rounds, "rounds", b.deps.Logger)
}

func (b *Backend) matchID(sessionID string) (uint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.matches[sessionID]
	return id, ok
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back on the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	start := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		q.Requeue(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	log.Debug("Wrote rows", "table", name, "count", len(items), "duration", time.Since(start))
	return nil
}

// writer periodically drains the round queue into the DB.
func (b *Backend) writer() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
