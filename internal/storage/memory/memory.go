// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/squadfront/server/internal/config"
	"github.com/squadfront/server/pkg/core"
)

// MatchRecord groups a match with all rounds recorded so far
type MatchRecord struct {
	Match  core.MatchRecord
	Rounds []core.RoundRecord
	Result *core.MatchResult
}

// exportInfo remembers a finished match for upload
type exportInfo struct {
	path string
	meta core.UploadMetadata
}

// Backend keeps running matches in memory and exports each finished match to JSON
type Backend struct {
	cfg     config.MemoryConfig
	matches map[string]*MatchRecord // keyed by session id
	exports map[string]exportInfo   // keyed by session id
	mu      sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		matches: make(map[string]*MatchRecord),
		exports: make(map[string]exportInfo),
	}
}

// Init is a no-op for memory backend
func (b *Backend) Init() error {
	return nil
}

// Close is a no-op for memory backend
func (b *Backend) Close() error {
	return nil
}

// StartMatch begins recording a match
func (b *Backend) StartMatch(m *core.MatchRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.matches[m.SessionID]; ok {
		return fmt.Errorf("match %s already started", m.SessionID)
	}
	b.matches[m.SessionID] = &MatchRecord{Match: *m}
	return nil
}

// RecordRound appends a round to its match
func (b *Backend) RecordRound(r *core.RoundRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.matches[r.SessionID]
	if !ok {
		return fmt.Errorf("round %d of unknown match %s", r.Round, r.SessionID)
	}
	record.Rounds = append(record.Rounds, *r)
	return nil
}

// EndMatch exports the match to a JSON file and drops it from memory
func (b *Backend) EndMatch(r *core.MatchResult) error {
	b.mu.Lock()
	record, ok := b.matches[r.SessionID]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("result of unknown match %s", r.SessionID)
	}
	record.Result = r
	delete(b.matches, r.SessionID)
	b.mu.Unlock()

	path, err := b.exportJSON(record)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.exports[r.SessionID] = exportInfo{
		path: path,
		meta: core.UploadMetadata{
			SessionID:    r.SessionID,
			Mode:         record.Match.Mode,
			WinnerID:     r.WinnerID,
			RoundsPlayed: r.RoundsPlayed,
			Abandoned:    r.Abandoned,
		},
	}
	b.mu.Unlock()
	return nil
}

// Match returns a copy of a running match
func (b *Backend) Match(sessionID string) (MatchRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.matches[sessionID]
	if !ok {
		return MatchRecord{}, false
	}
	out := *record
	out.Rounds = append([]core.RoundRecord(nil), record.Rounds...)
	return out, true
}

// ExportedFilePath returns the path of the exported match file, or empty if none.
func (b *Backend) ExportedFilePath(sessionID string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exports[sessionID].path
}

// ExportMetadata returns the upload metadata of an exported match.
func (b *Backend) ExportMetadata(sessionID string) core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exports[sessionID].meta
}
