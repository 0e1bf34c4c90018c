package storage

import "github.com/squadfront/server/pkg/core"

// Backend is the interface all match archive implementations must satisfy.
// Calls for one session arrive in order: StartMatch, RecordRound..., EndMatch.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	StartMatch(m *core.MatchRecord) error
	RecordRound(r *core.RoundRecord) error
	EndMatch(r *core.MatchResult) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the results server.
type Uploadable interface {
	ExportedFilePath(sessionID string) string
	ExportMetadata(sessionID string) core.UploadMetadata
}

// NopBackend discards every record.
type NopBackend struct{}

func (NopBackend) Init() error                         { return nil }
func (NopBackend) Close() error                        { return nil }
func (NopBackend) StartMatch(*core.MatchRecord) error  { return nil }
func (NopBackend) RecordRound(*core.RoundRecord) error { return nil }
func (NopBackend) EndMatch(*core.MatchResult) error    { return nil }
