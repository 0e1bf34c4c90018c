package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/squadfront/server/internal/channel"
	"github.com/squadfront/server/pkg/core"
)

// DefaultRecorderBuffer is the number of pending archive operations a Recorder holds.
const DefaultRecorderBuffer = 256

const uploadTimeout = 2 * time.Minute

// Uploader sends an exported match file to the results server.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Uploader   Uploader
	Logger     *slog.Logger
	BufferSize int
}

type archiveOp struct {
	name      string
	sessionID string
	run       func() error
}

// Recorder feeds a Backend from a single goroutine so callers never wait on storage.
// Operations keep their submission order. When the buffer is full new operations are dropped.
type Recorder struct {
	backend  Backend
	uploader Uploader
	log      *slog.Logger

	ops     *channel.Bounded[archiveOp]
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewRecorder starts a Recorder over an initialized backend.
func NewRecorder(backend Backend, opts RecorderOptions) *Recorder {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultRecorderBuffer
	}

	r := &Recorder{
		backend:  backend,
		uploader: opts.Uploader,
		log:      opts.Logger,
		ops:      channel.New[archiveOp](opts.BufferSize),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) StartMatch(rec core.MatchRecord) {
	r.enqueue(archiveOp{name: "start_match", sessionID: rec.SessionID, run: func() error {
		return r.backend.StartMatch(&rec)
	}})
}

func (r *Recorder) RecordRound(rec core.RoundRecord) {
	r.enqueue(archiveOp{name: "record_round", sessionID: rec.SessionID, run: func() error {
		return r.backend.RecordRound(&rec)
	}})
}

// EndMatch closes the match and uploads its export when the backend produced one.
func (r *Recorder) EndMatch(res core.MatchResult) {
	r.enqueue(archiveOp{name: "end_match", sessionID: res.SessionID, run: func() error {
		if err := r.backend.EndMatch(&res); err != nil {
			return err
		}
		r.upload(res.SessionID)
		return nil
	}})
}

// Backend returns the wrapped backend.
func (r *Recorder) Backend() Backend {
	return r.backend
}

// Pending returns the number of queued operations.
func (r *Recorder) Pending() int {
	return r.ops.Len()
}

// Dropped returns how many operations were discarded on a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains pending operations and closes the backend.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.ops.Close()
	r.mu.Unlock()

	<-r.done
	return r.backend.Close()
}

func (r *Recorder) enqueue(op archiveOp) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	if !r.ops.TrySend(op) {
		r.dropped.Add(1)
		r.log.Warn("Archive buffer full, dropping record", "op", op.name, "session", op.sessionID)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for op := range r.ops.Receive() {
		if err := op.run(); err != nil {
			r.log.Error("Archive write failed", "op", op.name, "session", op.sessionID, "error", err)
		}
	}
}

func (r *Recorder) upload(sessionID string) {
	if r.uploader == nil {
		return
	}
	u, ok := r.backend.(Uploadable)
	if !ok {
		return
	}
	path := u.ExportedFilePath(sessionID)
	if path == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	if err := r.uploader.Upload(ctx, path, u.ExportMetadata(sessionID)); err != nil {
		r.log.Error("Match upload failed", "session", sessionID, "path", path, "error", err)
		return
	}
	r.log.Info("Match uploaded", "session", sessionID, "path", path)
}
