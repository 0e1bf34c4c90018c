// Package session owns the live game sessions. Commands and the simulation tick
// both mutate a session only while holding that session's lock.
package session

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/squadfront/server/internal/cache"
	"github.com/squadfront/server/internal/catalog"
	"github.com/squadfront/server/internal/combat"
	"github.com/squadfront/server/internal/geo"
	"github.com/squadfront/server/internal/placement"
	"github.com/squadfront/server/internal/round"
	"github.com/squadfront/server/internal/view"
	"github.com/squadfront/server/pkg/core"
	"github.com/squadfront/server/pkg/streaming"
)

// Config holds the game rules the engine runs sessions with.
type Config struct {
	TickRate            int
	PreparationDuration time.Duration
	PlacementLimit      int
	StartingCredits     int
	IncomePerRound      int
	StartingBaseHealth  int
	Grid                geo.Grid
	FigureJitter        float64
	MinFlightTime       time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickRate:            20,
		PreparationDuration: 30 * time.Second,
		PlacementLimit:      4,
		StartingCredits:     100,
		IncomePerRound:      50,
		StartingBaseHealth:  100,
		Grid:                geo.Grid{Width: 24, Height: 32, ZoneDepth: 12},
		FigureJitter:        0.15,
		MinFlightTime:       100 * time.Millisecond,
	}
}

func (c Config) interval() time.Duration {
	if c.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.TickRate)
}

// Options wires the engine's collaborators. Zero values fall back to no-ops,
// slog.Default, time.Now and a randomly seeded generator.
type Options struct {
	Publisher Publisher
	Archive   Archiver
	Logger    *slog.Logger
	Clock     func() time.Time
	NewRand   func() *rand.Rand
}

// Stats is a point-in-time summary for monitoring.
type Stats struct {
	Sessions       int
	CombatSessions int
	Figures        int
	Projectiles    int
	LastTick       time.Duration
}

type entry struct {
	mu         sync.Mutex
	session    *core.GameSession
	rng        *rand.Rand
	timer      *time.Timer
	generation uint64
	closed     bool
}

// stopTimer cancels the pending preparation timer. Any event it already queued
// carries the old generation and is ignored.
func (en *entry) stopTimer() {
	en.generation++
	if en.timer != nil {
		en.timer.Stop()
		en.timer = nil
	}
}

type timerEvent struct {
	sessionID  string
	round      int
	generation uint64
}

// Engine holds every live session and drives the combat tick.
type Engine struct {
	catalog *catalog.Catalog
	cfg     Config
	rounds  *round.Manager
	placer  *placement.Validator
	players *cache.PlayerIndex

	publisher Publisher
	archive   Archiver
	log       *slog.Logger
	now       func() time.Time
	newRand   func() *rand.Rand
	metrics   *metrics

	mu       sync.RWMutex
	sessions map[string]*entry
	active   atomic.Int64

	events    chan timerEvent
	done      chan struct{}
	closeOnce sync.Once

	// only touched by the tick loop
	lastTick time.Time
	tickTook atomic.Int64
}

func New(c *catalog.Catalog, cfg Config, opts Options) (*Engine, error) {
	e := &Engine{
		catalog:   c,
		cfg:       cfg,
		players:   cache.NewPlayerIndex(),
		publisher: opts.Publisher,
		archive:   opts.Archive,
		log:       opts.Logger,
		now:       opts.Clock,
		newRand:   opts.NewRand,
		sessions:  make(map[string]*entry),
		events:    make(chan timerEvent, 64),
		done:      make(chan struct{}),
	}
	if e.publisher == nil {
		e.publisher = nopPublisher{}
	}
	if e.archive == nil {
		e.archive = nopArchiver{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newRand == nil {
		e.newRand = func() *rand.Rand { return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) }
	}

	sim := combat.New(c, combat.Options{Grid: cfg.Grid, MinFlightTime: cfg.MinFlightTime, Logger: e.log})
	e.rounds = round.NewManager(c, sim, round.Config{
		PreparationDuration: cfg.PreparationDuration,
		IncomePerRound:      cfg.IncomePerRound,
		FigureJitter:        cfg.FigureJitter,
	}, e.log)
	e.placer = placement.New(c, placement.Rules{
		Grid:           cfg.Grid,
		PlacementLimit: cfg.PlacementLimit,
		Jitter:         cfg.FigureJitter,
	})

	m, err := newMetrics(e.active.Load)
	if err != nil {
		return nil, err
	}
	e.metrics = m
	return e, nil
}

// Run drives the tick and preparation timers until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.interval())
	defer ticker.Stop()
	defer e.Close()

	e.log.Info("Engine running", "tickRate", e.cfg.TickRate)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick(e.now())
		case ev := <-e.events:
			e.handleTimer(ev)
		}
	}
}

// Close stops all preparation timers. Sessions stay readable.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		for _, en := range e.snapshot() {
			en.mu.Lock()
			en.stopTimer()
			en.mu.Unlock()
		}
	})
}

// Tick advances every session in combat by one step. It must not be called
// concurrently with itself.
func (e *Engine) Tick(now time.Time) {
	start := time.Now()
	dt := e.cfg.interval()
	if !e.lastTick.IsZero() && now.After(e.lastTick) {
		dt = min(now.Sub(e.lastTick), 4*e.cfg.interval())
	}
	e.lastTick = now

	for _, en := range e.snapshot() {
		if out, ok := e.tickSession(en, now, dt); ok {
			e.deliver(out)
		}
	}

	took := time.Since(start)
	e.tickTook.Store(int64(took))
	e.metrics.tick(took)
}

func (e *Engine) tickSession(en *entry, now time.Time, dt time.Duration) (outcome, bool) {
	en.mu.Lock()
	defer en.mu.Unlock()
	if en.closed || en.session.Phase != core.PhaseCombat {
		return outcome{}, false
	}
	tr := e.rounds.Tick(en.session, now, dt, en.rng)
	e.metrics.projectilesFired(tr.Step.Fired)
	return e.settle(en, tr), true
}

// settle applies the side effects of a round transition and collects the views
// to publish. en.mu must be held.
func (e *Engine) settle(en *entry, tr round.Transition) outcome {
	s := en.session
	out := outcome{sessionID: s.ID, record: tr.Record, result: tr.Result}

	switch tr.Kind {
	case round.CombatStarted:
		en.stopTimer()
		e.log.Debug("Combat started", "session", s.ID, "round", s.Round)
	case round.RoundSkipped:
		e.schedule(en)
	case round.NextRound:
		e.schedule(en)
		e.metrics.roundCompleted()
	case round.GameOver:
		en.stopTimer()
		en.closed = true
		out.remove = true
		out.msgType = streaming.TypeGameOver
		e.metrics.roundCompleted()
	}

	out.deliveries = view.BuildAll(s)
	return out
}

// schedule arms the preparation timer for the session's current deadline.
// en.mu must be held.
func (e *Engine) schedule(en *entry) {
	en.stopTimer()
	s := en.session
	if s.PreparationDeadline == nil {
		return
	}
	ev := timerEvent{sessionID: s.ID, round: s.Round, generation: en.generation}
	wait := max(s.PreparationDeadline.Sub(e.now()), 0)
	en.timer = time.AfterFunc(wait, func() { e.enqueue(ev) })
}

func (e *Engine) enqueue(ev timerEvent) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) handleTimer(ev timerEvent) {
	en, ok := e.lookup(ev.sessionID)
	if !ok {
		return
	}
	if out, ok := e.expire(en, ev); ok {
		e.deliver(out)
	}
}

func (e *Engine) expire(en *entry, ev timerEvent) (outcome, bool) {
	en.mu.Lock()
	defer en.mu.Unlock()
	s := en.session
	if en.closed || ev.generation != en.generation || ev.round != s.Round || s.Phase != core.PhasePreparation {
		e.log.Debug("Ignoring stale preparation timer", "session", ev.sessionID, "round", ev.round)
		return outcome{}, false
	}
	tr, err := e.rounds.BeginCombat(s, e.now())
	if err != nil {
		e.log.Error("Failed to start combat", "session", s.ID, "error", err)
		return outcome{}, false
	}
	return e.settle(en, tr), true
}

func (e *Engine) lookup(id string) (*entry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	en, ok := e.sessions[id]
	return en, ok
}

func (e *Engine) snapshot() []*entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*entry, 0, len(e.sessions))
	for _, en := range e.sessions {
		out = append(out, en)
	}
	return out
}

func (e *Engine) insert(en *entry) {
	e.mu.Lock()
	e.sessions[en.session.ID] = en
	e.mu.Unlock()
	e.active.Add(1)
}

func (e *Engine) drop(id string) {
	e.mu.Lock()
	_, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()
	if ok {
		e.active.Add(-1)
	}
	e.players.RemoveSession(id)
}

// ActiveSessions is safe to call from log handlers.
func (e *Engine) ActiveSessions() int {
	return int(e.active.Load())
}

func (e *Engine) Stats() Stats {
	st := Stats{LastTick: time.Duration(e.tickTook.Load())}
	for _, en := range e.snapshot() {
		en.mu.Lock()
		if !en.closed {
			s := en.session
			st.Sessions++
			if s.Phase == core.PhaseCombat {
				st.CombatSessions++
			}
			for _, p := range s.Players {
				st.Figures += p.LivingFigures()
			}
			st.Projectiles += len(s.ActiveProjectiles)
		}
		en.mu.Unlock()
	}
	return st
}

// Session returns a deep copy of a live session.
func (e *Engine) Session(id string) (*core.GameSession, bool) {
	en, ok := e.lookup(id)
	if !ok {
		return nil, false
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	if en.closed {
		return nil, false
	}
	return en.session.Clone(), true
}

// PlayerSession returns the id of the session playerID is seated in.
func (e *Engine) PlayerSession(playerID string) (string, bool) {
	return e.players.Get(playerID)
}
