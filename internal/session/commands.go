package session

import (
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/squadfront/server/internal/placement"
	"github.com/squadfront/server/internal/round"
	"github.com/squadfront/server/internal/view"
	"github.com/squadfront/server/pkg/core"
	"github.com/squadfront/server/pkg/streaming"
)

// Seat is one player handed over by the lobby.
type Seat struct {
	ID       string
	Username string
	Faction  string
}

// Roster is a finished lobby.
type Roster struct {
	Players []Seat
	HostID  string
	Mode    string
}

func (e *Engine) validateRoster(r Roster) error {
	if len(r.Players) != 2 {
		return invalid("invalid_roster", ErrInvalidRoster, "a session needs exactly 2 players, got %d", len(r.Players))
	}
	factions := e.catalog.Factions()
	seen := make(map[string]bool, len(r.Players))
	for _, p := range r.Players {
		if p.ID == "" {
			return invalid("invalid_roster", ErrInvalidRoster, "player id is empty")
		}
		if seen[p.ID] {
			return invalid("invalid_roster", ErrInvalidRoster, "player %q is listed twice", p.ID)
		}
		seen[p.ID] = true
		if !slices.Contains(factions, p.Faction) {
			return invalid("invalid_roster", ErrInvalidRoster, "unknown faction %q for player %q", p.Faction, p.ID)
		}
	}
	if !seen[r.HostID] {
		return invalid("invalid_roster", ErrInvalidRoster, "host %q is not in the roster", r.HostID)
	}
	return nil
}

// StartSession creates a session from a roster and opens the first preparation
// phase. It returns the host's view.
func (e *Engine) StartSession(r Roster) (view.SessionView, error) {
	if err := e.validateRoster(r); err != nil {
		return view.SessionView{}, err
	}

	now := e.now()
	s := &core.GameSession{
		ID:           uuid.NewString(),
		HostPlayerID: r.HostID,
		Mode:         r.Mode,
		Round:        1,
		Players:      make(map[string]*core.PlayerInGame, len(r.Players)),
		CreatedAt:    now,
	}
	ids := make([]string, 0, len(r.Players))
	players := make([]core.MatchPlayer, 0, len(r.Players))
	for _, seat := range r.Players {
		unlocked := make(map[string]bool)
		for _, id := range e.catalog.StartingUnlocks(seat.Faction) {
			unlocked[id] = true
		}
		s.Players[seat.ID] = &core.PlayerInGame{
			ID:              seat.ID,
			Username:        seat.Username,
			Faction:         seat.Faction,
			Credits:         e.cfg.StartingCredits,
			BaseHealth:      e.cfg.StartingBaseHealth,
			UnlockedUnitIDs: unlocked,
			Connected:       true,
		}
		s.PlayerOrder = append(s.PlayerOrder, seat.ID)
		ids = append(ids, seat.ID)
		players = append(players, core.MatchPlayer{ID: seat.ID, Username: seat.Username, Faction: seat.Faction})
	}

	if busy, ok := e.players.Add(s.ID, ids...); !ok {
		return view.SessionView{}, invalid("invalid_roster", ErrInvalidRoster, "player %q is already in a session", busy)
	}

	en := &entry{session: s, rng: e.newRand()}
	en.mu.Lock()
	e.insert(en)
	e.rounds.StartPreparation(s, now)
	e.schedule(en)
	out := outcome{
		sessionID:  s.ID,
		msgType:    streaming.TypeGameStarted,
		deliveries: view.BuildAll(s),
		started: &core.MatchRecord{
			SessionID:    s.ID,
			Mode:         s.Mode,
			HostPlayerID: s.HostPlayerID,
			Players:      players,
			StartedAt:    now,
		},
	}
	host := view.Build(s, r.HostID)
	en.mu.Unlock()

	e.log.Info("Session started", "session", s.ID, "host", r.HostID, "mode", r.Mode)
	e.deliver(out)
	return host, nil
}

// withPlayer runs fn under the session lock and publishes the resulting state.
func (e *Engine) withPlayer(sessionID, playerID string, fn func(en *entry, p *core.PlayerInGame) (round.Transition, error)) error {
	en, ok := e.lookup(sessionID)
	if !ok {
		return sessionNotFound(sessionID)
	}

	en.mu.Lock()
	if en.closed {
		en.mu.Unlock()
		return sessionNotFound(sessionID)
	}
	p, ok := en.session.Players[playerID]
	if !ok {
		en.mu.Unlock()
		return playerNotFound(playerID)
	}
	tr, err := fn(en, p)
	if err != nil {
		en.mu.Unlock()
		return err
	}
	out := e.settle(en, tr)
	en.mu.Unlock()

	e.deliver(out)
	return nil
}

// UnlockUnit buys access to a unit type for the rest of the session.
func (e *Engine) UnlockUnit(sessionID, playerID, unitTypeID string) error {
	return e.withPlayer(sessionID, playerID, func(en *entry, p *core.PlayerInGame) (round.Transition, error) {
		if en.session.Phase == core.PhaseGameOver {
			return round.Transition{}, invalid("wrong_phase", ErrWrongPhase, "the game is over")
		}
		ref, err := e.catalog.Unit(unitTypeID)
		if err != nil {
			return round.Transition{}, invalid("unknown_unit", err, "unknown unit type %q", unitTypeID)
		}
		u := ref.Unit
		if u.Faction != p.Faction {
			return round.Transition{}, invalid("wrong_faction", nil, "%s belongs to faction %s", u.ID, u.Faction)
		}
		if p.HasUnlocked(u.ID) {
			return round.Transition{}, invalid("already_unlocked", nil, "%s is already unlocked", u.ID)
		}
		if p.Credits < u.UnlockCost {
			return round.Transition{}, invalid("insufficient_credits", nil,
				"unlocking %s costs %d credits, you have %d", u.ID, u.UnlockCost, p.Credits)
		}
		p.Credits -= u.UnlockCost
		p.UnlockedUnitIDs[u.ID] = true
		e.log.Debug("Unit unlocked", "session", sessionID, "player", playerID, "unit", u.ID)
		return round.Transition{}, nil
	})
}

// PlaceUnit validates and places a squad. It returns the new instance id.
func (e *Engine) PlaceUnit(sessionID, playerID, unitTypeID string, pos core.Vec2, rot core.Rotation) (string, error) {
	var instanceID string
	err := e.withPlayer(sessionID, playerID, func(en *entry, p *core.PlayerInGame) (round.Transition, error) {
		u, err := e.placer.Place(en.session, placement.Request{
			PlayerID:   playerID,
			UnitTypeID: unitTypeID,
			Position:   pos,
			Rotation:   rot,
		}, en.rng)
		if err != nil {
			return round.Transition{}, fromRejection(err)
		}
		instanceID = u.InstanceID
		e.log.Debug("Squad placed", "session", sessionID, "player", playerID, "unit", unitTypeID, "instance", u.InstanceID)
		return round.Transition{}, nil
	})
	return instanceID, err
}

func fromRejection(err error) error {
	var rej *placement.Rejection
	if !errors.As(err, &rej) {
		return err
	}
	cause := error(rej)
	if rej.Reason == placement.ReasonWrongPhase {
		cause = ErrWrongPhase
	}
	return &ValidationError{Code: string(rej.Reason), Reason: rej.Message, err: cause}
}

// ForceStartCombat ends preparation early. Only the host may do this.
func (e *Engine) ForceStartCombat(sessionID, playerID string) error {
	return e.withPlayer(sessionID, playerID, func(en *entry, p *core.PlayerInGame) (round.Transition, error) {
		s := en.session
		if s.HostPlayerID != p.ID {
			return round.Transition{}, invalid("not_host", ErrNotHost, "only the host can start combat")
		}
		if s.Phase != core.PhasePreparation {
			return round.Transition{}, invalid("wrong_phase", ErrWrongPhase, "combat can only be started during preparation")
		}
		tr, err := e.rounds.BeginCombat(s, e.now())
		if err != nil {
			return round.Transition{}, invalid("wrong_phase", ErrWrongPhase, "%v", err)
		}
		e.log.Info("Combat forced by host", "session", s.ID, "round", s.Round, "kind", tr.Kind)
		return tr, nil
	})
}

// Attach marks a player connected and returns their current view.
func (e *Engine) Attach(playerID string) (view.SessionView, error) {
	sessionID, ok := e.players.Get(playerID)
	if !ok {
		return view.SessionView{}, playerNotFound(playerID)
	}
	var v view.SessionView
	err := e.withPlayer(sessionID, playerID, func(en *entry, p *core.PlayerInGame) (round.Transition, error) {
		p.Connected = true
		v = view.Build(en.session, playerID)
		return round.Transition{}, nil
	})
	return v, err
}

// RemovePlayer handles a disconnect. The session ends as abandoned once every
// player is gone.
func (e *Engine) RemovePlayer(playerID string) {
	sessionID, ok := e.players.Get(playerID)
	if !ok {
		return
	}
	en, ok := e.lookup(sessionID)
	if !ok {
		return
	}
	if out, ok := e.disconnect(en, playerID); ok {
		e.deliver(out)
	}
}

func (e *Engine) disconnect(en *entry, playerID string) (outcome, bool) {
	en.mu.Lock()
	defer en.mu.Unlock()
	s := en.session
	p, ok := s.Players[playerID]
	if en.closed || !ok {
		return outcome{}, false
	}
	p.Connected = false

	for _, other := range s.Players {
		if other.Connected {
			e.log.Info("Player disconnected", "session", s.ID, "player", playerID)
			return e.settle(en, round.Transition{}), true
		}
	}

	en.stopTimer()
	en.closed = true
	e.log.Info("Session abandoned", "session", s.ID, "round", s.Round)
	return outcome{
		sessionID: s.ID,
		result:    round.MatchResult(s, e.now(), true),
		remove:    true,
	}, true
}
