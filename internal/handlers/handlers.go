// Package handlers binds player commands from the dispatcher to the session engine.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/squadfront/server/internal/dispatcher"
	"github.com/squadfront/server/internal/session"
	"github.com/squadfront/server/internal/view"
	"github.com/squadfront/server/pkg/core"
	"github.com/squadfront/server/pkg/streaming"
)

// Engine is the part of the session engine the handlers drive.
type Engine interface {
	StartSession(r session.Roster) (view.SessionView, error)
	UnlockUnit(sessionID, playerID, unitTypeID string) error
	PlaceUnit(sessionID, playerID, unitTypeID string, pos core.Vec2, rot core.Rotation) (string, error)
	ForceStartCombat(sessionID, playerID string) error
	Attach(playerID string) (view.SessionView, error)
	RemovePlayer(playerID string)
	PlayerSession(playerID string) (string, bool)
}

var _ Engine = (*session.Engine)(nil)

// Service provides the command handlers
type Service struct {
	engine Engine
	log    *slog.Logger
}

// NewService creates a handler service over engine
func NewService(engine Engine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{engine: engine, log: log}
}

// RegisterHandlers registers all commands with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Commands answered with a command_result - sync
	d.Register(streaming.TypeStartSession, s.handleStartSession, dispatcher.Logged())
	d.Register(streaming.TypeUnlockUnit, s.handleUnlockUnit, dispatcher.Logged())
	d.Register(streaming.TypePlaceUnit, s.handlePlaceUnit, dispatcher.Logged())
	d.Register(streaming.TypeForceStartCombat, s.handleForceStartCombat, dispatcher.Logged())
	d.Register(streaming.TypeAttachPlayer, s.handleAttachPlayer, dispatcher.Logged())

	// Disconnects never answer; a reconnect's attach must apply after the removal
	d.Register(streaming.TypeRemovePlayer, s.handleRemovePlayer, dispatcher.Logged())
}

func decode(e dispatcher.Event, v any) error {
	if len(e.Payload) == 0 {
		return session.Reject("bad_payload", fmt.Sprintf("%s needs a payload", e.Command))
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return session.Reject("bad_payload", fmt.Sprintf("malformed %s payload: %v", e.Command, err))
	}
	return nil
}

// sessionOf resolves the session the sending player belongs to.
func (s *Service) sessionOf(e dispatcher.Event) (string, error) {
	if e.PlayerID == "" {
		return "", session.Reject("player_not_found", "command has no player")
	}
	id, ok := s.engine.PlayerSession(e.PlayerID)
	if !ok {
		return "", session.Reject("session_not_found", "you are not in a session")
	}
	return id, nil
}

func (s *Service) handleStartSession(e dispatcher.Event) (any, error) {
	var p streaming.StartSessionPayload
	if err := decode(e, &p); err != nil {
		return nil, err
	}

	r := session.Roster{HostID: p.HostID, Mode: p.Mode}
	for _, entry := range p.Players {
		r.Players = append(r.Players, session.Seat{ID: entry.ID, Username: entry.Username, Faction: entry.Faction})
	}

	v, err := s.engine.StartSession(r)
	if err != nil {
		return nil, err
	}
	s.log.Info("Session started", "session", v.SessionID, "host", p.HostID, "mode", p.Mode)
	return streaming.StartSessionResponse{SessionID: v.SessionID}, nil
}

func (s *Service) handleUnlockUnit(e dispatcher.Event) (any, error) {
	var p streaming.UnlockUnitPayload
	if err := decode(e, &p); err != nil {
		return nil, err
	}
	sessionID, err := s.sessionOf(e)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.UnlockUnit(sessionID, e.PlayerID, p.UnitTypeID)
}

func (s *Service) handlePlaceUnit(e dispatcher.Event) (any, error) {
	var p streaming.PlaceUnitPayload
	if err := decode(e, &p); err != nil {
		return nil, err
	}
	sessionID, err := s.sessionOf(e)
	if err != nil {
		return nil, err
	}

	instanceID, err := s.engine.PlaceUnit(
		sessionID,
		e.PlayerID,
		p.UnitTypeID,
		core.Vec2{X: p.X, Z: p.Z},
		core.Rotation(p.Rotation),
	)
	if err != nil {
		return nil, err
	}
	return instanceID, nil
}

func (s *Service) handleForceStartCombat(e dispatcher.Event) (any, error) {
	sessionID, err := s.sessionOf(e)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.ForceStartCombat(sessionID, e.PlayerID)
}

func (s *Service) handleAttachPlayer(e dispatcher.Event) (any, error) {
	if e.PlayerID == "" {
		return nil, session.Reject("player_not_found", "command has no player")
	}
	return s.engine.Attach(e.PlayerID)
}

func (s *Service) handleRemovePlayer(e dispatcher.Event) (any, error) {
	s.engine.RemovePlayer(e.PlayerID)
	return nil, nil
}

// Result turns a handler's return values into the reply sent to the player.
func Result(e dispatcher.Event, result any, err error) streaming.CommandResult {
	out := streaming.CommandResult{For: e.Command, RequestID: e.RequestID, OK: err == nil}
	if err != nil {
		out.Code = session.Code(err)
		out.Reason = session.Reason(err)
		return out
	}
	if id, ok := result.(string); ok && e.Command == streaming.TypePlaceUnit {
		out.InstanceID = id
	}
	return out
}
