// pkg/core/session.go
package core

import (
	"slices"
	"time"
)

// Phase of a session's round state machine.
type Phase string

const (
	PhasePreparation Phase = "preparation"
	PhaseCombat      Phase = "combat"
	PhaseGameOver    Phase = "game_over"
)

// GameSession is one match between two players.
type GameSession struct {
	ID           string
	HostPlayerID string
	Mode         string
	Round        int
	Phase        Phase

	PreparationDeadline *time.Time

	Players map[string]*PlayerInGame
	// PlayerOrder is the roster order, host first. All per-tick iteration follows it.
	PlayerOrder []string

	ActiveProjectiles []*ProjectileState

	CreatedAt time.Time
	WinnerID  string
}

// OrderedPlayers returns the players in roster order.
func (s *GameSession) OrderedPlayers() []*PlayerInGame {
	out := make([]*PlayerInGame, 0, len(s.PlayerOrder))
	for _, id := range s.PlayerOrder {
		if p, ok := s.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// FindUnit looks up a squad by instance id across all players. Instance ids are unique
// per session.
func (s *GameSession) FindUnit(instanceID string) *PlacedUnit {
	for _, p := range s.Players {
		if u := p.Unit(instanceID); u != nil {
			return u
		}
	}
	return nil
}

// Clone returns a deep copy of the session.
func (s *GameSession) Clone() *GameSession {
	c := *s
	if s.PreparationDeadline != nil {
		d := *s.PreparationDeadline
		c.PreparationDeadline = &d
	}
	if s.Players != nil {
		c.Players = make(map[string]*PlayerInGame, len(s.Players))
		for id, p := range s.Players {
			c.Players[id] = p.Clone()
		}
	}
	c.PlayerOrder = slices.Clone(s.PlayerOrder)
	if s.ActiveProjectiles != nil {
		c.ActiveProjectiles = make([]*ProjectileState, len(s.ActiveProjectiles))
		for i, p := range s.ActiveProjectiles {
			c.ActiveProjectiles[i] = p.Clone()
		}
	}
	return &c
}
