// Package view builds the per-player snapshots sent to clients.
package view

import (
	"slices"
	"time"

	"github.com/squadfront/server/pkg/core"
)

type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type FigureView struct {
	ID       string        `json:"id"`
	Position Point         `json:"position"`
	HP       int           `json:"hp"`
	Behavior core.Behavior `json:"behavior"`
	TargetID string        `json:"targetId,omitempty"`
}

type UnitView struct {
	InstanceID           string       `json:"instanceId"`
	UnitTypeID           string       `json:"unitTypeId"`
	OwnerID              string       `json:"ownerId"`
	Position             Point        `json:"position"`
	Rotation             int          `json:"rotation"`
	Figures              []FigureView `json:"figures"`
	TotalDamageDealt     int          `json:"totalDamageDealt"`
	TotalKills           int          `json:"totalKills"`
	LastRoundDamageDealt int          `json:"lastRoundDamageDealt"`
	LastRoundKills       int          `json:"lastRoundKills"`
}

type PlayerView struct {
	ID                   string     `json:"id"`
	Username             string     `json:"username"`
	Faction              string     `json:"faction"`
	Credits              int        `json:"credits"`
	BaseHealth           int        `json:"baseHealth"`
	UnlockedUnitIDs      []string   `json:"unlockedUnitIds"`
	PlacedUnits          []UnitView `json:"placedUnits"`
	UnitsPlacedThisRound int        `json:"unitsPlacedThisRound"`
	Connected            bool       `json:"connected"`
}

type ProjectileView struct {
	ID             string              `json:"id"`
	OwnerID        string              `json:"ownerId"`
	WeaponID       string              `json:"weaponId"`
	Kind           core.ProjectileKind `json:"kind"`
	Origin         Point               `json:"origin"`
	Target         Point               `json:"target"`
	Current        Point3              `json:"current"`
	TargetFigureID string              `json:"targetFigureId,omitempty"`
}

// SessionView is the state of a session as one player is allowed to see it.
type SessionView struct {
	SessionID           string           `json:"sessionId"`
	RecipientID         string           `json:"recipientId"`
	HostPlayerID        string           `json:"hostPlayerId"`
	Mode                string           `json:"mode"`
	Round               int              `json:"round"`
	Phase               core.Phase       `json:"phase"`
	PreparationDeadline *time.Time       `json:"preparationDeadline,omitempty"`
	Players             []PlayerView     `json:"players"`
	Projectiles         []ProjectileView `json:"projectiles"`
	WinnerID            string           `json:"winnerId,omitempty"`
}

// Delivery pairs a view with the player it is for.
type Delivery struct {
	PlayerID string
	View     SessionView
}

// Build returns the session as seen by recipientID. During preparation every other
// player's squads are shown as they were when the last combat began.
func Build(s *core.GameSession, recipientID string) SessionView {
	v := SessionView{
		SessionID:    s.ID,
		RecipientID:  recipientID,
		HostPlayerID: s.HostPlayerID,
		Mode:         s.Mode,
		Round:        s.Round,
		Phase:        s.Phase,
		Players:      make([]PlayerView, 0, len(s.PlayerOrder)),
		Projectiles:  make([]ProjectileView, 0, len(s.ActiveProjectiles)),
		WinnerID:     s.WinnerID,
	}
	if s.PreparationDeadline != nil {
		d := *s.PreparationDeadline
		v.PreparationDeadline = &d
	}

	for _, p := range s.OrderedPlayers() {
		units := p.PlacedUnits
		if s.Phase == core.PhasePreparation && p.ID != recipientID {
			units = p.UnitsAtCombatStart
		}
		v.Players = append(v.Players, playerView(p, units))
	}
	for _, p := range s.ActiveProjectiles {
		v.Projectiles = append(v.Projectiles, ProjectileView{
			ID:             p.ID,
			OwnerID:        p.OwnerID,
			WeaponID:       p.WeaponID,
			Kind:           p.Kind,
			Origin:         point(p.Origin),
			Target:         point(p.Target),
			Current:        Point3{X: p.Current.X, Y: p.Current.Y, Z: p.Current.Z},
			TargetFigureID: p.TargetFigureID,
		})
	}
	return v
}

// BuildAll returns one view per player in roster order.
func BuildAll(s *core.GameSession) []Delivery {
	out := make([]Delivery, 0, len(s.PlayerOrder))
	for _, id := range s.PlayerOrder {
		out = append(out, Delivery{PlayerID: id, View: Build(s, id)})
	}
	return out
}

func playerView(p *core.PlayerInGame, units []*core.PlacedUnit) PlayerView {
	pv := PlayerView{
		ID:                   p.ID,
		Username:             p.Username,
		Faction:              p.Faction,
		Credits:              p.Credits,
		BaseHealth:           p.BaseHealth,
		UnlockedUnitIDs:      make([]string, 0, len(p.UnlockedUnitIDs)),
		PlacedUnits:          make([]UnitView, 0, len(units)),
		UnitsPlacedThisRound: p.UnitsPlacedThisRound,
		Connected:            p.Connected,
	}
	for id, ok := range p.UnlockedUnitIDs {
		if ok {
			pv.UnlockedUnitIDs = append(pv.UnlockedUnitIDs, id)
		}
	}
	slices.Sort(pv.UnlockedUnitIDs)
	for _, u := range units {
		pv.PlacedUnits = append(pv.PlacedUnits, unitView(u))
	}
	return pv
}

func unitView(u *core.PlacedUnit) UnitView {
	uv := UnitView{
		InstanceID:           u.InstanceID,
		UnitTypeID:           u.UnitTypeID,
		OwnerID:              u.OwnerID,
		Position:             point(u.InitialPosition),
		Rotation:             int(u.Rotation),
		Figures:              make([]FigureView, 0, len(u.Figures)),
		TotalDamageDealt:     u.TotalDamageDealt,
		TotalKills:           u.TotalKills,
		LastRoundDamageDealt: u.LastRoundDamageDealt,
		LastRoundKills:       u.LastRoundKills,
	}
	for _, f := range u.Figures {
		uv.Figures = append(uv.Figures, FigureView{
			ID:       f.ID,
			Position: point(f.Position),
			HP:       f.HP,
			Behavior: f.Behavior,
			TargetID: f.TargetFigureID,
		})
	}
	return uv
}

func point(v core.Vec2) Point { return Point{X: v.X, Z: v.Z} }
