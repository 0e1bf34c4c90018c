// pkg/core/projectile.go
package core

import "time"

// ProjectileKind selects the flight model of a shot.
type ProjectileKind string

const (
	// ProjectileTargeted flies straight at constant speed and hits a single figure.
	ProjectileTargeted ProjectileKind = "targeted"
	// ProjectileBallistic arcs over a fixed flight time and splashes on impact.
	ProjectileBallistic ProjectileKind = "ballistic"
)

func (k ProjectileKind) Valid() bool {
	return k == ProjectileTargeted || k == ProjectileBallistic
}

// ProjectileState is a shot in flight.
type ProjectileState struct {
	ID                   string
	OwnerID              string
	UnitTypeID           string
	WeaponID             string
	SourceUnitInstanceID string
	Damage               int
	Kind                 ProjectileKind

	Speed        float64 // targeted
	SplashRadius float64 // ballistic
	MaxArcHeight float64 // ballistic

	Origin  Vec2
	Target  Vec2 // target position at fire time
	Current Position3D

	CreatedAt       time.Time
	TotalFlightTime time.Duration // ballistic
	TargetFigureID  string        // targeted
}

func (p *ProjectileState) Clone() *ProjectileState {
	c := *p
	return &c
}
