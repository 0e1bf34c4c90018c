// pkg/core/unit.go
package core

import (
	"maps"
	"time"
)

// Behavior is what a figure did on its last tick.
type Behavior string

const (
	BehaviorIdle      Behavior = "idle"
	BehaviorMoving    Behavior = "moving"
	BehaviorAttacking Behavior = "attacking"
)

// Rotation of a placed squad in degrees. At 90 the footprint width and height swap.
type Rotation int

const (
	Rotation0  Rotation = 0
	Rotation90 Rotation = 90
)

func (r Rotation) Valid() bool { return r == Rotation0 || r == Rotation90 }

// Footprint returns the effective width and height for the rotation.
func (r Rotation) Footprint(width, height int) (int, int) {
	if r == Rotation90 {
		return height, width
	}
	return width, height
}

// FigureState is one individually positioned combatant of a squad.
type FigureState struct {
	ID             string
	UnitInstanceID string
	OwnerID        string
	UnitTypeID     string
	Position       Vec2
	HP             int
	Behavior       Behavior
	TargetFigureID string
	// WeaponCooldowns holds the earliest time each weapon may fire again, keyed by weapon id.
	WeaponCooldowns map[string]time.Time
}

func (f *FigureState) Alive() bool { return f.HP > 0 }

func (f *FigureState) Clone() *FigureState {
	c := *f
	c.WeaponCooldowns = maps.Clone(f.WeaponCooldowns)
	return &c
}

// PlacedUnit is a squad placed by a player.
type PlacedUnit struct {
	InstanceID      string
	UnitTypeID      string
	OwnerID         string
	InitialPosition Vec2
	Rotation        Rotation
	Figures         []*FigureState

	TotalDamageDealt     int
	TotalKills           int
	LastRoundDamageDealt int
	LastRoundKills       int
}

// LivingFigures counts figures with HP above zero.
func (u *PlacedUnit) LivingFigures() int {
	n := 0
	for _, f := range u.Figures {
		if f.Alive() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy sharing no figures with u.
func (u *PlacedUnit) Clone() *PlacedUnit {
	c := *u
	if u.Figures != nil {
		c.Figures = make([]*FigureState, len(u.Figures))
		for i, f := range u.Figures {
			c.Figures[i] = f.Clone()
		}
	}
	return &c
}

// CloneUnits deep-copies a squad list.
func CloneUnits(units []*PlacedUnit) []*PlacedUnit {
	if units == nil {
		return nil
	}
	out := make([]*PlacedUnit, len(units))
	for i, u := range units {
		out[i] = u.Clone()
	}
	return out
}
