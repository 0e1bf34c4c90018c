// pkg/core/player.go
package core

import "maps"

// PlayerInGame is a participant's state inside one session.
type PlayerInGame struct {
	ID              string
	Username        string
	Faction         string
	Credits         int
	BaseHealth      int
	UnlockedUnitIDs map[string]bool
	PlacedUnits     []*PlacedUnit

	// UnitsPlacedThisRound is capped by the placement limit and resets every round.
	UnitsPlacedThisRound int
	// UnitsAtCombatStart is the squad snapshot taken when the last combat began.
	UnitsAtCombatStart []*PlacedUnit

	Connected bool
}

func (p *PlayerInGame) HasUnlocked(unitTypeID string) bool {
	return p.UnlockedUnitIDs[unitTypeID]
}

// LivingFigures counts living figures over all of the player's squads.
func (p *PlayerInGame) LivingFigures() int {
	n := 0
	for _, u := range p.PlacedUnits {
		n += u.LivingFigures()
	}
	return n
}

// Unit finds a placed squad by instance id.
func (p *PlayerInGame) Unit(instanceID string) *PlacedUnit {
	for _, u := range p.PlacedUnits {
		if u.InstanceID == instanceID {
			return u
		}
	}
	return nil
}

func (p *PlayerInGame) Clone() *PlayerInGame {
	c := *p
	c.UnlockedUnitIDs = maps.Clone(p.UnlockedUnitIDs)
	c.PlacedUnits = CloneUnits(p.PlacedUnits)
	c.UnitsAtCombatStart = CloneUnits(p.UnitsAtCombatStart)
	return &c
}
