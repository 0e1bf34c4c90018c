// Package placement validates squad placements and lays out their figures.
package placement

import (
	"fmt"
	"math/rand/v2"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/squadfront/server/internal/catalog"
	"github.com/squadfront/server/internal/geo"
	"github.com/squadfront/server/pkg/core"
)

// Reason identifies why a placement was rejected.
type Reason string

const (
	ReasonWrongPhase          Reason = "wrong_phase"
	ReasonUnknownUnit         Reason = "unknown_unit"
	ReasonUnitLocked          Reason = "unit_locked"
	ReasonWrongFaction        Reason = "wrong_faction"
	ReasonInsufficientCredits Reason = "insufficient_credits"
	ReasonPlacementLimit      Reason = "placement_limit"
	ReasonOutOfBounds         Reason = "out_of_bounds"
	ReasonOutsideZone         Reason = "outside_zone"
	ReasonOverlap             Reason = "overlap"
)

// Rejection is returned for the first failing placement check.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("placement rejected (%s): %s", r.Reason, r.Message)
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Rules are the session-independent placement settings.
type Rules struct {
	Grid           geo.Grid
	PlacementLimit int
	Jitter         float64
}

// Request is a proposed placement.
type Request struct {
	PlayerID   string
	UnitTypeID string
	Position   core.Vec2
	Rotation   core.Rotation
}

// Validator checks and commits placements against a catalog.
type Validator struct {
	catalog *catalog.Catalog
	rules   Rules
}

func New(c *catalog.Catalog, rules Rules) *Validator {
	return &Validator{catalog: c, rules: rules}
}

// Validate runs every placement check in order and returns the resolved unit on success.
// Failures are *Rejection values.
func (v *Validator) Validate(s *core.GameSession, req Request) (catalog.UnitRef, error) {
	player, ok := s.Players[req.PlayerID]
	if !ok {
		return catalog.UnitRef{}, fmt.Errorf("player %q is not in session %q", req.PlayerID, s.ID)
	}
	if s.Phase != core.PhasePreparation {
		return catalog.UnitRef{}, reject(ReasonWrongPhase, "units can only be placed during preparation, session is in %s", s.Phase)
	}

	ref, err := v.catalog.Unit(req.UnitTypeID)
	if err != nil {
		return catalog.UnitRef{}, reject(ReasonUnknownUnit, "unit type %q does not exist", req.UnitTypeID)
	}
	unit := ref.Unit
	if unit.Faction != player.Faction {
		return catalog.UnitRef{}, reject(ReasonWrongFaction, "%s belongs to faction %s", unit.Name, unit.Faction)
	}
	if !player.HasUnlocked(unit.ID) {
		if player.Credits < unit.UnlockCost {
			return catalog.UnitRef{}, reject(ReasonInsufficientCredits, "%s needs %d credits to unlock, you have %d", unit.Name, unit.UnlockCost, player.Credits)
		}
		return catalog.UnitRef{}, reject(ReasonUnitLocked, "%s is not unlocked", unit.Name)
	}
	if player.Credits < unit.PlacementCost {
		return catalog.UnitRef{}, reject(ReasonInsufficientCredits, "%s costs %d credits, you have %d", unit.Name, unit.PlacementCost, player.Credits)
	}

	if player.UnitsPlacedThisRound >= v.rules.PlacementLimit {
		return catalog.UnitRef{}, reject(ReasonPlacementLimit, "at most %d units can be placed per round", v.rules.PlacementLimit)
	}

	if !req.Rotation.Valid() {
		return catalog.UnitRef{}, reject(ReasonOutOfBounds, "rotation must be 0 or 90, got %d", req.Rotation)
	}
	w, h := req.Rotation.Footprint(unit.Width, unit.Height)
	fp, err := geo.Footprint(req.Position, w, h)
	if err != nil {
		return catalog.UnitRef{}, reject(ReasonOutOfBounds, "position (%v, %v) is not on the battlefield", req.Position.X, req.Position.Z)
	}
	if !v.rules.Grid.Bounds().Covers(fp) {
		return catalog.UnitRef{}, reject(ReasonOutOfBounds, "footprint at (%.1f, %.1f) leaves the battlefield", req.Position.X, req.Position.Z)
	}
	if !v.rules.Grid.Zone(req.PlayerID == s.HostPlayerID).Covers(fp) {
		return catalog.UnitRef{}, reject(ReasonOutsideZone, "footprint at (%.1f, %.1f) is outside your deployment zone", req.Position.X, req.Position.Z)
	}

	for _, p := range s.OrderedPlayers() {
		for _, other := range p.PlacedUnits {
			ofp, ok := v.Footprint(other)
			if !ok {
				continue
			}
			if fp.Intersects(ofp) {
				return catalog.UnitRef{}, reject(ReasonOverlap, "footprint overlaps squad %s", other.InstanceID)
			}
		}
	}

	return ref, nil
}

// Place validates req and, on success, deducts credits, counts the placement and
// appends a freshly laid out squad in one step.
func (v *Validator) Place(s *core.GameSession, req Request, rng *rand.Rand) (*core.PlacedUnit, error) {
	ref, err := v.Validate(s, req)
	if err != nil {
		return nil, err
	}
	player := s.Players[req.PlayerID]
	squad := NewSquad(ref, req.PlayerID, req.Position, req.Rotation, v.rules.Jitter, rng)

	player.Credits -= ref.Unit.PlacementCost
	player.UnitsPlacedThisRound++
	player.PlacedUnits = append(player.PlacedUnits, squad)
	return squad, nil
}

// Footprint returns the occupied cells of a placed squad. It reports false when the
// squad's unit type is not in the catalog or its position is not finite.
func (v *Validator) Footprint(u *core.PlacedUnit) (geom.Envelope, bool) {
	ref, err := v.catalog.Unit(u.UnitTypeID)
	if err != nil {
		return geom.Envelope{}, false
	}
	w, h := u.Rotation.Footprint(ref.Unit.Width, ref.Unit.Height)
	fp, err := geo.Footprint(u.InitialPosition, w, h)
	if err != nil {
		return geom.Envelope{}, false
	}
	return fp, true
}
