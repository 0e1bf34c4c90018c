package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *GameSession {
	now := time.Unix(1000, 0)
	unit := &PlacedUnit{
		InstanceID: "u1",
		UnitTypeID: "rifle",
		OwnerID:    "p1",
		Figures: []*FigureState{
			{ID: "f1", HP: 10, WeaponCooldowns: map[string]time.Time{"rifle": now}},
			{ID: "f2", HP: 0},
		},
	}
	return &GameSession{
		ID:                  "s1",
		HostPlayerID:        "p1",
		Round:               1,
		Phase:               PhasePreparation,
		PreparationDeadline: &now,
		PlayerOrder:         []string{"p1", "p2"},
		Players: map[string]*PlayerInGame{
			"p1": {ID: "p1", UnlockedUnitIDs: map[string]bool{"rifle": true}, PlacedUnits: []*PlacedUnit{unit}},
			"p2": {ID: "p2", UnlockedUnitIDs: map[string]bool{}},
		},
		ActiveProjectiles: []*ProjectileState{{ID: "pr1"}},
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := testSession()
	c := s.Clone()

	c.Players["p1"].PlacedUnits[0].Figures[0].HP = 1
	c.Players["p1"].PlacedUnits[0].Figures[0].WeaponCooldowns["rifle"] = time.Time{}
	c.Players["p1"].UnlockedUnitIDs["mortar"] = true
	c.ActiveProjectiles[0].ID = "changed"
	*c.PreparationDeadline = time.Time{}
	c.PlayerOrder[0] = "x"

	assert.Equal(t, 10, s.Players["p1"].PlacedUnits[0].Figures[0].HP)
	assert.False(t, s.Players["p1"].PlacedUnits[0].Figures[0].WeaponCooldowns["rifle"].IsZero())
	assert.False(t, s.Players["p1"].HasUnlocked("mortar"))
	assert.Equal(t, "pr1", s.ActiveProjectiles[0].ID)
	assert.False(t, s.PreparationDeadline.IsZero())
	assert.Equal(t, "p1", s.PlayerOrder[0])
}

func TestLookups(t *testing.T) {
	s := testSession()

	require.NotNil(t, s.FindUnit("u1"))
	assert.Nil(t, s.FindUnit("nope"))
	assert.Equal(t, 1, s.Players["p1"].LivingFigures())
	assert.Equal(t, 0, s.Players["p2"].LivingFigures())
}

func TestRotationFootprint(t *testing.T) {
	w, h := Rotation90.Footprint(3, 1)
	assert.Equal(t, 1, w)
	assert.Equal(t, 3, h)
	w, h = Rotation0.Footprint(3, 1)
	assert.Equal(t, 3, w)
	assert.Equal(t, 1, h)
	assert.False(t, Rotation(45).Valid())
}

func TestVec2(t *testing.T) {
	a := Vec2{X: 0, Z: 0}
	b := Vec2{X: 3, Z: 4}
	assert.Equal(t, 25.0, a.DistSq(b))
	assert.Equal(t, 5.0, a.Dist(b))
	assert.Equal(t, Vec2{X: 1.5, Z: 2}, a.Lerp(b, 0.5))
	assert.Equal(t, Position3D{X: 3, Y: 2, Z: 4}, b.At(2))
}
