package view

import (
	"testing"
	"time"

	"github.com/squadfront/server/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(id, owner string, x float64) *core.PlacedUnit {
	return &core.PlacedUnit{
		InstanceID:      id,
		UnitTypeID:      "rifle",
		OwnerID:         owner,
		InitialPosition: core.Vec2{X: x, Z: 3},
		Figures:         []*core.FigureState{{ID: id + "-f", OwnerID: owner, HP: 10, Position: core.Vec2{X: x, Z: 3}}},
	}
}

func fogSession(phase core.Phase) *core.GameSession {
	deadline := time.Date(2026, 5, 1, 0, 0, 30, 0, time.UTC)
	host := &core.PlayerInGame{
		ID:                 "host",
		Credits:            40,
		UnlockedUnitIDs:    map[string]bool{"rifle": true, "mortar": true},
		PlacedUnits:        []*core.PlacedUnit{unit("old-h", "host", 1), unit("new-h", "host", 5)},
		UnitsAtCombatStart: []*core.PlacedUnit{unit("old-h", "host", 1)},
	}
	guest := &core.PlayerInGame{
		ID:                 "guest",
		Credits:            70,
		PlacedUnits:        []*core.PlacedUnit{unit("old-g", "guest", 2), unit("new-g", "guest", 8)},
		UnitsAtCombatStart: []*core.PlacedUnit{unit("old-g", "guest", 2)},
	}
	return &core.GameSession{
		ID:                  "s1",
		HostPlayerID:        "host",
		Mode:                "casual",
		Round:               2,
		Phase:               phase,
		PreparationDeadline: &deadline,
		PlayerOrder:         []string{"host", "guest"},
		Players:             map[string]*core.PlayerInGame{"host": host, "guest": guest},
	}
}

func instanceIDs(p PlayerView) []string {
	var ids []string
	for _, u := range p.PlacedUnits {
		ids = append(ids, u.InstanceID)
	}
	return ids
}

func TestFogDuringPreparation(t *testing.T) {
	s := fogSession(core.PhasePreparation)

	hostView := Build(s, "host")
	require.Len(t, hostView.Players, 2)
	assert.Equal(t, []string{"old-h", "new-h"}, instanceIDs(hostView.Players[0]), "own squads are live")
	assert.Equal(t, []string{"old-g"}, instanceIDs(hostView.Players[1]), "opponent shows the combat-start snapshot")

	guestView := Build(s, "guest")
	assert.Equal(t, []string{"old-h"}, instanceIDs(guestView.Players[0]))
	assert.Equal(t, []string{"old-g", "new-g"}, instanceIDs(guestView.Players[1]))

	assert.Equal(t, 70, hostView.Players[1].Credits, "credits are not hidden")
	assert.Equal(t, []string{"mortar", "rifle"}, guestView.Players[0].UnlockedUnitIDs)
}

func TestNoFogOutsidePreparation(t *testing.T) {
	for _, phase := range []core.Phase{core.PhaseCombat, core.PhaseGameOver} {
		s := fogSession(phase)
		for _, d := range BuildAll(s) {
			assert.Equal(t, []string{"old-h", "new-h"}, instanceIDs(d.View.Players[0]), "%s for %s", phase, d.PlayerID)
			assert.Equal(t, []string{"old-g", "new-g"}, instanceIDs(d.View.Players[1]), "%s for %s", phase, d.PlayerID)
		}
	}
}

func TestViewIsACopy(t *testing.T) {
	s := fogSession(core.PhaseCombat)
	s.ActiveProjectiles = []*core.ProjectileState{{ID: "p1", Kind: core.ProjectileBallistic, Current: core.Position3D{X: 1, Y: 2, Z: 3}}}
	v := Build(s, "host")

	s.Players["host"].PlacedUnits[0].Figures[0].HP = 0
	*s.PreparationDeadline = time.Time{}
	s.ActiveProjectiles[0].Current.Y = 9

	assert.Equal(t, 10, v.Players[0].PlacedUnits[0].Figures[0].HP)
	assert.False(t, v.PreparationDeadline.IsZero())
	assert.Equal(t, 2.0, v.Projectiles[0].Current.Y)
}

func TestCodecs(t *testing.T) {
	v := Build(fogSession(core.PhasePreparation), "host")

	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			c, err := NewCodec(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())
			assert.Equal(t, name == "msgpack", c.Binary())

			data, err := c.Marshal(v)
			require.NoError(t, err)

			var fields map[string]any
			require.NoError(t, c.Unmarshal(data, &fields))
			assert.Equal(t, "s1", fields["sessionId"])
			assert.Contains(t, fields, "preparationDeadline")

			var back SessionView
			require.NoError(t, c.Unmarshal(data, &back))
			assert.Equal(t, v.Players[0].PlacedUnits[1].InstanceID, back.Players[0].PlacedUnits[1].InstanceID)
			assert.True(t, v.PreparationDeadline.Equal(*back.PreparationDeadline))
		})
	}

	_, err := NewCodec("xml")
	assert.Error(t, err)
}
