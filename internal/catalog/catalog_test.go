package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/squadfront/server/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
weapons:
  - id: gun
    kind: targeted
    speed: 20
  - id: lobber
    kind: ballistic
    speed: 5
    splash_radius: 2
    max_arc_height: 3
    damage: 50
    attack_speed: 0.5
units:
  - id: grunt
    faction: red
    hp: 100
    damage: 40
    attack_speed: 1
    range: 5
    speed: 2
    collision_radius: 0.3
    squad_size: 1
    formation: {columns: 1, rows: 1}
    width: 1
    height: 1
    placement_cost: 10
    weapons: [gun, lobber]
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	require.NoError(t, err)

	ref, err := c.Unit("grunt")
	require.NoError(t, err)
	assert.True(t, ref.Valid())
	assert.Equal(t, 100, ref.Unit.HP)
	require.Len(t, ref.Weapons, 2)

	gun := ref.Weapons[0]
	assert.Equal(t, core.ProjectileTargeted, gun.Kind())
	assert.Equal(t, 40, gun.Damage, "falls back to unit damage")
	assert.Equal(t, time.Second, gun.Cooldown())

	lobber := ref.Weapons[1]
	assert.Equal(t, 50, lobber.Damage)
	assert.Equal(t, 2*time.Second, lobber.Cooldown())
}

func TestUnknownEntries(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	require.NoError(t, err)

	_, err = c.Unit("missing")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestUnitHandlesAreResolvedOnce(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	require.NoError(t, err)

	a, err := c.Unit("grunt")
	require.NoError(t, err)
	b, err := c.Unit("grunt")
	require.NoError(t, err)
	assert.Same(t, a.Unit, b.Unit)
	require.NotEmpty(t, a.Weapons)
	assert.Same(t, &a.Weapons[0], &b.Weapons[0], "weapons slice is shared, not rebuilt")

	allocs := testing.AllocsPerRun(100, func() {
		_, _ = c.Unit("grunt")
	})
	assert.Zero(t, allocs)
}

func TestValidateRejectsBrokenUnits(t *testing.T) {
	_, err := New([]Unit{{ID: "bad", HP: 10, SquadSize: 0, Width: 1, Height: 1, Weapons: []string{"nope"}}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownWeapon)
	assert.Contains(t, err.Error(), "squad_size")

	_, err = New([]Unit{{ID: "flat", HP: 10, SquadSize: 1, Width: 0, Height: 1, AttackSpeed: 1, Weapons: []string{"w"}}},
		[]Weapon{{ID: "w", Kind: core.ProjectileTargeted}})
	assert.ErrorContains(t, err, "footprint")

	_, err = New(nil, []Weapon{{ID: "w", Kind: "laser"}})
	assert.ErrorContains(t, err, "unknown kind")
}

func TestDuplicateIDs(t *testing.T) {
	w := Weapon{ID: "w", Kind: core.ProjectileTargeted}
	_, err := New(nil, []Weapon{w, w})
	assert.ErrorContains(t, err, "duplicate weapon")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Units(), 1)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"swarm", "vanguard"}, c.Factions())
	assert.Equal(t, []string{"rifle_squad"}, c.StartingUnlocks("vanguard"))
	assert.Equal(t, []string{"raider_pack"}, c.StartingUnlocks("swarm"))

	for _, u := range c.Units() {
		ref, err := c.Unit(u.ID)
		require.NoError(t, err, u.ID)
		assert.NotEmpty(t, ref.Weapons, u.ID)
	}
}
