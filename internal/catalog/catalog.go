// Package catalog holds the read-only unit and weapon definitions.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/squadfront/server/pkg/core"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownUnit is returned when a unit type id has no catalog entry.
	ErrUnknownUnit = errors.New("unknown unit type")
	// ErrUnknownWeapon is returned when a weapon id has no catalog entry.
	ErrUnknownWeapon = errors.New("unknown weapon")
)

// Formation is the declared figure layout of a squad.
type Formation struct {
	Columns int `yaml:"columns" json:"columns"`
	Rows    int `yaml:"rows" json:"rows"`
}

// Capacity is the number of slots in the formation grid.
func (f Formation) Capacity() int { return f.Columns * f.Rows }

// Unit is a squad type definition.
type Unit struct {
	ID              string    `yaml:"id" json:"id"`
	Name            string    `yaml:"name" json:"name"`
	Faction         string    `yaml:"faction" json:"faction"`
	HP              int       `yaml:"hp" json:"hp"`
	Damage          int       `yaml:"damage" json:"damage"`
	AttackSpeed     float64   `yaml:"attack_speed" json:"attackSpeed"` // attacks per second
	Range           float64   `yaml:"range" json:"range"`
	Speed           float64   `yaml:"speed" json:"speed"` // cells per second
	CollisionRadius float64   `yaml:"collision_radius" json:"collisionRadius"`
	SquadSize       int       `yaml:"squad_size" json:"squadSize"`
	Formation       Formation `yaml:"formation" json:"formation"`
	Width           int       `yaml:"width" json:"width"`
	Height          int       `yaml:"height" json:"height"`
	PlacementCost   int       `yaml:"placement_cost" json:"placementCost"`
	UnlockCost      int       `yaml:"unlock_cost" json:"unlockCost"`
	Weapons         []string  `yaml:"weapons" json:"weapons"`
}

// Weapon is a projectile definition. Zero Damage or AttackSpeed fall back to the unit's values.
type Weapon struct {
	ID           string              `yaml:"id" json:"id"`
	Kind         core.ProjectileKind `yaml:"kind" json:"kind"`
	Speed        float64             `yaml:"speed" json:"speed"`
	SplashRadius float64             `yaml:"splash_radius" json:"splashRadius"`
	MaxArcHeight float64             `yaml:"max_arc_height" json:"maxArcHeight"`
	Damage       int                 `yaml:"damage" json:"damage"`
	AttackSpeed  float64             `yaml:"attack_speed" json:"attackSpeed"`
}

// File is the on-disk catalog layout.
type File struct {
	Units   []Unit   `yaml:"units"`
	Weapons []Weapon `yaml:"weapons"`
}

// Catalog is an immutable index of units and weapons.
type Catalog struct {
	units   map[string]*Unit
	weapons map[string]*Weapon
	refs    map[string]UnitRef
	order   []string
}

// New indexes and validates the given definitions.
func New(units []Unit, weapons []Weapon) (*Catalog, error) {
	c := &Catalog{
		units:   make(map[string]*Unit, len(units)),
		weapons: make(map[string]*Weapon, len(weapons)),
	}
	for i := range weapons {
		w := weapons[i]
		if _, dup := c.weapons[w.ID]; dup {
			return nil, fmt.Errorf("duplicate weapon %q", w.ID)
		}
		c.weapons[w.ID] = &w
	}
	for i := range units {
		u := units[i]
		if _, dup := c.units[u.ID]; dup {
			return nil, fmt.Errorf("duplicate unit %q", u.ID)
		}
		u.Weapons = append([]string(nil), u.Weapons...)
		c.units[u.ID] = &u
		c.order = append(c.order, u.ID)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.resolve()
	return c, nil
}

// resolve builds the unit handles once; Validate has already checked every weapon id.
func (c *Catalog) resolve() {
	c.refs = make(map[string]UnitRef, len(c.units))
	for id, u := range c.units {
		ref := UnitRef{Unit: u, Weapons: make([]WeaponRef, 0, len(u.Weapons))}
		for _, wid := range u.Weapons {
			ref.Weapons = append(ref.Weapons, resolveWeapon(u, c.weapons[wid]))
		}
		c.refs[id] = ref
	}
}

// Parse reads a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Units, f.Weapons)
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Validate checks that every unit is playable and references known weapons.
func (c *Catalog) Validate() error {
	var errs []error
	for _, id := range c.order {
		u := c.units[id]
		if u.ID == "" {
			errs = append(errs, errors.New("unit with empty id"))
			continue
		}
		if u.SquadSize < 1 {
			errs = append(errs, fmt.Errorf("unit %q: squad_size must be at least 1", u.ID))
		}
		if u.Width < 1 || u.Height < 1 {
			errs = append(errs, fmt.Errorf("unit %q: footprint must be positive", u.ID))
		}
		if u.HP < 1 {
			errs = append(errs, fmt.Errorf("unit %q: hp must be positive", u.ID))
		}
		if len(u.Weapons) == 0 {
			errs = append(errs, fmt.Errorf("unit %q: no weapons", u.ID))
		}
		for _, wid := range u.Weapons {
			w, ok := c.weapons[wid]
			if !ok {
				errs = append(errs, fmt.Errorf("unit %q: %w %q", u.ID, ErrUnknownWeapon, wid))
				continue
			}
			if w.AttackSpeed <= 0 && u.AttackSpeed <= 0 {
				errs = append(errs, fmt.Errorf("unit %q: weapon %q has no attack speed", u.ID, wid))
			}
		}
	}
	for _, w := range c.weapons {
		if !w.Kind.Valid() {
			errs = append(errs, fmt.Errorf("weapon %q: unknown kind %q", w.ID, w.Kind))
		}
	}
	return errors.Join(errs...)
}

// Unit returns the resolved handle of a unit type. Handles are shared and must
// not be modified.
func (c *Catalog) Unit(id string) (UnitRef, error) {
	ref, ok := c.refs[id]
	if !ok {
		return UnitRef{}, fmt.Errorf("%w: %q", ErrUnknownUnit, id)
	}
	return ref, nil
}

// Units returns all unit definitions in declaration order.
func (c *Catalog) Units() []Unit {
	out := make([]Unit, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.units[id])
	}
	return out
}

// StartingUnlocks lists the unit ids of a faction that cost nothing to unlock.
func (c *Catalog) StartingUnlocks(faction string) []string {
	var ids []string
	for _, id := range c.order {
		u := c.units[id]
		if u.Faction == faction && u.UnlockCost == 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Factions lists every faction that owns at least one unit.
func (c *Catalog) Factions() []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range c.order {
		f := c.units[id].Faction
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
