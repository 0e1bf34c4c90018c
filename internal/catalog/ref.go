package catalog

import (
	"time"

	"github.com/squadfront/server/pkg/core"
)

// UnitRef is a validated handle to a unit with its weapons pre-resolved.
type UnitRef struct {
	Unit    *Unit
	Weapons []WeaponRef
}

func (r UnitRef) Valid() bool { return r.Unit != nil }

// WeaponRef is a weapon with unit fallbacks applied.
type WeaponRef struct {
	Weapon      *Weapon
	Damage      int
	AttackSpeed float64
}

// Cooldown is the time between shots, 1000/attackSpeed milliseconds.
func (w WeaponRef) Cooldown() time.Duration {
	if w.AttackSpeed <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / w.AttackSpeed)
}

func (w WeaponRef) Kind() core.ProjectileKind { return w.Weapon.Kind }

func resolveWeapon(u *Unit, w *Weapon) WeaponRef {
	ref := WeaponRef{Weapon: w, Damage: w.Damage, AttackSpeed: w.AttackSpeed}
	if ref.Damage == 0 {
		ref.Damage = u.Damage
	}
	if ref.AttackSpeed == 0 {
		ref.AttackSpeed = u.AttackSpeed
	}
	return ref
}
