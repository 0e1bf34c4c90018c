package combat

import (
	"time"

	"github.com/squadfront/server/pkg/core"
)

// act is the first pass: every figure keeps or acquires a target, then either fires
// the weapons that are off cooldown or computes its intended move. Positions are not
// written here so all figures decide against the same snapshot.
func (s *Simulator) act(sess *core.GameSession, w world, now time.Time, dt time.Duration, res *StepResult) []core.Vec2 {
	intended := make([]core.Vec2, len(w.actors))
	for i, a := range w.actors {
		f := a.fig
		intended[i] = f.Position

		target := w.byID[f.TargetFigureID]
		if target == nil || !target.Alive() {
			target = nearestEnemy(f, w.figures)
			f.TargetFigureID = ""
			if target != nil {
				f.TargetFigureID = target.ID
			}
		}
		if target == nil {
			f.Behavior = core.BehaviorIdle
			continue
		}

		if f.Position.DistSq(target.Position) <= a.ref.Unit.Range*a.ref.Unit.Range {
			f.Behavior = core.BehaviorAttacking
			if f.WeaponCooldowns == nil {
				f.WeaponCooldowns = make(map[string]time.Time, len(a.ref.Weapons))
			}
			for _, wpn := range a.ref.Weapons {
				if now.Before(f.WeaponCooldowns[wpn.Weapon.ID]) {
					continue
				}
				sess.ActiveProjectiles = append(sess.ActiveProjectiles, s.fire(a, wpn, target, now))
				f.WeaponCooldowns[wpn.Weapon.ID] = now.Add(wpn.Cooldown())
				res.Fired++
			}
			continue
		}

		f.Behavior = core.BehaviorMoving
		intended[i] = stepToward(f.Position, target.Position, a.ref.Unit.Speed*dt.Seconds())
	}
	return intended
}

// nearestEnemy returns the closest living figure of another owner. Ties keep the
// first figure in roster order.
func nearestEnemy(f *core.FigureState, figures []*core.FigureState) *core.FigureState {
	var best *core.FigureState
	bestDist := 0.0
	for _, other := range figures {
		if other.OwnerID == f.OwnerID || !other.Alive() {
			continue
		}
		d := f.Position.DistSq(other.Position)
		if best == nil || d < bestDist {
			best, bestDist = other, d
		}
	}
	return best
}
