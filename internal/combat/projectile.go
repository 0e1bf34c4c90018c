package combat

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/squadfront/server/internal/catalog"
	"github.com/squadfront/server/pkg/core"
)

// fire creates a projectile aimed at the target's current position. Everything the
// flight needs is captured from the weapon now.
func (s *Simulator) fire(a actor, w catalog.WeaponRef, target *core.FigureState, now time.Time) *core.ProjectileState {
	p := &core.ProjectileState{
		ID:                   uuid.NewString(),
		OwnerID:              a.fig.OwnerID,
		UnitTypeID:           a.ref.Unit.ID,
		WeaponID:             w.Weapon.ID,
		SourceUnitInstanceID: a.unit.InstanceID,
		Damage:               w.Damage,
		Kind:                 w.Kind(),
		Speed:                w.Weapon.Speed,
		Origin:               a.fig.Position,
		Target:               target.Position,
		Current:              a.fig.Position.At(0),
		CreatedAt:            now,
	}
	switch p.Kind {
	case core.ProjectileBallistic:
		p.SplashRadius = w.Weapon.SplashRadius
		p.MaxArcHeight = w.Weapon.MaxArcHeight
		p.TotalFlightTime = s.flightTime(p.Origin.Dist(p.Target), p.Speed)
	default:
		p.TargetFigureID = target.ID
	}
	return p
}

// flightTime is distance/speed, floored at the minimum flight time.
func (s *Simulator) flightTime(dist, speed float64) time.Duration {
	if speed <= 0 {
		return s.minFlightTime
	}
	return max(time.Duration(dist/speed*float64(time.Second)), s.minFlightTime)
}

// advanceProjectiles moves every projectile by the time elapsed since it was fired and
// resolves the ones that arrived. Resolved projectiles are removed.
func (s *Simulator) advanceProjectiles(sess *core.GameSession, w world, now time.Time, res *StepResult) {
	kept := sess.ActiveProjectiles[:0]
	for _, p := range sess.ActiveProjectiles {
		elapsed := now.Sub(p.CreatedAt)
		var done bool
		switch p.Kind {
		case core.ProjectileBallistic:
			done = s.advanceBallistic(sess, w, p, elapsed, res)
		default:
			done = s.advanceTargeted(sess, w, p, elapsed, res)
		}
		if done {
			res.Resolved++
			continue
		}
		kept = append(kept, p)
	}
	clear(sess.ActiveProjectiles[len(kept):])
	sess.ActiveProjectiles = kept
}

// advanceTargeted flies straight at the fire-time target position. On arrival the
// original target takes the damage if it is still alive, otherwise the shot is wasted.
func (s *Simulator) advanceTargeted(sess *core.GameSession, w world, p *core.ProjectileState, elapsed time.Duration, res *StepResult) bool {
	dist := p.Origin.Dist(p.Target)
	var arrived bool
	if p.Speed <= 0 {
		arrived = elapsed > 0
	} else {
		travelled := p.Speed * elapsed.Seconds()
		arrived = travelled >= dist
		if !arrived {
			p.Current = p.Origin.Lerp(p.Target, travelled/dist).At(0)
		}
	}
	if !arrived {
		return false
	}

	p.Current = p.Target.At(0)
	victim := w.byID[p.TargetFigureID]
	if victim == nil || !victim.Alive() {
		res.Wasted++
		return true
	}
	s.applyDamage(sess, p, victim, res)
	return true
}

// advanceBallistic follows a parabolic arc over the precomputed flight time and splashes
// every living figure within the radius of the fire-time target point on landing.
func (s *Simulator) advanceBallistic(sess *core.GameSession, w world, p *core.ProjectileState, elapsed time.Duration, res *StepResult) bool {
	progress := 1.0
	if p.TotalFlightTime > 0 {
		progress = math.Min(float64(elapsed)/float64(p.TotalFlightTime), 1)
	}
	height := 4 * p.MaxArcHeight * progress * (1 - progress)
	p.Current = p.Origin.Lerp(p.Target, progress).At(height)
	if progress < 1 {
		return false
	}

	r2 := p.SplashRadius * p.SplashRadius
	for _, f := range w.figures {
		if !f.Alive() || f.Position.DistSq(p.Target) > r2 {
			continue
		}
		s.applyDamage(sess, p, f, res)
	}
	return true
}
