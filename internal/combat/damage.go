package combat

import "github.com/squadfront/server/pkg/core"

// applyDamage hits victim with the projectile's damage and credits the effective
// damage (capped at the victim's remaining HP) to the squad that fired it. When that
// squad is gone the hit still lands and the attribution is dropped.
func (s *Simulator) applyDamage(sess *core.GameSession, p *core.ProjectileState, victim *core.FigureState, res *StepResult) {
	before := victim.HP
	effective := min(p.Damage, before)
	victim.HP = max(before-p.Damage, 0)
	killed := victim.HP == 0

	res.Hits++
	if killed {
		res.Kills++
	}

	source := sess.FindUnit(p.SourceUnitInstanceID)
	if source == nil {
		res.AttributionMisses++
		s.log.Debug("Dropped damage attribution, source squad is gone",
			"session", sess.ID,
			"projectile", p.ID,
			"source", p.SourceUnitInstanceID,
			"damage", effective)
		return
	}
	source.TotalDamageDealt += effective
	source.LastRoundDamageDealt += effective
	if killed {
		source.TotalKills++
		source.LastRoundKills++
	}
}
