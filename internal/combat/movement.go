package combat

import "github.com/squadfront/server/pkg/core"

// stepToward moves from towards to by at most step, never past to.
func stepToward(from, to core.Vec2, step float64) core.Vec2 {
	delta := to.Sub(from)
	dist := delta.Len()
	if dist == 0 || step <= 0 {
		return from
	}
	if step >= dist {
		return to
	}
	return from.Add(delta.Scale(step / dist))
}

// separate is the second pass. Every pair of living figures whose intended positions
// are closer than their summed collision radii is pushed apart by half the overlap
// each. Final positions are clamped to the grid.
func (s *Simulator) separate(actors []actor, intended []core.Vec2) {
	pushes := make([]core.Vec2, len(actors))
	for i := range actors {
		if !actors[i].fig.Alive() {
			continue
		}
		ri := actors[i].ref.Unit.CollisionRadius
		for j := i + 1; j < len(actors); j++ {
			if !actors[j].fig.Alive() {
				continue
			}
			minDist := ri + actors[j].ref.Unit.CollisionRadius
			delta := intended[j].Sub(intended[i])
			dist := delta.Len()
			if dist >= minDist {
				continue
			}
			dir := core.Vec2{X: 1}
			if dist > 0 {
				dir = delta.Scale(1 / dist)
			}
			half := dir.Scale((minDist - dist) / 2)
			pushes[i] = pushes[i].Sub(half)
			pushes[j] = pushes[j].Add(half)
		}
	}
	for i, a := range actors {
		if !a.fig.Alive() {
			continue
		}
		pos := intended[i].Add(pushes[i])
		if s.grid.Width > 0 && s.grid.Height > 0 {
			pos = s.grid.Clamp(pos)
		}
		a.fig.Position = pos
	}
}
