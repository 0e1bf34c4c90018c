package placement

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/squadfront/server/internal/catalog"
	"github.com/squadfront/server/pkg/core"
)

// Layout returns the figure grid for a unit at the given rotation. The declared
// formation is used when it can hold the whole squad, otherwise a near-square grid.
func Layout(u *catalog.Unit, rot core.Rotation) (cols, rows int) {
	n := max(u.SquadSize, 1)
	cols, rows = u.Formation.Columns, u.Formation.Rows
	if cols < 1 || rows < 1 || u.Formation.Capacity() < n {
		cols = int(math.Ceil(math.Sqrt(float64(n))))
		rows = int(math.Ceil(float64(n) / float64(cols)))
	}
	if rot == core.Rotation90 {
		cols, rows = rows, cols
	}
	return cols, rows
}

// NewSquad builds a squad with a fresh instance id.
func NewSquad(ref catalog.UnitRef, ownerID string, center core.Vec2, rot core.Rotation, jitter float64, rng *rand.Rand) *core.PlacedUnit {
	instanceID := uuid.NewString()
	return &core.PlacedUnit{
		InstanceID:      instanceID,
		UnitTypeID:      ref.Unit.ID,
		OwnerID:         ownerID,
		InitialPosition: center,
		Rotation:        rot,
		Figures:         GenerateFigures(ref, instanceID, ownerID, center, rot, jitter, rng),
	}
}

// GenerateFigures lays out a full-strength, idle roster for a squad. Each figure sits
// at the center of its formation slot plus a uniform jitter of at most jitter per axis.
func GenerateFigures(ref catalog.UnitRef, instanceID, ownerID string, center core.Vec2, rot core.Rotation, jitter float64, rng *rand.Rand) []*core.FigureState {
	u := ref.Unit
	cols, rows := Layout(u, rot)
	w, h := rot.Footprint(u.Width, u.Height)
	slotW := float64(w) / float64(cols)
	slotH := float64(h) / float64(rows)
	originX := center.X - float64(w)/2
	originZ := center.Z - float64(h)/2

	figures := make([]*core.FigureState, 0, u.SquadSize)
	for i := 0; i < u.SquadSize; i++ {
		col, row := i%cols, i/cols
		pos := core.Vec2{
			X: originX + (float64(col)+0.5)*slotW,
			Z: originZ + (float64(row)+0.5)*slotH,
		}
		if rng != nil && jitter > 0 {
			pos.X += (rng.Float64()*2 - 1) * jitter
			pos.Z += (rng.Float64()*2 - 1) * jitter
		}
		figures = append(figures, &core.FigureState{
			ID:              uuid.NewString(),
			UnitInstanceID:  instanceID,
			OwnerID:         ownerID,
			UnitTypeID:      u.ID,
			Position:        pos,
			HP:              u.HP,
			Behavior:        core.BehaviorIdle,
			WeaponCooldowns: make(map[string]time.Time, len(ref.Weapons)),
		})
	}
	return figures
}
