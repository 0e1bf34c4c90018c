package geo

import (
	"errors"
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/squadfront/server/pkg/core"
)

// BATTLEFIELD GEOMETRY
// Cell (i, j) covers [i, i+1) x [j, j+1) of the continuous plane. Footprints and zones are
// envelopes over the integer indices of the cells they occupy, so two footprints intersect
// exactly when they share a cell and edge-adjacent squads do not.

// Grid is the placement grid in cells.
type Grid struct {
	Width     int
	Height    int
	ZoneDepth int
}

// Bounds is the envelope of every cell of the grid.
func (g Grid) Bounds() geom.Envelope {
	return CellRange(0, 0, g.Width-1, g.Height-1)
}

// Zone returns the placement band of a player. The host owns the near band,
// the other player the far band.
func (g Grid) Zone(host bool) geom.Envelope {
	if host {
		return CellRange(0, 0, g.Width-1, g.ZoneDepth-1)
	}
	return CellRange(0, g.Height-g.ZoneDepth, g.Width-1, g.Height-1)
}

// Clamp keeps a continuous position inside the grid rectangle.
func (g Grid) Clamp(v core.Vec2) core.Vec2 {
	return core.Vec2{
		X: math.Max(0, math.Min(float64(g.Width), v.X)),
		Z: math.Max(0, math.Min(float64(g.Height), v.Z)),
	}
}

// CellRange builds the envelope spanning cells (minX,minZ) to (maxX,maxZ) inclusive.
// Integer bounds are always finite, so construction cannot fail.
func CellRange(minX, minZ, maxX, maxZ int) geom.Envelope {
	env, err := geom.NewEnvelope([]geom.XY{
		{X: float64(minX), Y: float64(minZ)},
		{X: float64(maxX), Y: float64(maxZ)},
	})
	if err != nil {
		panic(err)
	}
	return env
}

// FirstCell maps a footprint center and size to its lowest occupied cell index on one axis.
func FirstCell(center float64, size int) int {
	return int(math.Round(center - float64(size)/2))
}

// Footprint returns the cells covered by a w x h footprint centered at c.
// A center that is NaN or infinite has no cells and yields ErrNonFinite.
func Footprint(c core.Vec2, w, h int) (geom.Envelope, error) {
	if err := checkFinite(c); err != nil {
		return geom.Envelope{}, err
	}
	x0 := FirstCell(c.X, w)
	z0 := FirstCell(c.Z, h)
	return CellRange(x0, z0, x0+w-1, z0+h-1), nil
}

// Point converts a plane position to a 2D point for storage.
func Point(v core.Vec2) (geom.Point, error) {
	pt, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: v.X, Y: v.Z},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("%w: %v", ErrNonFinite, err)
	}
	return pt, nil
}

// ErrNonFinite reports a position with a NaN or infinite coordinate.
var ErrNonFinite = errors.New("position is not finite")

func checkFinite(v core.Vec2) error {
	for _, f := range [2]float64{v.X, v.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: (%v, %v)", ErrNonFinite, v.X, v.Z)
		}
	}
	return nil
}
