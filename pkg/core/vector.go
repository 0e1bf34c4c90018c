// pkg/core/vector.go
package core

import "math"

// Vec2 is a continuous position on the battlefield plane.
// X runs across the grid, Z runs from the host side to the far side.
type Vec2 struct {
	X float64
	Z float64
}

// Position3D is a plane position with height (Y).
type Position3D struct {
	X float64
	Y float64
	Z float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Z: v.Z + o.Z} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Z: v.Z - o.Z} }

func (v Vec2) Scale(f float64) Vec2 { return Vec2{X: v.X * f, Z: v.Z * f} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Z) }

// DistSq returns the squared distance between v and o.
func (v Vec2) DistSq(o Vec2) float64 {
	dx, dz := v.X-o.X, v.Z-o.Z
	return dx*dx + dz*dz
}

func (v Vec2) Dist(o Vec2) float64 { return math.Sqrt(v.DistSq(o)) }

// Lerp interpolates from v towards o by t in [0,1].
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{X: v.X + (o.X-v.X)*t, Z: v.Z + (o.Z-v.Z)*t}
}

// At lifts v to a 3D position with the given height.
func (v Vec2) At(height float64) Position3D {
	return Position3D{X: v.X, Y: height, Z: v.Z}
}

// Plane drops the height component.
func (p Position3D) Plane() Vec2 { return Vec2{X: p.X, Z: p.Z} }
