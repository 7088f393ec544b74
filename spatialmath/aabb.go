package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// AABB is an axis-aligned bounding box. Components of Min and Max may be infinite for shapes that
// are unbounded along some axis.
type AABB struct {
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// EmptyAABB returns a box that contains nothing and is the identity for Union.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// InfiniteAABB returns a box covering all of space.
func InfiniteAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: r3.Vector{X: -inf, Y: -inf, Z: -inf},
		Max: r3.Vector{X: inf, Y: inf, Z: inf},
	}
}

// NewAABBFromPoints returns the smallest box containing every point.
func NewAABBFromPoints(pts ...r3.Vector) AABB {
	box := EmptyAABB()
	for _, p := range pts {
		box = box.ExtendPoint(p)
	}
	return box
}

// NewAABBFromCenter returns the box centered at c with the given half extents.
func NewAABBFromCenter(c, halfSize r3.Vector) AABB {
	return AABB{Min: c.Sub(halfSize), Max: c.Add(halfSize)}
}

func (b AABB) String() string {
	return fmt.Sprintf("AABB{min: %v, max: %v}", b.Min, b.Max)
}

// IsEmpty returns true when Min exceeds Max on any axis.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// IsBounded returns true if every bound is finite.
func (b AABB) IsBounded() bool {
	for i := 0; i < 3; i++ {
		if math.IsInf(Component(b.Min, i), 0) || math.IsInf(Component(b.Max, i), 0) {
			return false
		}
	}
	return true
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: r3.Vector{X: math.Min(b.Min.X, o.Min.X), Y: math.Min(b.Min.Y, o.Min.Y), Z: math.Min(b.Min.Z, o.Min.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, o.Max.X), Y: math.Max(b.Max.Y, o.Max.Y), Z: math.Max(b.Max.Z, o.Max.Z)},
	}
}

// ExtendPoint returns the smallest box containing b and p.
func (b AABB) ExtendPoint(p r3.Vector) AABB {
	return b.Union(AABB{Min: p, Max: p})
}

// Overlaps returns true if the boxes intersect. Touching faces count as overlapping.
func (b AABB) Overlaps(o AABB) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// Contains returns true if o lies entirely inside b.
func (b AABB) Contains(o AABB) bool {
	return b.Min.X <= o.Min.X && b.Min.Y <= o.Min.Y && b.Min.Z <= o.Min.Z &&
		o.Max.X <= b.Max.X && o.Max.Y <= b.Max.Y && o.Max.Z <= b.Max.Z
}

// ContainsPoint returns true if p lies inside or on the boundary of b.
func (b AABB) ContainsPoint(p r3.Vector) bool {
	return b.Contains(AABB{Min: p, Max: p})
}

// Expand grows the box by margin on every side.
func (b AABB) Expand(margin float64) AABB {
	m := r3.Vector{X: margin, Y: margin, Z: margin}
	return AABB{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}

// Center returns the midpoint of the box. Unbounded axes report 0.
func (b AABB) Center() r3.Vector {
	var c r3.Vector
	for i := 0; i < 3; i++ {
		lo, hi := Component(b.Min, i), Component(b.Max, i)
		v := (lo + hi) / 2
		switch {
		case math.IsInf(lo, 0) && math.IsInf(hi, 0):
			v = 0
		case math.IsInf(lo, 0):
			v = hi
		case math.IsInf(hi, 0):
			v = lo
		}
		c = SetComponent(c, i, v)
	}
	return c
}

// HalfSize returns half the extent of the box along each axis.
func (b AABB) HalfSize() r3.Vector {
	return b.Extent().Mul(0.5)
}

// Extent returns the size of the box along each axis.
func (b AABB) Extent() r3.Vector {
	if b.IsEmpty() {
		return r3.Vector{}
	}
	return b.Max.Sub(b.Min)
}

// SurfaceArea returns the area of the box's faces. Empty boxes have zero area.
func (b AABB) SurfaceArea() float64 {
	e := b.Extent()
	return 2 * (e.X*e.Y + e.Y*e.Z + e.Z*e.X)
}

// Volume returns the enclosed volume.
func (b AABB) Volume() float64 {
	e := b.Extent()
	return e.X * e.Y * e.Z
}

// LongestAxis returns the index of the widest axis.
func (b AABB) LongestAxis() int {
	e := b.Extent()
	switch {
	case e.X >= e.Y && e.X >= e.Z:
		return 0
	case e.Y >= e.Z:
		return 1
	default:
		return 2
	}
}

// Corners returns the 8 vertices of a bounded box.
func (b AABB) Corners() [8]r3.Vector {
	var out [8]r3.Vector
	for i := 0; i < 8; i++ {
		out[i] = r3.Vector{
			X: pick(i&1 != 0, b.Max.X, b.Min.X),
			Y: pick(i&2 != 0, b.Max.Y, b.Min.Y),
			Z: pick(i&4 != 0, b.Max.Z, b.Min.Z),
		}
	}
	return out
}

// Transform returns the axis-aligned box enclosing b after it is moved by p. Infinite bounds stay
// infinite only along the world axes they actually reach.
func (b AABB) Transform(p Pose) AABB {
	if b.IsEmpty() {
		return b
	}
	rm := p.Orientation().RotationMatrix()
	t := p.Point()
	var out AABB
	for i := 0; i < 3; i++ {
		lo, hi := Component(t, i), Component(t, i)
		for j := 0; j < 3; j++ {
			r := rm.At(i, j)
			if math.Abs(r) < 1e-12 {
				continue
			}
			e, f := r*Component(b.Min, j), r*Component(b.Max, j)
			lo += math.Min(e, f)
			hi += math.Max(e, f)
		}
		out.Min = SetComponent(out.Min, i, lo)
		out.Max = SetComponent(out.Max, i, hi)
	}
	return out
}

// Component returns v's i-th coordinate.
func Component(v r3.Vector, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// SetComponent returns a copy of v with its i-th coordinate set to val.
func SetComponent(v r3.Vector, i int, val float64) r3.Vector {
	switch i {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	default:
		v.Z = val
	}
	return v
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
