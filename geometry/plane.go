package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/fcl/spatialmath"
)

// Plane is the infinite two-sided surface of points x with Normal·x = Offset.
type Plane struct {
	normal r3.Vector
	offset float64
	label  string
}

// NewPlane instantiates a plane. The normal is normalized and the offset scaled to match.
func NewPlane(normal r3.Vector, offset float64, label string) (*Plane, error) {
	n, d, err := normalizePlane(KindPlane, normal, offset)
	if err != nil {
		return nil, err
	}
	return &Plane{normal: n, offset: d, label: label}, nil
}

func (p *Plane) isShape() {}

// Kind returns KindPlane.
func (p *Plane) Kind() Kind { return KindPlane }

// Normal returns the unit normal.
func (p *Plane) Normal() r3.Vector { return p.normal }

// Offset returns the signed distance of the plane from the local origin along the normal.
func (p *Plane) Offset() float64 { return p.offset }

// Label returns the label of this plane.
func (p *Plane) Label() string { return p.label }

// SignedDistance returns Normal·x - Offset.
func (p *Plane) SignedDistance(x r3.Vector) float64 { return p.normal.Dot(x) - p.offset }

// LocalAABB is infinite except along an axis-aligned normal, where it is flat.
func (p *Plane) LocalAABB() spatialmath.AABB {
	box := spatialmath.InfiniteAABB()
	if axis, sign, ok := alignedAxis(p.normal); ok {
		box.Min = spatialmath.SetComponent(box.Min, axis, sign*p.offset)
		box.Max = spatialmath.SetComponent(box.Max, axis, sign*p.offset)
	}
	return box
}

// BoundingRadius returns +Inf.
func (p *Plane) BoundingRadius() float64 { return math.Inf(1) }

// Volume returns +Inf, matching the unbounded local AABB.
func (p *Plane) Volume() float64 { return math.Inf(1) }

// String returns a human readable string that represents the plane.
func (p *Plane) String() string {
	return fmt.Sprintf("Type: Plane | Normal: X:%.3f, Y:%.3f, Z:%.3f | Offset: %.3f",
		p.normal.X, p.normal.Y, p.normal.Z, p.offset)
}

// Halfspace is the solid of points x with Normal·x <= Offset. The normal points out of the solid.
type Halfspace struct {
	normal r3.Vector
	offset float64
	label  string
}

// NewHalfspace instantiates a halfspace. The normal is normalized and the offset scaled to match.
func NewHalfspace(normal r3.Vector, offset float64, label string) (*Halfspace, error) {
	n, d, err := normalizePlane(KindHalfspace, normal, offset)
	if err != nil {
		return nil, err
	}
	return &Halfspace{normal: n, offset: d, label: label}, nil
}

func (h *Halfspace) isShape() {}

// Kind returns KindHalfspace.
func (h *Halfspace) Kind() Kind { return KindHalfspace }

// Normal returns the unit outward normal.
func (h *Halfspace) Normal() r3.Vector { return h.normal }

// Offset returns the signed distance of the boundary from the local origin along the normal.
func (h *Halfspace) Offset() float64 { return h.offset }

// Label returns the label of this halfspace.
func (h *Halfspace) Label() string { return h.label }

// SignedDistance returns Normal·x - Offset, negative inside the solid.
func (h *Halfspace) SignedDistance(x r3.Vector) float64 { return h.normal.Dot(x) - h.offset }

// LocalAABB is infinite except along an axis-aligned normal, where the boundary caps one side.
func (h *Halfspace) LocalAABB() spatialmath.AABB {
	box := spatialmath.InfiniteAABB()
	if axis, sign, ok := alignedAxis(h.normal); ok {
		if sign > 0 {
			box.Max = spatialmath.SetComponent(box.Max, axis, h.offset)
		} else {
			box.Min = spatialmath.SetComponent(box.Min, axis, -h.offset)
		}
	}
	return box
}

// BoundingRadius returns +Inf.
func (h *Halfspace) BoundingRadius() float64 { return math.Inf(1) }

// Volume returns +Inf.
func (h *Halfspace) Volume() float64 { return math.Inf(1) }

// String returns a human readable string that represents the halfspace.
func (h *Halfspace) String() string {
	return fmt.Sprintf("Type: Halfspace | Normal: X:%.3f, Y:%.3f, Z:%.3f | Offset: %.3f",
		h.normal.X, h.normal.Y, h.normal.Z, h.offset)
}

func normalizePlane(k Kind, normal r3.Vector, offset float64) (r3.Vector, float64, error) {
	n := normal.Norm()
	if n < 1e-12 || !validVector(normal) || !validFloats(offset) {
		return r3.Vector{}, 0, newBadGeometryDimensionsError(k)
	}
	return normal.Mul(1 / n), offset / n, nil
}

// alignedAxis reports which coordinate axis a unit normal lies along, and in which direction.
func alignedAxis(n r3.Vector) (int, float64, bool) {
	const eps = 1e-12
	for i := 0; i < 3; i++ {
		c := spatialmath.Component(n, i)
		if math.Abs(math.Abs(c)-1) < eps {
			return i, signOf(c), true
		}
	}
	return 0, 0, false
}
