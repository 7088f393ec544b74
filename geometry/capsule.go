package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/fcl/spatialmath"
)

// Capsule is the set of points within radius of a segment on the local Z axis.
//
// ....___________________
// .../                   \
// .x|  |-------O-------|  |x
// ...\___________________/
//
// Length is the distance between the x's, or internal segment length + 2*radius.
type Capsule struct {
	radius float64
	length float64
	label  string
}

// NewCapsule instantiates a new capsule. A capsule whose length is exactly twice its radius is a
// sphere and is still represented as a capsule with a zero-length segment.
func NewCapsule(radius, length float64, label string) (*Capsule, error) {
	if radius <= 0 || length <= 0 || !validFloats(radius, length) {
		return nil, newBadGeometryDimensionsError(KindCapsule)
	}
	if length < radius*2 {
		return nil, newBadCapsuleLengthError(length, radius)
	}
	return &Capsule{radius: radius, length: length, label: label}, nil
}

func (c *Capsule) isShape() {}

// Kind returns KindCapsule.
func (c *Capsule) Kind() Kind { return KindCapsule }

// Radius returns the capsule radius.
func (c *Capsule) Radius() float64 { return c.radius }

// Length returns the tip to tip length.
func (c *Capsule) Length() float64 { return c.length }

// Label returns the label of this capsule.
func (c *Capsule) Label() string { return c.label }

// Segment returns the endpoints of the core segment in the capsule frame.
func (c *Capsule) Segment() (r3.Vector, r3.Vector) {
	h := c.length/2 - c.radius
	return r3.Vector{Z: -h}, r3.Vector{Z: h}
}

// LocalAABB returns the box around the capsule.
func (c *Capsule) LocalAABB() spatialmath.AABB {
	return spatialmath.NewAABBFromCenter(r3.Vector{}, r3.Vector{X: c.radius, Y: c.radius, Z: c.length / 2})
}

// BoundingRadius returns half the length.
func (c *Capsule) BoundingRadius() float64 { return c.length / 2 }

// Volume returns the volume of the cylindrical core plus one full sphere.
func (c *Capsule) Volume() float64 {
	r := c.radius
	return math.Pi*r*r*(c.length-2*r) + 4./3.*math.Pi*r*r*r
}

// Support returns the point farthest along dir.
func (c *Capsule) Support(dir r3.Vector) r3.Vector {
	a, b := c.Segment()
	end := b
	if dir.Z < 0 {
		end = a
	}
	n := dir.Norm()
	if n < 1e-12 {
		return end
	}
	return end.Add(dir.Mul(c.radius / n))
}

// String returns a human readable string that represents the capsule.
func (c *Capsule) String() string {
	return fmt.Sprintf("Type: Capsule | Radius: %.3f | Length: %.3f", c.radius, c.length)
}
