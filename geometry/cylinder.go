package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/fcl/spatialmath"
)

// Cylinder is a solid circular cylinder centered on the local origin with its axis along Z.
type Cylinder struct {
	radius float64
	length float64
	label  string
}

// NewCylinder instantiates a new cylinder. Both dimensions must be positive.
func NewCylinder(radius, length float64, label string) (*Cylinder, error) {
	if radius <= 0 || length <= 0 || !validFloats(radius, length) {
		return nil, newBadGeometryDimensionsError(KindCylinder)
	}
	return &Cylinder{radius: radius, length: length, label: label}, nil
}

func (c *Cylinder) isShape() {}

// Kind returns KindCylinder.
func (c *Cylinder) Kind() Kind { return KindCylinder }

// Radius returns the cylinder radius.
func (c *Cylinder) Radius() float64 { return c.radius }

// Length returns the height of the cylinder.
func (c *Cylinder) Length() float64 { return c.length }

// Label returns the label of this cylinder.
func (c *Cylinder) Label() string { return c.label }

// LocalAABB returns the box around the cylinder.
func (c *Cylinder) LocalAABB() spatialmath.AABB {
	return spatialmath.NewAABBFromCenter(r3.Vector{}, r3.Vector{X: c.radius, Y: c.radius, Z: c.length / 2})
}

// BoundingRadius returns the distance from the center to the rim of either cap.
func (c *Cylinder) BoundingRadius() float64 {
	return math.Hypot(c.radius, c.length/2)
}

// Volume returns pi r^2 h.
func (c *Cylinder) Volume() float64 {
	return math.Pi * c.radius * c.radius * c.length
}

// Support returns the point farthest along dir.
func (c *Cylinder) Support(dir r3.Vector) r3.Vector {
	out := rimPoint(dir, c.radius)
	out.Z = signOf(dir.Z) * c.length / 2
	return out
}

// String returns a human readable string that represents the cylinder.
func (c *Cylinder) String() string {
	return fmt.Sprintf("Type: Cylinder | Radius: %.3f | Length: %.3f", c.radius, c.length)
}

// Cone is a solid circular cone along the local Z axis. Its base disc sits at z = -length/2 and
// its apex at z = +length/2.
type Cone struct {
	radius float64
	length float64
	label  string
}

// NewCone instantiates a new cone. Both dimensions must be positive.
func NewCone(radius, length float64, label string) (*Cone, error) {
	if radius <= 0 || length <= 0 || !validFloats(radius, length) {
		return nil, newBadGeometryDimensionsError(KindCone)
	}
	return &Cone{radius: radius, length: length, label: label}, nil
}

func (c *Cone) isShape() {}

// Kind returns KindCone.
func (c *Cone) Kind() Kind { return KindCone }

// Radius returns the radius of the base.
func (c *Cone) Radius() float64 { return c.radius }

// Length returns the distance from base to apex.
func (c *Cone) Length() float64 { return c.length }

// Label returns the label of this cone.
func (c *Cone) Label() string { return c.label }

// LocalAABB returns the box around the cone.
func (c *Cone) LocalAABB() spatialmath.AABB {
	return spatialmath.NewAABBFromCenter(r3.Vector{}, r3.Vector{X: c.radius, Y: c.radius, Z: c.length / 2})
}

// BoundingRadius returns the distance from the center to the base rim, which is never closer than
// the apex.
func (c *Cone) BoundingRadius() float64 {
	return math.Hypot(c.radius, c.length/2)
}

// Volume returns pi r^2 h / 3.
func (c *Cone) Volume() float64 {
	return math.Pi * c.radius * c.radius * c.length / 3
}

// Apex returns the tip of the cone.
func (c *Cone) Apex() r3.Vector {
	return r3.Vector{Z: c.length / 2}
}

// Support returns the apex or a point on the base rim, whichever lies farther along dir.
func (c *Cone) Support(dir r3.Vector) r3.Vector {
	apex := c.Apex()
	rim := rimPoint(dir, c.radius)
	rim.Z = -c.length / 2
	if apex.Dot(dir) >= rim.Dot(dir) {
		return apex
	}
	return rim
}

// String returns a human readable string that represents the cone.
func (c *Cone) String() string {
	return fmt.Sprintf("Type: Cone | Radius: %.3f | Length: %.3f", c.radius, c.length)
}

// rimPoint returns the point of a circle of radius r in the XY plane farthest along dir. Directions
// parallel to Z pick the center.
func rimPoint(dir r3.Vector, r float64) r3.Vector {
	xy := math.Hypot(dir.X, dir.Y)
	if xy < 1e-12 {
		return r3.Vector{}
	}
	return r3.Vector{X: dir.X * r / xy, Y: dir.Y * r / xy}
}
