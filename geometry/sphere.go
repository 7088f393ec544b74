package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/fcl/spatialmath"
)

// Sphere is a ball centered on its local origin.
type Sphere struct {
	radius float64
	label  string
}

// NewSphere instantiates a new sphere. The radius must be positive.
func NewSphere(radius float64, label string) (*Sphere, error) {
	if radius <= 0 || !validFloats(radius) {
		return nil, newBadGeometryDimensionsError(KindSphere)
	}
	return &Sphere{radius: radius, label: label}, nil
}

func (s *Sphere) isShape() {}

// Kind returns KindSphere.
func (s *Sphere) Kind() Kind { return KindSphere }

// Radius returns the radius of the sphere.
func (s *Sphere) Radius() float64 { return s.radius }

// Label returns the label of this sphere.
func (s *Sphere) Label() string { return s.label }

// LocalAABB returns the cube circumscribing the sphere.
func (s *Sphere) LocalAABB() spatialmath.AABB {
	return spatialmath.NewAABBFromCenter(r3.Vector{}, r3.Vector{X: s.radius, Y: s.radius, Z: s.radius})
}

// BoundingRadius returns the radius.
func (s *Sphere) BoundingRadius() float64 { return s.radius }

// Volume returns 4/3 pi r^3.
func (s *Sphere) Volume() float64 {
	return 4. / 3. * math.Pi * s.radius * s.radius * s.radius
}

// Support returns the point of the sphere farthest along dir.
func (s *Sphere) Support(dir r3.Vector) r3.Vector {
	n := dir.Norm()
	if n < 1e-12 {
		return r3.Vector{X: s.radius}
	}
	return dir.Mul(s.radius / n)
}

// String returns a human readable string that represents the sphere.
func (s *Sphere) String() string {
	return fmt.Sprintf("Type: Sphere | Radius: %.3f", s.radius)
}
