// Package geometry defines the immutable shapes the collision engine operates on. Shapes are
// described in their own local frame; where a shape sits in the world is supplied separately at
// query time, so a single shape value may be shared between any number of objects.
package geometry

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/fcl/spatialmath"
)

// ErrInvalidGeometry is returned when a shape cannot be constructed from its parameters.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Shape is implemented by every geometry variant in this package.
type Shape interface {
	Kind() Kind
	// LocalAABB bounds the shape in its own frame. Unbounded shapes return infinite extents.
	LocalAABB() spatialmath.AABB
	// BoundingRadius is the largest distance from the local origin to any point of the shape.
	BoundingRadius() float64
	Volume() float64
	Label() string
	String() string

	isShape()
}

// Convex is a shape that can report its farthest point along a direction, in its local frame.
type Convex interface {
	Shape
	Support(dir r3.Vector) r3.Vector
}

func newBadGeometryDimensionsError(k Kind) error {
	return errors.Wrapf(ErrInvalidGeometry, "invalid dimension(s) for geometry type %s", k)
}

func newBadCapsuleLengthError(length, radius float64) error {
	return errors.Wrapf(ErrInvalidGeometry,
		"capsule dimensions invalid: length %.3f must be at least twice the radius %.3f", length, radius)
}

func newBadMeshError(k Kind, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidGeometry, "%s: %s", k, fmt.Sprintf(format, args...))
}

func validFloats(vals ...float64) bool {
	for _, v := range vals {
		if v != v || v > 1e300 || v < -1e300 {
			return false
		}
	}
	return true
}

func validVector(v r3.Vector) bool {
	return validFloats(v.X, v.Y, v.Z)
}
