package geometry

import (
	"fmt"

	"github.com/golang/geo/r3"

	"go.viam.com/fcl/spatialmath"
)

// Ordered list of box vertices, as signs of the half size.
var boxVertices = [8]r3.Vector{
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: -1},
	{X: 1, Y: -1, Z: 1},
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: 1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: -1, Y: -1, Z: -1},
}

// Box is a rectangular prism centered on its local origin with edges along the local axes.
type Box struct {
	halfSize r3.Vector
	label    string
}

// NewBox instantiates a new box from its full side lengths.
func NewBox(dims r3.Vector, label string) (*Box, error) {
	// Negative dimensions not allowed. Zero dimensions are allowed for bounding boxes, etc.
	if dims.X < 0 || dims.Y < 0 || dims.Z < 0 || !validVector(dims) {
		return nil, newBadGeometryDimensionsError(KindBox)
	}
	return &Box{halfSize: dims.Mul(0.5), label: label}, nil
}

func (b *Box) isShape() {}

// Kind returns KindBox.
func (b *Box) Kind() Kind { return KindBox }

// HalfSize returns half of each side length.
func (b *Box) HalfSize() r3.Vector { return b.halfSize }

// Dims returns the full side lengths.
func (b *Box) Dims() r3.Vector { return b.halfSize.Mul(2) }

// Label returns the label of this box.
func (b *Box) Label() string { return b.label }

// LocalAABB returns the box itself.
func (b *Box) LocalAABB() spatialmath.AABB {
	return spatialmath.NewAABBFromCenter(r3.Vector{}, b.halfSize)
}

// BoundingRadius returns the distance from the center to a corner.
func (b *Box) BoundingRadius() float64 { return b.halfSize.Norm() }

// Volume returns the product of the side lengths.
func (b *Box) Volume() float64 {
	return 8 * b.halfSize.X * b.halfSize.Y * b.halfSize.Z
}

// Vertices returns the eight corners in the box frame.
func (b *Box) Vertices() [8]r3.Vector {
	var out [8]r3.Vector
	for i, v := range boxVertices {
		out[i] = r3.Vector{X: v.X * b.halfSize.X, Y: v.Y * b.halfSize.Y, Z: v.Z * b.halfSize.Z}
	}
	return out
}

// Support returns the corner farthest along dir.
func (b *Box) Support(dir r3.Vector) r3.Vector {
	return r3.Vector{
		X: signOf(dir.X) * b.halfSize.X,
		Y: signOf(dir.Y) * b.halfSize.Y,
		Z: signOf(dir.Z) * b.halfSize.Z,
	}
}

// String returns a human readable string that represents the box.
func (b *Box) String() string {
	return fmt.Sprintf("Type: Box | Dims: X:%.3f, Y:%.3f, Z:%.3f", 2*b.halfSize.X, 2*b.halfSize.Y, 2*b.halfSize.Z)
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
