package geometry

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Inertia returns the 3x3 inertia tensor of a solid of uniform density and the given mass, taken
// about the shape's local origin and expressed in its local axes.
func Inertia(s Shape, mass float64) (*mat.Dense, error) {
	if mass <= 0 || !validFloats(mass) {
		return nil, errors.Wrapf(ErrInvalidGeometry, "mass must be positive, got %v", mass)
	}
	switch shape := s.(type) {
	case *Sphere:
		i := 0.4 * mass * shape.radius * shape.radius
		return diagonal(i, i, i), nil
	case *Box:
		d := shape.Dims()
		return diagonal(
			mass*(d.Y*d.Y+d.Z*d.Z)/12,
			mass*(d.X*d.X+d.Z*d.Z)/12,
			mass*(d.X*d.X+d.Y*d.Y)/12,
		), nil
	case *Cylinder:
		r, h := shape.radius, shape.length
		ixx := mass * (3*r*r + h*h) / 12
		return diagonal(ixx, ixx, mass*r*r/2), nil
	case *Cone:
		r, h := shape.radius, shape.length
		// about the centroid, which sits h/4 above the base, then shifted to the local origin
		ixx := mass*(3*r*r/20+3*h*h/80) + mass*(h/4)*(h/4)
		return diagonal(ixx, ixx, 0.3*mass*r*r), nil
	case *Capsule:
		return capsuleInertia(shape, mass), nil
	case *ConvexMesh:
		return meshInertia(shape, mass)
	default:
		return nil, errors.Wrapf(ErrInvalidGeometry, "no inertia for geometry type %s", s.Kind())
	}
}

func diagonal(x, y, z float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		x, 0, 0,
		0, y, 0,
		0, 0, z,
	})
}

func capsuleInertia(c *Capsule, mass float64) *mat.Dense {
	r := c.radius
	h := c.length - 2*r
	cylVol := math.Pi * r * r * h
	sphVol := 4. / 3. * math.Pi * r * r * r
	density := mass / (cylVol + sphVol)
	mc, ms := density*cylVol, density*sphVol

	izz := mc*r*r/2 + ms*2*r*r/5
	ixx := mc*(3*r*r+h*h)/12 + ms*(2*r*r/5+h*h/4+3*h*r/8)
	return diagonal(ixx, ixx, izz)
}

// canonicalTetra is the second moment of the unit tetrahedron (0, e1, e2, e3) scaled by its
// determinant.
var canonicalTetra = mat.NewSymDense(3, []float64{
	2. / 120, 1. / 120, 1. / 120,
	1. / 120, 2. / 120, 1. / 120,
	1. / 120, 1. / 120, 2. / 120,
})

// meshInertia integrates x x^T over the tetrahedra formed by the origin and each face.
func meshInertia(m *ConvexMesh, mass float64) (*mat.Dense, error) {
	vol := signedVolume(m.vertices, m.triangles)
	if math.Abs(vol) < 1e-12 {
		return nil, errors.Wrapf(ErrInvalidGeometry, "%s has no enclosed volume", KindConvexMesh)
	}
	cov := mat.NewDense(3, 3, nil)
	var tmp, term mat.Dense
	for _, tri := range m.triangles {
		a, b, c := m.vertices[tri[0]], m.vertices[tri[1]], m.vertices[tri[2]]
		verts := mat.NewDense(3, 3, []float64{
			a.X, b.X, c.X,
			a.Y, b.Y, c.Y,
			a.Z, b.Z, c.Z,
		})
		det := mat.Det(verts)
		tmp.Mul(verts, canonicalTetra)
		term.Mul(&tmp, verts.T())
		term.Scale(det, &term)
		cov.Add(cov, &term)
	}
	trace := mat.Trace(cov)
	out := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := -cov.At(i, j)
			if i == j {
				v += trace
			}
			out.Set(i, j, mass/vol*v)
		}
	}
	return out, nil
}
