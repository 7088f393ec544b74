package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/fcl/bvh"
	"go.viam.com/fcl/spatialmath"
)

// ConvexMesh is a convex polytope given by its vertices. Faces are optional; when present they
// must be oriented consistently and are used for volume, inertia and configuration round trips.
type ConvexMesh struct {
	vertices  []r3.Vector
	triangles [][3]int
	aabb      spatialmath.AABB
	radius    float64
	label     string
}

// NewConvexMesh instantiates a convex mesh. Vertices are copied; the caller is trusted to supply
// a convex point set.
func NewConvexMesh(vertices []r3.Vector, triangles [][3]int, label string) (*ConvexMesh, error) {
	if len(vertices) == 0 {
		return nil, newBadMeshError(KindConvexMesh, "no vertices")
	}
	if err := checkMesh(KindConvexMesh, vertices, triangles); err != nil {
		return nil, err
	}
	m := &ConvexMesh{
		vertices:  append([]r3.Vector(nil), vertices...),
		triangles: append([][3]int(nil), triangles...),
		aabb:      spatialmath.NewAABBFromPoints(vertices...),
		label:     label,
	}
	for _, v := range vertices {
		m.radius = math.Max(m.radius, v.Norm())
	}
	return m, nil
}

func (m *ConvexMesh) isShape() {}

// Kind returns KindConvexMesh.
func (m *ConvexMesh) Kind() Kind { return KindConvexMesh }

// Vertices returns the vertices of the mesh. The slice must not be modified.
func (m *ConvexMesh) Vertices() []r3.Vector { return m.vertices }

// Triangles returns the face indices. The slice must not be modified.
func (m *ConvexMesh) Triangles() [][3]int { return m.triangles }

// Label returns the label of this mesh.
func (m *ConvexMesh) Label() string { return m.label }

// LocalAABB returns the bounds of the vertices.
func (m *ConvexMesh) LocalAABB() spatialmath.AABB { return m.aabb }

// BoundingRadius returns the norm of the farthest vertex.
func (m *ConvexMesh) BoundingRadius() float64 { return m.radius }

// Volume returns the enclosed volume computed over the faces, or 0 if there are none.
func (m *ConvexMesh) Volume() float64 {
	return math.Abs(signedVolume(m.vertices, m.triangles))
}

// Support returns the vertex farthest along dir.
func (m *ConvexMesh) Support(dir r3.Vector) r3.Vector {
	best := m.vertices[0]
	bestDot := best.Dot(dir)
	for _, v := range m.vertices[1:] {
		if d := v.Dot(dir); d > bestDot {
			best, bestDot = v, d
		}
	}
	return best
}

// String returns a human readable string that represents the mesh.
func (m *ConvexMesh) String() string {
	return fmt.Sprintf("Type: ConvexMesh | Vertices: %d | Faces: %d", len(m.vertices), len(m.triangles))
}

// TriangleSoup is an arbitrary, possibly non-manifold, set of triangles. A BVH over the triangles
// is built once when the soup is constructed and shared by every query against it.
type TriangleSoup struct {
	vertices  []r3.Vector
	indices   [][3]int
	triangles []*spatialmath.Triangle
	tree      *bvh.Tree
	aabb      spatialmath.AABB
	radius    float64
	label     string
}

// NewTriangleSoup instantiates a triangle soup and builds its hierarchy with the given options.
func NewTriangleSoup(vertices []r3.Vector, triangles [][3]int, label string, opts ...bvh.Option) (*TriangleSoup, error) {
	if len(vertices) == 0 || len(triangles) == 0 {
		return nil, newBadMeshError(KindTriangleSoup, "needs at least one vertex and one triangle")
	}
	if err := checkMesh(KindTriangleSoup, vertices, triangles); err != nil {
		return nil, err
	}
	s := &TriangleSoup{
		vertices:  append([]r3.Vector(nil), vertices...),
		indices:   append([][3]int(nil), triangles...),
		triangles: make([]*spatialmath.Triangle, len(triangles)),
		label:     label,
	}
	prims := make([]bvh.Primitive, len(triangles))
	s.aabb = spatialmath.EmptyAABB()
	for i, tri := range triangles {
		t := spatialmath.NewTriangle(vertices[tri[0]], vertices[tri[1]], vertices[tri[2]])
		s.triangles[i] = t
		prims[i] = bvh.NewPrimitive(t.Points()...)
		s.aabb = s.aabb.Union(prims[i].Bounds)
		for _, p := range t.Points() {
			s.radius = math.Max(s.radius, p.Norm())
		}
	}
	tree, err := bvh.Build(prims, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build hierarchy for %s", KindTriangleSoup)
	}
	s.tree = tree
	return s, nil
}

func (s *TriangleSoup) isShape() {}

// Kind returns KindTriangleSoup.
func (s *TriangleSoup) Kind() Kind { return KindTriangleSoup }

// Label returns the label of this soup.
func (s *TriangleSoup) Label() string { return s.label }

// NumTriangles returns the number of triangles.
func (s *TriangleSoup) NumTriangles() int { return len(s.triangles) }

// Triangle returns the i'th triangle in the soup frame.
func (s *TriangleSoup) Triangle(i int) *spatialmath.Triangle { return s.triangles[i] }

// Vertices returns the vertices of the soup. The slice must not be modified.
func (s *TriangleSoup) Vertices() []r3.Vector { return s.vertices }

// Indices returns the vertex indices of each triangle. The slice must not be modified.
func (s *TriangleSoup) Indices() [][3]int { return s.indices }

// Tree returns the hierarchy over the triangles, indexed like Triangle.
func (s *TriangleSoup) Tree() *bvh.Tree { return s.tree }

// LocalAABB returns the bounds of all triangles.
func (s *TriangleSoup) LocalAABB() spatialmath.AABB { return s.aabb }

// BoundingRadius returns the norm of the farthest referenced vertex.
func (s *TriangleSoup) BoundingRadius() float64 { return s.radius }

// Volume returns 0; a soup has no interior.
func (s *TriangleSoup) Volume() float64 { return 0 }

// String returns a human readable string that represents the soup.
func (s *TriangleSoup) String() string {
	return fmt.Sprintf("Type: TriangleSoup | Vertices: %d | Triangles: %d", len(s.vertices), len(s.triangles))
}

func checkMesh(k Kind, vertices []r3.Vector, triangles [][3]int) error {
	for i, v := range vertices {
		if !validVector(v) {
			return newBadMeshError(k, "vertex %d is not finite", i)
		}
	}
	for i, tri := range triangles {
		for _, idx := range tri {
			if idx < 0 || idx >= len(vertices) {
				return newBadMeshError(k, "triangle %d references vertex %d of %d", i, idx, len(vertices))
			}
		}
	}
	return nil
}

// signedVolume sums the signed volumes of the tetrahedra formed by the origin and each face.
func signedVolume(vertices []r3.Vector, triangles [][3]int) float64 {
	var v float64
	for _, tri := range triangles {
		a, b, c := vertices[tri[0]], vertices[tri[1]], vertices[tri[2]]
		v += a.Dot(b.Cross(c)) / 6
	}
	return v
}
