package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Triangle is three points and the unit normal of their plane (counter-clockwise winding).
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle creates a triangle. Degenerate triangles get a zero normal.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// Points returns the vertices in winding order.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the unit normal.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Centroid returns the mean of the three vertices.
func (t *Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1. / 3.)
}

// Area returns the triangle's area.
func (t *Triangle) Area() float64 {
	return t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm() / 2
}

// AABB returns the triangle's bounds.
func (t *Triangle) AABB() AABB {
	return NewAABBFromPoints(t.p0, t.p1, t.p2)
}

// Transform returns the triangle moved by p.
func (t *Triangle) Transform(p Pose) *Triangle {
	return &Triangle{
		p0:     TransformPoint(p, t.p0),
		p1:     TransformPoint(p, t.p1),
		p2:     TransformPoint(p, t.p2),
		normal: RotateVector(p, t.normal),
	}
}

// ClosestPointToPoint returns the point on the triangle closest to pt, found by classifying pt
// against the Voronoi regions of the vertices, edges and face.
func (t *Triangle) ClosestPointToPoint(pt r3.Vector) r3.Vector {
	a, b, c := t.p0, t.p1, t.p2
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := pt.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := pt.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}

	cp := pt.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}

	denom := va + vb + vc
	if denom == 0 {
		// collinear vertices; fall back to the edges
		return t.closestOnEdges(pt)
	}
	v := vb / denom
	w := vc / denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

func (t *Triangle) closestOnEdges(pt r3.Vector) r3.Vector {
	best := ClosestPointSegmentPoint(t.p0, t.p1, pt)
	bestDist := pt.Sub(best).Norm2()
	for _, e := range [][2]r3.Vector{{t.p1, t.p2}, {t.p2, t.p0}} {
		cand := ClosestPointSegmentPoint(e[0], e[1], pt)
		if d := pt.Sub(cand).Norm2(); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}

// IntersectsPlane determines if the triangle intersects with a plane defined by a point and normal
// vector. Returns true if the triangle crosses or touches the plane.
func (t *Triangle) IntersectsPlane(planePt, planeNormal r3.Vector) bool {
	d0 := planeNormal.Dot(t.p0.Sub(planePt))
	d1 := planeNormal.Dot(t.p1.Sub(planePt))
	d2 := planeNormal.Dot(t.p2.Sub(planePt))
	above := d0 > floatEpsilon && d1 > floatEpsilon && d2 > floatEpsilon
	below := d0 < -floatEpsilon && d1 < -floatEpsilon && d2 < -floatEpsilon
	return !above && !below
}

// TrianglesIntersect reports whether two triangles share at least one point, using the separating
// axis test over both normals and the edge cross products. Coplanar triangles are additionally
// tested against the in-plane edge normals.
func TrianglesIntersect(a, b *Triangle) bool {
	const eps = 1e-12
	ea := [3]r3.Vector{a.p1.Sub(a.p0), a.p2.Sub(a.p1), a.p0.Sub(a.p2)}
	eb := [3]r3.Vector{b.p1.Sub(b.p0), b.p2.Sub(b.p1), b.p0.Sub(b.p2)}

	axes := make([]r3.Vector, 0, 17)
	axes = append(axes, a.normal, b.normal)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			axes = append(axes, ea[i].Cross(eb[j]))
		}
	}
	if a.normal.Cross(b.normal).Norm2() < eps {
		n := a.normal
		if n.Norm2() < eps {
			n = b.normal
		}
		for i := 0; i < 3; i++ {
			axes = append(axes, n.Cross(ea[i]), n.Cross(eb[i]))
		}
	}

	for _, axis := range axes {
		if axis.Norm2() < eps {
			continue
		}
		minA, maxA := projectTriangle(a, axis)
		minB, maxB := projectTriangle(b, axis)
		scale := 1e-9 * math.Sqrt(axis.Norm2())
		if minA > maxB+scale || minB > maxA+scale {
			return false
		}
	}
	return true
}

func projectTriangle(t *Triangle, axis r3.Vector) (float64, float64) {
	p0, p1, p2 := axis.Dot(t.p0), axis.Dot(t.p1), axis.Dot(t.p2)
	return math.Min(p0, math.Min(p1, p2)), math.Max(p0, math.Max(p1, p2))
}

// ClosestPointsTriangleTriangle returns a closest pair of points between two triangles and their
// distance. Intersecting triangles report a distance of 0.
func ClosestPointsTriangleTriangle(a, b *Triangle) (r3.Vector, r3.Vector, float64) {
	bestA, bestB := a.p0, b.ClosestPointToPoint(a.p0)
	best := bestA.Sub(bestB).Norm2()
	consider := func(pa, pb r3.Vector) {
		if d := pa.Sub(pb).Norm2(); d < best {
			bestA, bestB, best = pa, pb, d
		}
	}
	for _, p := range []r3.Vector{a.p1, a.p2} {
		consider(p, b.ClosestPointToPoint(p))
	}
	for _, p := range []r3.Vector{b.p0, b.p1, b.p2} {
		consider(a.ClosestPointToPoint(p), p)
	}
	edgesA := [3][2]r3.Vector{{a.p0, a.p1}, {a.p1, a.p2}, {a.p2, a.p0}}
	edgesB := [3][2]r3.Vector{{b.p0, b.p1}, {b.p1, b.p2}, {b.p2, b.p0}}
	for _, e1 := range edgesA {
		for _, e2 := range edgesB {
			consider(ClosestPointsSegmentSegment(e1[0], e1[1], e2[0], e2[1]))
		}
	}
	if TrianglesIntersect(a, b) {
		return bestA, bestA, 0
	}
	return bestA, bestB, math.Sqrt(best)
}
