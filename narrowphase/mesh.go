package narrowphase

import (
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"go.viam.com/fcl/bvh"
	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
)

// convexVolumeIn bounds a convex shape with an oriented box expressed in a soup's frame, grown
// by margin.
func convexVolumeIn(c geometry.Convex, pc, soupPose spatialmath.Pose, margin float64) spatialmath.OBB {
	obb := spatialmath.OBBFromAABB(c.LocalAABB()).Transform(spatialmath.PoseBetween(soupPose, pc))
	obb.HalfSize = obb.HalfSize.Add(r3.Vector{X: margin, Y: margin, Z: margin})
	return obb
}

// MeshConvex collides a triangle soup with a convex shape. Candidate triangles come from the
// soup's hierarchy; each is tested against the shape with GJK and EPA.
func MeshConvex(a *geometry.TriangleSoup, pa spatialmath.Pose, b geometry.Convex, pb spatialmath.Pose, req *Request) ([]Contact, error) {
	shape := newBody(b, pb)
	var out []Contact
	var errs error
	a.Tree().Query(convexVolumeIn(b, pb, pa, touchEpsilon), func(prim int) bool {
		tri := newTriangleBody(a.Triangle(prim).Transform(pa))
		s, err := separate(tri, shape, req)
		errs = multierr.Append(errs, err)
		if s.distance <= touchEpsilon {
			c := s.contact()
			c.PrimitiveA = prim
			out = append(out, c)
		}
		return true
	})
	return out, errs
}

// MeshConvexDistance returns the signed distance between a triangle soup and a convex shape,
// visiting triangles nearest first and skipping any that cannot beat the best found so far.
func MeshConvexDistance(a *geometry.TriangleSoup, pa spatialmath.Pose, b geometry.Convex, pb spatialmath.Pose, req *Request) (DistanceResult, error) {
	shape := newBody(b, pb)
	var errs error
	d, prim := a.Tree().Distance(convexVolumeIn(b, pb, pa, 0), func(prim int) float64 {
		s, err := separate(newTriangleBody(a.Triangle(prim).Transform(pa)), shape, req)
		errs = multierr.Append(errs, err)
		return s.distance
	})
	res := DistanceResult{Distance: d, PrimitiveA: prim, PrimitiveB: -1}
	if prim >= 0 {
		s, _ := separate(newTriangleBody(a.Triangle(prim).Transform(pa)), shape, req)
		res.NearestA, res.NearestB = s.pa, s.pb
	}
	return res, errs
}

// MeshMesh collides two triangle soups by descending both hierarchies together and testing the
// triangle pairs of overlapping leaves.
func MeshMesh(a *geometry.TriangleSoup, pa spatialmath.Pose, b *geometry.TriangleSoup, pb spatialmath.Pose, req *Request) ([]Contact, error) {
	var out []Contact
	bvh.CollideTrees(a.Tree(), pa, b.Tree(), pb, func(i, j int) bool {
		ta, tb := a.Triangle(i).Transform(pa), b.Triangle(j).Transform(pb)
		if !spatialmath.TrianglesIntersect(ta, tb) {
			return true
		}
		s, err := separate(newTriangleBody(ta), newTriangleBody(tb), req)
		c := s.contact()
		if err != nil {
			// coplanar triangles have no volume to expand into; report them as touching
			c = Contact{Point: ta.Centroid().Add(tb.Centroid()).Mul(0.5), Normal: orientedNormal(ta, tb)}
		} else if c.Depth < 0 {
			c.Depth = 0
		}
		c.PrimitiveA, c.PrimitiveB = i, j
		out = append(out, c)
		return true
	})
	return out, nil
}

// orientedNormal returns a's normal flipped, if needed, to point towards b.
func orientedNormal(a, b *spatialmath.Triangle) r3.Vector {
	n := a.Normal()
	if n.Dot(b.Centroid().Sub(a.Centroid())) < 0 {
		n = n.Mul(-1)
	}
	if n.Norm2() == 0 {
		n = r3.Vector{Z: 1}
	}
	return n
}

// MeshMeshDistance returns the distance between two triangle soups. Intersecting soups report
// the negated depth of their deepest contact.
func MeshMeshDistance(a *geometry.TriangleSoup, pa spatialmath.Pose, b *geometry.TriangleSoup, pb spatialmath.Pose, req *Request) (DistanceResult, error) {
	d, i, j := bvh.DistanceTrees(a.Tree(), pa, b.Tree(), pb, func(i, j int) float64 {
		_, _, dist := spatialmath.ClosestPointsTriangleTriangle(a.Triangle(i).Transform(pa), b.Triangle(j).Transform(pb))
		return dist
	})
	res := DistanceResult{Distance: d, PrimitiveA: i, PrimitiveB: j}
	if i < 0 {
		return res, nil
	}
	res.NearestA, res.NearestB, _ = spatialmath.ClosestPointsTriangleTriangle(a.Triangle(i).Transform(pa), b.Triangle(j).Transform(pb))
	if d > 0 {
		return res, nil
	}
	contacts, err := MeshMesh(a, pa, b, pb, req)
	if deepest := Finalize(contacts, &Request{TouchingCounts: true}); len(deepest) > 0 {
		c := deepest[0]
		res.Distance = -c.Depth
		res.PrimitiveA, res.PrimitiveB = c.PrimitiveA, c.PrimitiveB
		res.NearestA = c.Point.Add(c.Normal.Mul(c.Depth / 2))
		res.NearestB = c.Point.Sub(c.Normal.Mul(c.Depth / 2))
	}
	return res, err
}

// soupPlane expresses a world plane in a soup's frame.
func soupPlane(n r3.Vector, d float64, soupPose spatialmath.Pose) (r3.Vector, float64) {
	nl := spatialmath.InverseRotateVector(soupPose, n)
	return nl, d - n.Dot(soupPose.Point())
}

// boundsRange returns the range of n·x - d over a box.
func boundsRange(box spatialmath.AABB, n r3.Vector, d float64) (float64, float64) {
	c := box.Center()
	h := box.HalfSize()
	r := math.Abs(n.X)*h.X + math.Abs(n.Y)*h.Y + math.Abs(n.Z)*h.Z
	mid := n.Dot(c) - d
	return mid - r, mid + r
}

// MeshHalfspace collides a triangle soup with a halfspace, reporting each vertex at or below the
// boundary once.
func MeshHalfspace(a *geometry.TriangleSoup, pa spatialmath.Pose, b *geometry.Halfspace, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	n, d := worldPlane(b.Normal(), b.Offset(), pb)
	nl, dl := soupPlane(n, d, pa)
	seen := map[int]bool{}
	var out []Contact
	a.Tree().Traverse(func(node *bvh.Node) bool {
		lo, _ := boundsRange(node.Bounds, nl, dl)
		return lo <= touchEpsilon
	}, func(prim int) bool {
		for _, vi := range a.Indices()[prim] {
			if seen[vi] {
				continue
			}
			p := spatialmath.TransformPoint(pa, a.Vertices()[vi])
			depth := d - n.Dot(p)
			if depth < -touchEpsilon {
				continue
			}
			seen[vi] = true
			out = append(out, Contact{
				Point: p.Add(n.Mul(depth / 2)), Normal: n.Mul(-1), Depth: depth,
				PrimitiveA: prim, PrimitiveB: -1,
			})
		}
		return true
	})
	return out, nil
}

// MeshHalfspaceDistance returns the signed distance from the lowest vertex of a soup to a
// halfspace.
func MeshHalfspaceDistance(a *geometry.TriangleSoup, pa spatialmath.Pose, b *geometry.Halfspace, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	n, d := worldPlane(b.Normal(), b.Offset(), pb)
	res := DistanceResult{Distance: math.Inf(1), PrimitiveA: -1, PrimitiveB: -1}
	for prim, tri := range a.Indices() {
		for _, vi := range tri {
			p := spatialmath.TransformPoint(pa, a.Vertices()[vi])
			if sd := n.Dot(p) - d; sd < res.Distance {
				res.Distance, res.NearestA, res.NearestB, res.PrimitiveA = sd, p, p.Sub(n.Mul(sd)), prim
			}
		}
	}
	return res, nil
}

// triangleRange returns the lowest and highest vertices of a world triangle relative to a plane.
func triangleRange(t *spatialmath.Triangle, n r3.Vector, d float64) (lo, hi float64, low, high r3.Vector) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range t.Points() {
		sd := n.Dot(p) - d
		if sd < lo {
			lo, low = sd, p
		}
		if sd > hi {
			hi, high = sd, p
		}
	}
	return lo, hi, low, high
}

// MeshPlane collides a triangle soup with a two-sided plane. Each crossing triangle yields one
// contact pushing it out through its nearer side.
func MeshPlane(a *geometry.TriangleSoup, pa spatialmath.Pose, b *geometry.Plane, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	n, d := worldPlane(b.Normal(), b.Offset(), pb)
	nl, dl := soupPlane(n, d, pa)
	var out []Contact
	a.Tree().Traverse(func(node *bvh.Node) bool {
		lo, hi := boundsRange(node.Bounds, nl, dl)
		return lo <= touchEpsilon && hi >= -touchEpsilon
	}, func(prim int) bool {
		lo, hi, low, high := triangleRange(a.Triangle(prim).Transform(pa), n, d)
		if lo > touchEpsilon || hi < -touchEpsilon {
			return true
		}
		c := Contact{PrimitiveA: prim, PrimitiveB: -1}
		if -lo <= hi {
			c.Depth = math.Max(0, -lo)
			c.Normal = n.Mul(-1)
			c.Point = low.Add(n.Mul(c.Depth / 2))
		} else {
			c.Depth = math.Max(0, hi)
			c.Normal = n
			c.Point = high.Sub(n.Mul(c.Depth / 2))
		}
		out = append(out, c)
		return true
	})
	return out, nil
}

// MeshPlaneDistance returns the distance between a triangle soup and a two-sided plane, negated
// by the shorter way out when the soup crosses the plane.
func MeshPlaneDistance(a *geometry.TriangleSoup, pa spatialmath.Pose, b *geometry.Plane, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	n, d := worldPlane(b.Normal(), b.Offset(), pb)
	lo, hi := math.Inf(1), math.Inf(-1)
	var low, high r3.Vector
	loPrim, hiPrim := -1, -1
	for prim := 0; prim < a.NumTriangles(); prim++ {
		tlo, thi, tlow, thigh := triangleRange(a.Triangle(prim).Transform(pa), n, d)
		if tlo < lo {
			lo, low, loPrim = tlo, tlow, prim
		}
		if thi > hi {
			hi, high, hiPrim = thi, thigh, prim
		}
	}
	if lo >= 0 || (hi > 0 && -lo <= hi) {
		return DistanceResult{Distance: lo, NearestA: low, NearestB: low.Sub(n.Mul(lo)), PrimitiveA: loPrim, PrimitiveB: -1}, nil
	}
	return DistanceResult{Distance: -hi, NearestA: high, NearestB: high.Sub(n.Mul(hi)), PrimitiveA: hiPrim, PrimitiveB: -1}, nil
}
