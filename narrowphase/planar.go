package narrowphase

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
)

// worldPlane moves the plane n·x = d from a shape's frame into the world.
func worldPlane(n r3.Vector, d float64, p spatialmath.Pose) (r3.Vector, float64) {
	nw := spatialmath.RotateVector(p, n)
	return nw, d + nw.Dot(p.Point())
}

// feature is a candidate contact point of a convex shape: a core point and the radius around it.
type feature struct {
	p      r3.Vector
	radius float64
}

// planeFeatures lists, in world coordinates, the points of s that can be deepest below a plane
// with world normal n. Polytopes list their vertices; curved shapes list a few rim points aligned
// with the plane so that resting shapes produce stable manifolds.
func planeFeatures(s geometry.Convex, p spatialmath.Pose, n r3.Vector) []feature {
	world := func(local r3.Vector) r3.Vector { return spatialmath.TransformPoint(p, local) }
	local := spatialmath.InverseRotateVector(p, n.Mul(-1))
	switch shape := s.(type) {
	case *geometry.Sphere:
		return []feature{{world(r3.Vector{}), shape.Radius()}}
	case *geometry.Capsule:
		lo, hi := shape.Segment()
		return []feature{{world(lo), shape.Radius()}, {world(hi), shape.Radius()}}
	case *geometry.Box:
		var out []feature
		for _, v := range shape.Vertices() {
			out = append(out, feature{p: world(v)})
		}
		return out
	case *geometry.ConvexMesh:
		var out []feature
		for _, v := range shape.Vertices() {
			out = append(out, feature{p: world(v)})
		}
		return out
	case *geometry.Cylinder:
		var out []feature
		for _, z := range []float64{-shape.Length() / 2, shape.Length() / 2} {
			for _, rim := range rimSamples(local, shape.Radius()) {
				out = append(out, feature{p: world(r3.Vector{X: rim.X, Y: rim.Y, Z: z})})
			}
		}
		return out
	case *geometry.Cone:
		out := []feature{{p: world(shape.Apex())}}
		for _, rim := range rimSamples(local, shape.Radius()) {
			out = append(out, feature{p: world(r3.Vector{X: rim.X, Y: rim.Y, Z: -shape.Length() / 2})})
		}
		return out
	}
	return []feature{{p: spatialmath.TransformPoint(p, s.Support(local))}}
}

// rimSamples returns four points on a circle of radius r in the XY plane, the first one farthest
// along dir.
func rimSamples(dir r3.Vector, r float64) [4]r3.Vector {
	u := r3.Vector{X: dir.X, Y: dir.Y}
	if n := u.Norm(); n > 1e-9 {
		u = u.Mul(1 / n)
	} else {
		u = r3.Vector{X: 1}
	}
	v := r3.Vector{X: -u.Y, Y: u.X}
	return [4]r3.Vector{u.Mul(r), v.Mul(r), u.Mul(-r), v.Mul(-r)}
}

// belowPlane reports the features of s lying below the world plane n·x = d as contacts whose
// normal is -n, the direction the plane must move to clear s.
func belowPlane(s geometry.Convex, p spatialmath.Pose, n r3.Vector, d float64) []Contact {
	var out []Contact
	for _, f := range planeFeatures(s, p, n) {
		deepest := f.p.Sub(n.Mul(f.radius))
		depth := d - n.Dot(deepest)
		if depth < -touchEpsilon {
			continue
		}
		out = append(out, Contact{
			Point:      deepest.Add(n.Mul(depth / 2)),
			Normal:     n.Mul(-1),
			Depth:      depth,
			PrimitiveA: -1,
			PrimitiveB: -1,
		})
	}
	return out
}

// ConvexHalfspace collides a convex shape with a halfspace.
func ConvexHalfspace(a geometry.Convex, pa spatialmath.Pose, b *geometry.Halfspace, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	n, d := worldPlane(b.Normal(), b.Offset(), pb)
	return belowPlane(a, pa, n, d), nil
}

// ConvexHalfspaceDistance returns the signed distance from a convex shape to a halfspace.
func ConvexHalfspaceDistance(a geometry.Convex, pa spatialmath.Pose, b *geometry.Halfspace, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	n, d := worldPlane(b.Normal(), b.Offset(), pb)
	q := newBody(a, pa).support(n.Mul(-1))
	sd := n.Dot(q) - d
	return DistanceResult{Distance: sd, NearestA: q, NearestB: q.Sub(n.Mul(sd)), PrimitiveA: -1, PrimitiveB: -1}, nil
}

// planeExtent returns the lowest and highest signed distances of a convex shape from a plane.
func planeExtent(a geometry.Convex, pa spatialmath.Pose, n r3.Vector, d float64) (lo, hi float64, low, high r3.Vector) {
	body := newBody(a, pa)
	low = body.support(n.Mul(-1))
	high = body.support(n)
	return n.Dot(low) - d, n.Dot(high) - d, low, high
}

// ConvexPlane collides a convex shape with a two-sided plane. The shape is pushed out through
// whichever side needs the shorter move.
func ConvexPlane(a geometry.Convex, pa spatialmath.Pose, b *geometry.Plane, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	n, d := worldPlane(b.Normal(), b.Offset(), pb)
	lo, hi, _, _ := planeExtent(a, pa, n, d)
	if lo > touchEpsilon || hi < -touchEpsilon {
		return nil, nil
	}
	if -lo <= hi {
		return belowPlane(a, pa, n, d), nil
	}
	return belowPlane(a, pa, n.Mul(-1), -d), nil
}

// ConvexPlaneDistance returns the signed distance from a convex shape to a two-sided plane.
func ConvexPlaneDistance(a geometry.Convex, pa spatialmath.Pose, b *geometry.Plane, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	n, d := worldPlane(b.Normal(), b.Offset(), pb)
	lo, hi, low, high := planeExtent(a, pa, n, d)
	switch {
	case lo >= 0:
		return DistanceResult{Distance: lo, NearestA: low, NearestB: low.Sub(n.Mul(lo)), PrimitiveA: -1, PrimitiveB: -1}, nil
	case hi <= 0:
		return DistanceResult{Distance: -hi, NearestA: high, NearestB: high.Sub(n.Mul(hi)), PrimitiveA: -1, PrimitiveB: -1}, nil
	case -lo <= hi:
		return DistanceResult{Distance: lo, NearestA: low, NearestB: low.Sub(n.Mul(lo)), PrimitiveA: -1, PrimitiveB: -1}, nil
	}
	return DistanceResult{Distance: -hi, NearestA: high, NearestB: high.Sub(n.Mul(hi)), PrimitiveA: -1, PrimitiveB: -1}, nil
}

// unboundedDepth is reported for unbounded regions that overlap without limit, such as two
// crossing halfspaces.
var unboundedDepth = math.MaxFloat64

// planeLinePoint returns a point on the line where two non-parallel planes meet.
func planeLinePoint(n1 r3.Vector, d1 float64, n2 r3.Vector, d2 float64) r3.Vector {
	u := n1.Cross(n2)
	return n2.Cross(u).Mul(d1).Add(u.Cross(n1).Mul(d2)).Mul(1 / u.Norm2())
}

const parallelEpsilon = 1e-9

func planesParallel(n1, n2 r3.Vector) bool {
	return n1.Cross(n2).Norm() < parallelEpsilon
}

// HalfspaceHalfspace collides two halfspaces. Unless they face away from each other they overlap
// without bound.
func HalfspaceHalfspace(a *geometry.Halfspace, pa spatialmath.Pose, b *geometry.Halfspace, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	n1, d1 := worldPlane(a.Normal(), a.Offset(), pa)
	n2, d2 := worldPlane(b.Normal(), b.Offset(), pb)
	if !planesParallel(n1, n2) {
		return []Contact{{Point: planeLinePoint(n1, d1, n2, d2), Normal: n1, Depth: unboundedDepth, PrimitiveA: -1, PrimitiveB: -1}}, nil
	}
	if n1.Dot(n2) > 0 {
		return []Contact{{Point: n1.Mul(math.Min(d1, n1.Dot(n2)*d2)), Normal: n1, Depth: unboundedDepth, PrimitiveA: -1, PrimitiveB: -1}}, nil
	}
	// facing each other: a is n1·x <= d1, b is n1·x >= -d2
	depth := d1 + d2
	if depth < -touchEpsilon {
		return nil, nil
	}
	return []Contact{{Point: n1.Mul((d1 - d2) / 2), Normal: n1, Depth: depth, PrimitiveA: -1, PrimitiveB: -1}}, nil
}

// HalfspaceHalfspaceDistance returns the gap between two halfspaces facing away from each other,
// or the negated overlap.
func HalfspaceHalfspaceDistance(a *geometry.Halfspace, pa spatialmath.Pose, b *geometry.Halfspace, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	n1, d1 := worldPlane(a.Normal(), a.Offset(), pa)
	n2, d2 := worldPlane(b.Normal(), b.Offset(), pb)
	if !planesParallel(n1, n2) || n1.Dot(n2) > 0 {
		p := n1.Mul(d1)
		return DistanceResult{Distance: -unboundedDepth, NearestA: p, NearestB: p, PrimitiveA: -1, PrimitiveB: -1}, nil
	}
	return DistanceResult{Distance: -(d1 + d2), NearestA: n1.Mul(d1), NearestB: n1.Mul(-d2), PrimitiveA: -1, PrimitiveB: -1}, nil
}

// PlaneHalfspace collides a plane with a halfspace.
func PlaneHalfspace(a *geometry.Plane, pa spatialmath.Pose, b *geometry.Halfspace, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	n1, d1 := worldPlane(a.Normal(), a.Offset(), pa)
	n2, d2 := worldPlane(b.Normal(), b.Offset(), pb)
	if !planesParallel(n1, n2) {
		return []Contact{{Point: planeLinePoint(n1, d1, n2, d2), Normal: n2.Mul(-1), Depth: unboundedDepth, PrimitiveA: -1, PrimitiveB: -1}}, nil
	}
	// the plane's offset measured along the halfspace normal
	s := d1 * n1.Dot(n2)
	depth := d2 - s
	if depth < -touchEpsilon {
		return nil, nil
	}
	return []Contact{{Point: n2.Mul(s + depth/2), Normal: n2.Mul(-1), Depth: depth, PrimitiveA: -1, PrimitiveB: -1}}, nil
}

// PlaneHalfspaceDistance returns the signed distance between a plane and a halfspace.
func PlaneHalfspaceDistance(a *geometry.Plane, pa spatialmath.Pose, b *geometry.Halfspace, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	n1, d1 := worldPlane(a.Normal(), a.Offset(), pa)
	n2, d2 := worldPlane(b.Normal(), b.Offset(), pb)
	if !planesParallel(n1, n2) {
		p := planeLinePoint(n1, d1, n2, d2)
		return DistanceResult{Distance: -unboundedDepth, NearestA: p, NearestB: p, PrimitiveA: -1, PrimitiveB: -1}, nil
	}
	s := d1 * n1.Dot(n2)
	return DistanceResult{Distance: s - d2, NearestA: n2.Mul(s), NearestB: n2.Mul(d2), PrimitiveA: -1, PrimitiveB: -1}, nil
}

// PlanePlane collides two planes. Crossing planes overlap without bound; parallel planes only
// touch when they coincide.
func PlanePlane(a *geometry.Plane, pa spatialmath.Pose, b *geometry.Plane, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	n1, d1 := worldPlane(a.Normal(), a.Offset(), pa)
	n2, d2 := worldPlane(b.Normal(), b.Offset(), pb)
	if !planesParallel(n1, n2) {
		return []Contact{{Point: planeLinePoint(n1, d1, n2, d2), Normal: n1, Depth: unboundedDepth, PrimitiveA: -1, PrimitiveB: -1}}, nil
	}
	gap := d2*n1.Dot(n2) - d1
	if math.Abs(gap) > touchEpsilon {
		return nil, nil
	}
	return []Contact{{Point: n1.Mul(d1), Normal: n1, PrimitiveA: -1, PrimitiveB: -1}}, nil
}

// PlanePlaneDistance returns the gap between parallel planes, or the unbounded overlap of
// crossing ones.
func PlanePlaneDistance(a *geometry.Plane, pa spatialmath.Pose, b *geometry.Plane, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	n1, d1 := worldPlane(a.Normal(), a.Offset(), pa)
	n2, d2 := worldPlane(b.Normal(), b.Offset(), pb)
	if !planesParallel(n1, n2) {
		p := planeLinePoint(n1, d1, n2, d2)
		return DistanceResult{Distance: -unboundedDepth, NearestA: p, NearestB: p, PrimitiveA: -1, PrimitiveB: -1}, nil
	}
	s := d2 * n1.Dot(n2)
	return DistanceResult{Distance: math.Abs(s - d1), NearestA: n1.Mul(d1), NearestB: n1.Mul(s), PrimitiveA: -1, PrimitiveB: -1}, nil
}
