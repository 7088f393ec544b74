package narrowphase

import (
	"github.com/golang/geo/r3"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
)

// separation is the signed distance between two bodies. For separated bodies pa and pb are the
// nearest points; for overlapping ones they are the deepest points of each inside the other.
// normal always points from A to B.
type separation struct {
	distance float64
	pa, pb   r3.Vector
	normal   r3.Vector
}

func (s separation) contact() Contact {
	return Contact{
		Point:      s.pa.Add(s.pb).Mul(0.5),
		Normal:     s.normal,
		Depth:      -s.distance,
		PrimitiveA: -1,
		PrimitiveB: -1,
	}
}

func (s separation) result() DistanceResult {
	return DistanceResult{Distance: s.distance, NearestA: s.pa, NearestB: s.pb, PrimitiveA: -1, PrimitiveB: -1}
}

// separate runs GJK on the cores of a and b, accounts for their radii, and falls back to EPA on
// the full shapes when the cores overlap.
func separate(a, b *body, req *Request) (separation, error) {
	gjkIters, gjkTol := req.gjkSettings()
	g, err := gjk(a, b, coreOf, gjkIters, gjkTol)
	if !g.overlap && g.distance > 1e-10 {
		n := g.pb.Sub(g.pa).Mul(1 / g.distance)
		return separation{
			distance: g.distance - a.radius - b.radius,
			pa:       g.pa.Add(n.Mul(a.radius)),
			pb:       g.pb.Sub(n.Mul(b.radius)),
			normal:   n,
		}, err
	}
	if err != nil {
		return separation{normal: fallbackNormal(a, b), pa: g.pa, pb: g.pb}, err
	}

	simplex := g.simplex
	if a.radius > 0 || b.radius > 0 || !g.overlap {
		full, err := gjk(a, b, fullOf, gjkIters, gjkTol)
		if err != nil {
			return separation{normal: fallbackNormal(a, b)}, err
		}
		if !full.overlap {
			// touching cores with no radius: zero separation at the shared point
			return separation{pa: full.pa, pb: full.pb, normal: fallbackNormal(a, b)}, nil
		}
		simplex = full.simplex
	}
	epaIters, epaTol := req.epaSettings()
	e, err := epa(a, b, simplex, epaIters, epaTol)
	return separation{distance: -e.depth, pa: e.pa, pb: e.pb, normal: e.normal}, err
}

// ConvexConvex collides two convex shapes with GJK and EPA. It reports at most one contact.
func ConvexConvex(a geometry.Convex, pa spatialmath.Pose, b geometry.Convex, pb spatialmath.Pose, req *Request) ([]Contact, error) {
	s, err := separate(newBody(a, pa), newBody(b, pb), req)
	if s.distance > touchEpsilon && err == nil {
		return nil, nil
	}
	if err != nil && s.distance > touchEpsilon {
		return nil, err
	}
	return []Contact{s.contact()}, err
}

// ConvexConvexDistance returns the signed distance between two convex shapes.
func ConvexConvexDistance(a geometry.Convex, pa spatialmath.Pose, b geometry.Convex, pb spatialmath.Pose, req *Request) (DistanceResult, error) {
	s, err := separate(newBody(a, pa), newBody(b, pb), req)
	return s.result(), err
}
