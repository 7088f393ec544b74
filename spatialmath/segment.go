package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

const floatEpsilon = 1e-6

// PlaneNormal returns the unit normal of the plane through three points, or the zero vector if
// they are collinear.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if norm := n.Norm(); norm > 0 {
		return n.Mul(1 / norm)
	}
	return r3.Vector{}
}

// ClosestPointSegmentPoint returns the point on segment ab closest to p.
func ClosestPointSegmentPoint(a, b, p r3.Vector) r3.Vector {
	ab := b.Sub(a)
	l2 := ab.Norm2()
	if l2 == 0 {
		return a
	}
	t := math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l2))
	return a.Add(ab.Mul(t))
}

// ClosestPointsSegmentSegment returns the closest pair of points between segments p1q1 and p2q2.
// Degenerate segments are treated as points.
func ClosestPointsSegmentSegment(p1, q1, p2, q2 r3.Vector) (r3.Vector, r3.Vector) {
	const eps = 1e-12
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Norm2()
	e := d2.Norm2()
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a <= eps && e <= eps:
		return p1, p2
	case a <= eps:
		t = clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e <= eps {
			s = clamp01(-c / a)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom > eps {
				s = clamp01((b*f - c*e) / denom)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp01(-c / a)
			} else if t > 1 {
				t = 1
				s = clamp01((b - c) / a)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

// SegmentDistanceToSegment returns the minimum distance between two segments.
func SegmentDistanceToSegment(p1, q1, p2, q2 r3.Vector) float64 {
	c1, c2 := ClosestPointsSegmentSegment(p1, q1, p2, q2)
	return c1.Sub(c2).Norm()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
