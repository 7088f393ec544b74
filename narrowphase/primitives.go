package narrowphase

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
)

// ballSeparation measures two balls given by their centers and radii.
func ballSeparation(ca r3.Vector, ra float64, cb r3.Vector, rb float64, fallback r3.Vector) separation {
	diff := cb.Sub(ca)
	d := diff.Norm()
	n := fallback
	if d > 1e-12 {
		n = diff.Mul(1 / d)
	}
	return separation{
		distance: d - ra - rb,
		pa:       ca.Add(n.Mul(ra)),
		pb:       cb.Sub(n.Mul(rb)),
		normal:   n,
	}
}

func contactsFrom(s separation) []Contact {
	if s.distance > touchEpsilon {
		return nil
	}
	return []Contact{s.contact()}
}

func sphereSphere(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Sphere, pb spatialmath.Pose) separation {
	return ballSeparation(pa.Point(), a.Radius(), pb.Point(), b.Radius(), r3.Vector{X: 1})
}

// SphereSphere collides two spheres.
func SphereSphere(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Sphere, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	return contactsFrom(sphereSphere(a, pa, b, pb)), nil
}

// SphereSphereDistance returns the signed distance between two spheres.
func SphereSphereDistance(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Sphere, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	return sphereSphere(a, pa, b, pb).result(), nil
}

func capsuleSegment(c *geometry.Capsule, p spatialmath.Pose) (r3.Vector, r3.Vector) {
	lo, hi := c.Segment()
	return spatialmath.TransformPoint(p, lo), spatialmath.TransformPoint(p, hi)
}

func sphereCapsule(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Capsule, pb spatialmath.Pose) separation {
	s0, s1 := capsuleSegment(b, pb)
	c := pa.Point()
	q := spatialmath.ClosestPointSegmentPoint(s0, s1, c)
	return ballSeparation(c, a.Radius(), q, b.Radius(), spatialmath.RotateVector(pb, r3.Vector{X: 1}))
}

// SphereCapsule collides a sphere with a capsule.
func SphereCapsule(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Capsule, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	return contactsFrom(sphereCapsule(a, pa, b, pb)), nil
}

// SphereCapsuleDistance returns the signed distance between a sphere and a capsule.
func SphereCapsuleDistance(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Capsule, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	return sphereCapsule(a, pa, b, pb).result(), nil
}

func capsuleCapsule(a *geometry.Capsule, pa spatialmath.Pose, b *geometry.Capsule, pb spatialmath.Pose) separation {
	a0, a1 := capsuleSegment(a, pa)
	b0, b1 := capsuleSegment(b, pb)
	qa, qb := spatialmath.ClosestPointsSegmentSegment(a0, a1, b0, b1)
	fallback := unit(a1.Sub(a0).Cross(b1.Sub(b0)))
	if fallback.Norm2() == 0 {
		fallback = anyPerpendicular(a1.Sub(a0))
	}
	if fallback.Norm2() == 0 {
		fallback = r3.Vector{X: 1}
	}
	return ballSeparation(qa, a.Radius(), qb, b.Radius(), fallback)
}

// CapsuleCapsule collides two capsules. When the manifold is requested and the core segments are
// parallel and overlapping, both ends of the shared span are reported.
func CapsuleCapsule(a *geometry.Capsule, pa spatialmath.Pose, b *geometry.Capsule, pb spatialmath.Pose, req *Request) ([]Contact, error) {
	s := capsuleCapsule(a, pa, b, pb)
	if s.distance > touchEpsilon {
		return nil, nil
	}
	if req == nil || !req.EnableContactManifold {
		return []Contact{s.contact()}, nil
	}
	a0, a1 := capsuleSegment(a, pa)
	b0, b1 := capsuleSegment(b, pb)
	da, db := a1.Sub(a0), b1.Sub(b0)
	if da.Norm2() < 1e-18 || db.Norm2() < 1e-18 || da.Cross(db).Norm() > 1e-9*da.Norm()*db.Norm() {
		return []Contact{s.contact()}, nil
	}
	// project B's ends onto A's axis and keep the overlapping interval
	axis := unit(da)
	t0, t1 := b0.Sub(a0).Dot(axis), b1.Sub(a0).Dot(axis)
	lo, hi := math.Max(0, math.Min(t0, t1)), math.Min(da.Norm(), math.Max(t0, t1))
	if hi-lo < 1e-9 {
		return []Contact{s.contact()}, nil
	}
	var out []Contact
	for _, t := range []float64{lo, hi} {
		qa := a0.Add(axis.Mul(t))
		qb := spatialmath.ClosestPointSegmentPoint(b0, b1, qa)
		out = append(out, ballSeparation(qa, a.Radius(), qb, b.Radius(), s.normal).contact())
	}
	return out, nil
}

// CapsuleCapsuleDistance returns the signed distance between two capsules.
func CapsuleCapsuleDistance(a *geometry.Capsule, pa spatialmath.Pose, b *geometry.Capsule, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	return capsuleCapsule(a, pa, b, pb).result(), nil
}

// sphereBox measures a sphere against a box, including a center inside the box.
func sphereBox(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Box, pb spatialmath.Pose) separation {
	r := a.Radius()
	h := b.HalfSize()
	c := spatialmath.InverseTransformPoint(pb, pa.Point())
	closest := r3.Vector{
		X: math.Max(-h.X, math.Min(h.X, c.X)),
		Y: math.Max(-h.Y, math.Min(h.Y, c.Y)),
		Z: math.Max(-h.Z, math.Min(h.Z, c.Z)),
	}
	diff := c.Sub(closest)
	if d := diff.Norm(); d > 1e-12 {
		// outside: normal from box to sphere in box frame
		out := diff.Mul(1 / d)
		n := spatialmath.RotateVector(pb, out.Mul(-1))
		return separation{
			distance: d - r,
			pa:       spatialmath.TransformPoint(pb, c.Sub(out.Mul(r))),
			pb:       spatialmath.TransformPoint(pb, closest),
			normal:   n,
		}
	}
	// the center is inside the box: push out through the nearest face
	axis, faceDist := 0, math.Inf(1)
	for i := 0; i < 3; i++ {
		if d := spatialmath.Component(h, i) - math.Abs(spatialmath.Component(c, i)); d < faceDist {
			axis, faceDist = i, d
		}
	}
	sign := 1.0
	if spatialmath.Component(c, axis) < 0 {
		sign = -1
	}
	out := spatialmath.SetComponent(r3.Vector{}, axis, sign)
	face := spatialmath.SetComponent(c, axis, sign*spatialmath.Component(h, axis))
	return separation{
		distance: -(r + faceDist),
		pa:       spatialmath.TransformPoint(pb, c.Sub(out.Mul(r))),
		pb:       spatialmath.TransformPoint(pb, face),
		normal:   spatialmath.RotateVector(pb, out.Mul(-1)),
	}
}

// SphereBox collides a sphere with a box.
func SphereBox(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Box, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	return contactsFrom(sphereBox(a, pa, b, pb)), nil
}

// SphereBoxDistance returns the signed distance between a sphere and a box.
func SphereBoxDistance(a *geometry.Sphere, pa spatialmath.Pose, b *geometry.Box, pb spatialmath.Pose, _ *Request) (DistanceResult, error) {
	return sphereBox(a, pa, b, pb).result(), nil
}
