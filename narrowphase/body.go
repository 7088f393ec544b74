package narrowphase

import (
	"github.com/golang/geo/r3"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
)

// body is a convex set placed in the world, split into a core and a radius: the set is every
// point within radius of the core. Spheres and capsules reduce to a point and a segment, which
// lets GJK compute their distances exactly.
type body struct {
	rot    *spatialmath.RotationMatrix
	pos    r3.Vector
	center r3.Vector
	radius float64
	// core returns the core's farthest point along a direction, both in the local frame
	core func(dir r3.Vector) r3.Vector
}

func newBody(s geometry.Convex, pose spatialmath.Pose) *body {
	b := &body{
		rot: pose.Orientation().RotationMatrix(),
		pos: pose.Point(),
	}
	b.center = b.pos
	switch shape := s.(type) {
	case *geometry.Sphere:
		b.radius = shape.Radius()
		b.core = func(r3.Vector) r3.Vector { return r3.Vector{} }
	case *geometry.Capsule:
		b.radius = shape.Radius()
		lo, hi := shape.Segment()
		b.core = func(dir r3.Vector) r3.Vector {
			if dir.Z < 0 {
				return lo
			}
			return hi
		}
	default:
		b.core = s.Support
	}
	return b
}

// newTriangleBody places a triangle whose vertices are already in world coordinates.
func newTriangleBody(t *spatialmath.Triangle) *body {
	pts := t.Points()
	return &body{
		rot:    spatialmath.IdentityRotationMatrix(),
		center: t.Centroid(),
		core: func(dir r3.Vector) r3.Vector {
			best := pts[0]
			bestDot := best.Dot(dir)
			for _, p := range pts[1:] {
				if d := p.Dot(dir); d > bestDot {
					best, bestDot = p, d
				}
			}
			return best
		},
	}
}

// coreSupport returns the world-frame farthest core point along a world direction.
func (b *body) coreSupport(dir r3.Vector) r3.Vector {
	return b.rot.Mul(b.core(b.rot.MulT(dir))).Add(b.pos)
}

// support returns the world-frame farthest point of the full set along a world direction.
func (b *body) support(dir r3.Vector) r3.Vector {
	p := b.coreSupport(dir)
	if b.radius > 0 {
		p = p.Add(unit(dir).Mul(b.radius))
	}
	return p
}
