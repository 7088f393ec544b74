package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// OBB is an oriented bounding box. Axes holds the box's local axes as columns.
type OBB struct {
	Center   r3.Vector
	Axes     RotationMatrix
	HalfSize r3.Vector
}

// OBBFromAABB returns the OBB covering the same region as a bounded AABB.
func OBBFromAABB(b AABB) OBB {
	return OBB{Center: b.Center(), Axes: *IdentityRotationMatrix(), HalfSize: b.HalfSize()}
}

// Axis returns the i-th local axis of the box in the parent frame.
func (o OBB) Axis(i int) r3.Vector {
	return o.Axes.Col(i)
}

// Transform moves the box by p.
func (o OBB) Transform(p Pose) OBB {
	return OBB{
		Center:   TransformPoint(p, o.Center),
		Axes:     *p.Orientation().RotationMatrix().MatMul(&o.Axes),
		HalfSize: o.HalfSize,
	}
}

// Corners returns the 8 vertices of the box.
func (o OBB) Corners() [8]r3.Vector {
	var out [8]r3.Vector
	for i := 0; i < 8; i++ {
		c := o.Center
		c = c.Add(o.Axis(0).Mul(pick(i&1 != 0, o.HalfSize.X, -o.HalfSize.X)))
		c = c.Add(o.Axis(1).Mul(pick(i&2 != 0, o.HalfSize.Y, -o.HalfSize.Y)))
		c = c.Add(o.Axis(2).Mul(pick(i&4 != 0, o.HalfSize.Z, -o.HalfSize.Z)))
		out[i] = c
	}
	return out
}

// AABB returns the axis-aligned box enclosing o.
func (o OBB) AABB() AABB {
	var h r3.Vector
	for i := 0; i < 3; i++ {
		row := o.Axes.Row(i)
		h = SetComponent(h, i, math.Abs(row.X)*o.HalfSize.X+math.Abs(row.Y)*o.HalfSize.Y+math.Abs(row.Z)*o.HalfSize.Z)
	}
	return NewAABBFromCenter(o.Center, h)
}

// ContainsPoint returns whether p lies inside the box, allowing a tolerance of eps.
func (o OBB) ContainsPoint(p r3.Vector, eps float64) bool {
	d := p.Sub(o.Center)
	return math.Abs(d.Dot(o.Axis(0))) <= o.HalfSize.X+eps &&
		math.Abs(d.Dot(o.Axis(1))) <= o.HalfSize.Y+eps &&
		math.Abs(d.Dot(o.Axis(2))) <= o.HalfSize.Z+eps
}

// Overlaps returns whether the two boxes intersect. Touching counts as overlapping.
func (o OBB) Overlaps(other OBB) bool {
	return OBBSeparation(o, other) <= 0
}

// OBBSeparation returns the largest gap between the projections of a and b over the 15 separating
// axes of two boxes. A positive result is a lower bound on the distance between the boxes. A
// negative result means no axis separates them, and its magnitude is the smallest overlap seen.
func OBBSeparation(a, b OBB) float64 {
	axA := [3]r3.Vector{a.Axis(0), a.Axis(1), a.Axis(2)}
	axB := [3]r3.Vector{b.Axis(0), b.Axis(1), b.Axis(2)}
	hA := [3]float64{a.HalfSize.X, a.HalfSize.Y, a.HalfSize.Z}
	hB := [3]float64{b.HalfSize.X, b.HalfSize.Y, b.HalfSize.Z}
	return obbSATMaxGap(b.Center.Sub(a.Center), &axA, &axB, &hA, &hB)
}

// obbSATMaxGap follows Ericson, "Real-Time Collision Detection" 4.4, with each edge axis
// normalized so that gaps are true distances along unit directions.
func obbSATMaxGap(d r3.Vector, axA, axB *[3]r3.Vector, hA, hB *[3]float64) float64 {
	const eps = 1e-10

	var r, absR [3][3]float64
	var t [3]float64
	for i := 0; i < 3; i++ {
		t[i] = axA[i].Dot(d)
		for j := 0; j < 3; j++ {
			r[i][j] = axA[i].Dot(axB[j])
			absR[i][j] = math.Abs(r[i][j]) + eps
		}
	}

	best := math.Inf(-1)
	for i := 0; i < 3; i++ {
		rb := hB[0]*absR[i][0] + hB[1]*absR[i][1] + hB[2]*absR[i][2]
		best = math.Max(best, math.Abs(t[i])-hA[i]-rb)
	}
	for j := 0; j < 3; j++ {
		ra := hA[0]*absR[0][j] + hA[1]*absR[1][j] + hA[2]*absR[2][j]
		tb := t[0]*r[0][j] + t[1]*r[1][j] + t[2]*r[2][j]
		best = math.Max(best, math.Abs(tb)-hB[j]-ra)
	}

	// edge-edge axes a_i x b_j; parallel edges contribute nothing new
	for i := 0; i < 3; i++ {
		i1, i2 := (i+1)%3, (i+2)%3
		for j := 0; j < 3; j++ {
			l2 := 1 - r[i][j]*r[i][j]
			if l2 <= eps {
				continue
			}
			j1, j2 := (j+1)%3, (j+2)%3
			ra := hA[i1]*absR[i2][j] + hA[i2]*absR[i1][j]
			rb := hB[j1]*absR[i][j2] + hB[j2]*absR[i][j1]
			proj := t[i2]*r[i1][j] - t[i1]*r[i2][j]
			best = math.Max(best, (math.Abs(proj)-ra-rb)/math.Sqrt(l2))
		}
	}
	return best
}
