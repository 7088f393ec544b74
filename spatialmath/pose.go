// Package spatialmath defines the rigid-body math used throughout the collision engine: vectors,
// orientations, poses, and the bounding volumes built on top of them.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a rigid transform in 3D space: a rotation followed by a translation. Poses carry
// no scale.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type distalPose struct {
	point       r3.Vector
	orientation quaternion
}

// NewZeroPose returns a pose at (0,0,0) with no rotation.
func NewZeroPose() Pose {
	return &distalPose{orientation: quaternion{Real: 1}}
}

// NewPose returns a pose at the given point with the given orientation. A nil orientation is
// treated as no rotation.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(p)
	}
	return &distalPose{point: p, orientation: quaternion(normalizeQuat(o.Quaternion()))}
}

// NewPoseFromPoint returns a pose at the given point with no rotation.
func NewPoseFromPoint(p r3.Vector) Pose {
	return &distalPose{point: p, orientation: quaternion{Real: 1}}
}

// NewPoseFromOrientation returns a pose at the origin with the given orientation.
func NewPoseFromOrientation(o Orientation) Pose {
	return NewPose(r3.Vector{}, o)
}

func (p *distalPose) Point() r3.Vector {
	return p.point
}

func (p *distalPose) Orientation() Orientation {
	o := p.orientation
	return &o
}

func (p *distalPose) String() string {
	q := quat.Number(p.orientation)
	return fmt.Sprintf("{X:%.3f Y:%.3f Z:%.3f Q:[%.4f %.4f %.4f %.4f]}",
		p.point.X, p.point.Y, p.point.Z, q.Real, q.Imag, q.Jmag, q.Kmag)
}

// Compose returns the pose obtained by applying b in the frame of a: Compose(a, b) maps a point x
// to a(b(x)).
func Compose(a, b Pose) Pose {
	qa := a.Orientation().Quaternion()
	qb := b.Orientation().Quaternion()
	return &distalPose{
		point:       a.Point().Add(rotateByQuat(qa, b.Point())),
		orientation: quaternion(normalizeQuat(quat.Mul(qa, qb))),
	}
}

// PoseInverse returns the pose that undoes p.
func PoseInverse(p Pose) Pose {
	qInv := quat.Conj(p.Orientation().Quaternion())
	return &distalPose{
		point:       rotateByQuat(qInv, p.Point()).Mul(-1),
		orientation: quaternion(qInv),
	}
}

// PoseBetween returns the pose that maps from a to b, such that Compose(a, PoseBetween(a, b)) == b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseDelta returns the translational and rotational difference between two poses. The rotational
// component is the angle in radians between the two orientations.
func PoseDelta(a, b Pose) (float64, float64) {
	q := quat.Mul(quat.Conj(a.Orientation().Quaternion()), b.Orientation().Quaternion())
	angle := 2 * math.Acos(math.Min(1, math.Abs(normalizeQuat(q).Real)))
	return b.Point().Sub(a.Point()).Norm(), angle
}

// TransformPoint applies p to a point expressed in p's local frame.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return p.Point().Add(rotateByQuat(p.Orientation().Quaternion(), pt))
}

// InverseTransformPoint expresses a world point in p's local frame.
func InverseTransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return rotateByQuat(quat.Conj(p.Orientation().Quaternion()), pt.Sub(p.Point()))
}

// RotateVector rotates a direction by p's orientation, ignoring translation.
func RotateVector(p Pose, v r3.Vector) r3.Vector {
	return rotateByQuat(p.Orientation().Quaternion(), v)
}

// InverseRotateVector rotates a world direction into p's local frame.
func InverseRotateVector(p Pose, v r3.Vector) r3.Vector {
	return rotateByQuat(quat.Conj(p.Orientation().Quaternion()), v)
}

// PoseAlmostEqual returns whether two poses are within 1e-8 in translation and have the same
// orientation to within 1e-5.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-8)
}

// PoseAlmostEqualEps is PoseAlmostEqual with a caller-supplied translation tolerance.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// PoseIsFinite returns false if any component of the pose is NaN or infinite.
func PoseIsFinite(p Pose) bool {
	pt := p.Point()
	q := p.Orientation().Quaternion()
	for _, v := range []float64{pt.X, pt.Y, pt.Z, q.Real, q.Imag, q.Jmag, q.Kmag} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Interpolate returns a pose between from and to. Translation is interpolated linearly and rotation
// by spherical linear interpolation; by is clamped to [0, 1].
func Interpolate(from, to Pose, by float64) Pose {
	by = math.Max(0, math.Min(1, by))
	pt := from.Point().Add(to.Point().Sub(from.Point()).Mul(by))
	return &distalPose{
		point:       pt,
		orientation: quaternion(Slerp(from.Orientation().Quaternion(), to.Orientation().Quaternion(), by)),
	}
}

// R3VectorAlmostEqual compares two vectors component-wise.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) <= epsilon && math.Abs(a.Y-b.Y) <= epsilon && math.Abs(a.Z-b.Z) <= epsilon
}
