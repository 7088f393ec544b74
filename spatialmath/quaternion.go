package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

type quaternion quat.Number

// NewQuaternion returns an orientation from the given (not necessarily unit) quaternion.
func NewQuaternion(q quat.Number) Orientation {
	o := quaternion(normalizeQuat(q))
	return &o
}

// Quaternion returns orientation in quaternion representation.
func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// AxisAngles returns the orientation in axis angle representation.
func (q *quaternion) AxisAngles() *R4AA {
	return QuatToR4AA(q.Quaternion())
}

// EulerAngles returns orientation in Euler angle representation.
func (q *quaternion) EulerAngles() *EulerAngles {
	return QuatToEulerAngles(q.Quaternion())
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (q *quaternion) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(q.Quaternion())
}

// QuaternionAlmostEqual is an equality test for quaternions. q and -q describe the same rotation
// and compare as equal.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := math.Abs(a.Real-b.Real) < tol && math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol && math.Abs(a.Kmag-b.Kmag) < tol
	flipped := math.Abs(a.Real+b.Real) < tol && math.Abs(a.Imag+b.Imag) < tol &&
		math.Abs(a.Jmag+b.Jmag) < tol && math.Abs(a.Kmag+b.Kmag) < tol
	return same || flipped
}

// QuatToR4AA converts a quat to an R4 axis angle.
func QuatToR4AA(q quat.Number) *R4AA {
	q = normalizeQuat(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	denom := math.Sqrt(1 - q.Real*q.Real)
	if denom < 1e-12 {
		return NewR4AA()
	}
	return &R4AA{
		Theta: 2 * math.Acos(math.Min(1, q.Real)),
		RX:    q.Imag / denom,
		RY:    q.Jmag / denom,
		RZ:    q.Kmag / denom,
	}
}

// QuatToEulerAngles converts a quaternion to roll, pitch and yaw (intrinsic ZYX).
func QuatToEulerAngles(q quat.Number) *EulerAngles {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}
	return &EulerAngles{
		Roll:  math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)),
		Pitch: pitch,
		Yaw:   math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)),
	}
}

// QuatToRotationMatrix converts a quat to a rotation matrix.
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	q = normalizeQuat(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{mat: [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}

// Slerp spherically interpolates between two unit quaternions along the shorter arc.
func Slerp(from, to quat.Number, by float64) quat.Number {
	a := mgl64.Quat{W: from.Real, V: mgl64.Vec3{from.Imag, from.Jmag, from.Kmag}}
	b := mgl64.Quat{W: to.Real, V: mgl64.Vec3{to.Imag, to.Jmag, to.Kmag}}
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	r := mgl64.QuatSlerp(a.Normalize(), b.Normalize(), by).Normalize()
	return quat.Number{Real: r.W, Imag: r.V[0], Jmag: r.V[1], Kmag: r.V[2]}
}

func normalizeQuat(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

// rotateByQuat rotates v by the unit quaternion q.
func rotateByQuat(q quat.Number, v r3.Vector) r3.Vector {
	u := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	t := u.Cross(v).Mul(2)
	return v.Add(t.Mul(q.Real)).Add(u.Cross(t))
}
