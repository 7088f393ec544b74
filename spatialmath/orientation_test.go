package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

// a 45 degree rotation around the x axis in every representation
var (
	th    = math.Pi / 4.
	q45x  = quat.Number{Real: math.Cos(th / 2.), Imag: math.Sin(th / 2.)}
	aa45x = &R4AA{th, 1., 0., 0.}
	ea45x = &EulerAngles{Roll: th, Pitch: 0, Yaw: 0}
)

func TestZeroOrientation(t *testing.T) {
	zero := NewZeroOrientation()
	test.That(t, zero.AxisAngles(), test.ShouldResemble, NewR4AA())
	test.That(t, zero.Quaternion(), test.ShouldResemble, quat.Number{Real: 1})
	test.That(t, zero.EulerAngles(), test.ShouldResemble, NewEulerAngles())
	test.That(t, zero.RotationMatrix(), test.ShouldResemble, IdentityRotationMatrix())
}

func TestOrientationConversions(t *testing.T) {
	for _, o := range []Orientation{NewQuaternion(q45x), aa45x, ea45x, QuatToRotationMatrix(q45x)} {
		test.That(t, QuaternionAlmostEqual(o.Quaternion(), q45x, 1e-9), test.ShouldBeTrue)
		test.That(t, o.AxisAngles().Theta, test.ShouldAlmostEqual, aa45x.Theta)
		test.That(t, o.AxisAngles().RX, test.ShouldAlmostEqual, aa45x.RX)
		test.That(t, o.EulerAngles().Roll, test.ShouldAlmostEqual, ea45x.Roll)
		test.That(t, o.EulerAngles().Yaw, test.ShouldAlmostEqual, 0)
		rm := o.RotationMatrix()
		test.That(t, rm.At(1, 1), test.ShouldAlmostEqual, math.Cos(th))
		test.That(t, rm.At(2, 1), test.ShouldAlmostEqual, math.Sin(th))
	}
}

func TestRotationMatrixRoundTrip(t *testing.T) {
	ea := &EulerAngles{Roll: 0.3, Pitch: -1.1, Yaw: 2.7}
	rm := ea.RotationMatrix()
	test.That(t, QuaternionAlmostEqual(rm.Quaternion(), ea.Quaternion(), 1e-9), test.ShouldBeTrue)

	v := r3.Vector{X: 1, Y: -2, Z: 0.5}
	back := rm.MulT(rm.Mul(v))
	test.That(t, R3VectorAlmostEqual(back, v, 1e-9), test.ShouldBeTrue)
	id := rm.Transpose().MatMul(rm)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.
			if i == j {
				expected = 1
			}
			test.That(t, id.At(i, j), test.ShouldAlmostEqual, expected)
		}
	}

	_, err := NewRotationMatrix([]float64{1, 2})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOrientationConfig(t *testing.T) {
	t.Run("defaults to identity", func(t *testing.T) {
		var cfg *OrientationConfig
		o, err := cfg.ParseConfig()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, OrientationAlmostEqual(o, NewZeroOrientation()), test.ShouldBeTrue)
	})

	t.Run("each type", func(t *testing.T) {
		for _, cfg := range []OrientationConfig{
			{Type: QuaternionType, Value: map[string]float64{"w": q45x.Real, "x": q45x.Imag}},
			{Type: AxisAnglesType, Value: map[string]float64{"th": th, "x": 1}},
			{Type: EulerAnglesType, Value: map[string]float64{"roll": th}},
			{Type: OrientationVectorType, Value: map[string]float64{"th": 45, "x": 1}},
		} {
			o, err := cfg.ParseConfig()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, OrientationAlmostEqual(o, aa45x), test.ShouldBeTrue)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		o, err := NewOrientationConfig(ea45x).ParseConfig()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, OrientationAlmostEqual(o, ea45x), test.ShouldBeTrue)
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := (&OrientationConfig{Type: "spin"}).ParseConfig()
		test.That(t, err, test.ShouldNotBeNil)
		_, err = (&OrientationConfig{Type: AxisAnglesType, Value: map[string]float64{"th": 1}}).ParseConfig()
		test.That(t, err, test.ShouldNotBeNil)
		_, err = (&OrientationConfig{Type: QuaternionType}).ParseConfig()
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestSlerp(t *testing.T) {
	from := NewZeroOrientation().Quaternion()
	to := (&R4AA{Theta: math.Pi / 2, RZ: 1}).Quaternion()
	mid := Slerp(from, to, 0.5)
	test.That(t, QuatToR4AA(mid).Theta, test.ShouldAlmostEqual, math.Pi/4)

	// the negated target is the same rotation and must take the short way round
	midFlipped := Slerp(from, quat.Scale(-1, to), 0.5)
	test.That(t, QuaternionAlmostEqual(mid, midFlipped, 1e-9), test.ShouldBeTrue)
}
