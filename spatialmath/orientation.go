package spatialmath

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object in 3D Euclidean space.
type Orientation interface {
	AxisAngles() *R4AA
	Quaternion() quat.Number
	EulerAngles() *EulerAngles
	RotationMatrix() *RotationMatrix
}

// NewZeroOrientation returns an orientation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{Real: 1}
}

// OrientationAlmostEqual will return a bool describing whether 2 orientations are approximately the same.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// OrientationBetween returns the orientation representing the difference between the two given Orientations.
func OrientationBetween(o1, o2 Orientation) Orientation {
	q := quaternion(quat.Mul(o2.Quaternion(), quat.Conj(o1.Quaternion())))
	return &q
}

// Orientation config types.
const (
	NoOrientationType     = ""
	QuaternionType        = "quaternion"
	AxisAnglesType        = "axis_angles"
	EulerAnglesType       = "euler_angles"
	OrientationVectorType = "ov_degrees"
)

// OrientationConfig is the serialized form of an orientation. Value keys depend on Type:
// quaternion uses w,x,y,z; axis_angles uses th,x,y,z (radians); euler_angles uses roll,pitch,yaw
// (radians); ov_degrees uses th,x,y,z with th in degrees about the unit axis (x,y,z).
type OrientationConfig struct {
	Type  string             `json:"type"`
	Value map[string]float64 `json:"value,omitempty"`
}

// ParseConfig converts an OrientationConfig into an Orientation.
func (cfg *OrientationConfig) ParseConfig() (Orientation, error) {
	if cfg == nil {
		return NewZeroOrientation(), nil
	}
	v := cfg.Value
	switch cfg.Type {
	case NoOrientationType:
		return NewZeroOrientation(), nil
	case QuaternionType:
		q := quat.Number{Real: v["w"], Imag: v["x"], Jmag: v["y"], Kmag: v["z"]}
		if quat.Abs(q) == 0 {
			return nil, errors.New("quaternion orientation must be non-zero")
		}
		o := quaternion(normalizeQuat(q))
		return &o, nil
	case AxisAnglesType:
		if v["x"] == 0 && v["y"] == 0 && v["z"] == 0 {
			return nil, errors.New("axis_angles orientation requires a non-zero axis")
		}
		return &R4AA{Theta: v["th"], RX: v["x"], RY: v["y"], RZ: v["z"]}, nil
	case EulerAnglesType:
		return &EulerAngles{Roll: v["roll"], Pitch: v["pitch"], Yaw: v["yaw"]}, nil
	case OrientationVectorType:
		if v["x"] == 0 && v["y"] == 0 && v["z"] == 0 {
			return nil, errors.New("ov_degrees orientation requires a non-zero axis")
		}
		return &R4AA{Theta: v["th"] * math.Pi / 180, RX: v["x"], RY: v["y"], RZ: v["z"]}, nil
	default:
		return nil, errors.Errorf("orientation type %q not recognized", cfg.Type)
	}
}

// NewOrientationConfig serializes an orientation as a quaternion config.
func NewOrientationConfig(o Orientation) *OrientationConfig {
	q := o.Quaternion()
	return &OrientationConfig{
		Type:  QuaternionType,
		Value: map[string]float64{"w": q.Real, "x": q.Imag, "y": q.Jmag, "z": q.Kmag},
	}
}
