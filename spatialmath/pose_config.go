package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PoseConfig is the serialized form of a pose.
type PoseConfig struct {
	Translation r3.Vector          `json:"translation"`
	Orientation *OrientationConfig `json:"orientation,omitempty"`
}

// NewPoseConfig serializes a pose.
func NewPoseConfig(p Pose) *PoseConfig {
	return &PoseConfig{Translation: p.Point(), Orientation: NewOrientationConfig(p.Orientation())}
}

// ParseConfig converts a PoseConfig into a Pose. A nil config is the zero pose.
func (cfg *PoseConfig) ParseConfig() (Pose, error) {
	if cfg == nil {
		return NewZeroPose(), nil
	}
	o, err := cfg.Orientation.ParseConfig()
	if err != nil {
		return nil, err
	}
	p := NewPose(cfg.Translation, o)
	if !PoseIsFinite(p) {
		return nil, errors.New("pose has a non-finite component")
	}
	return p, nil
}
