package geometry

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/fcl/bvh"
)

var errGeometryTypeUnsupported = errors.Wrap(ErrInvalidGeometry, "unsupported geometry type")

// Config specifies the parameters of a shape in a serializable form.
type Config struct {
	Type string `json:"type,omitempty"`

	// Box full side lengths.
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	Z float64 `json:"z,omitempty"`

	// Radius and length for spheres, capsules, cylinders and cones.
	R float64 `json:"r,omitempty"`
	L float64 `json:"l,omitempty"`

	// Planes and halfspaces.
	Normal []float64 `json:"normal,omitempty"`
	Offset float64   `json:"offset,omitempty"`

	// Meshes, either inline or loaded from a PLY file.
	Vertices  [][3]float64 `json:"vertices,omitempty"`
	Triangles [][3]int     `json:"triangles,omitempty"`
	File      string       `json:"file,omitempty"`

	Label string `json:"label,omitempty"`
}

// ParseConfig converts a Config into a Shape. When Type is empty the intent is inferred from the
// fields that are set: dimensions make a box, a radius and length make a capsule, and a radius
// alone makes a sphere. The options configure the hierarchy of triangle soups.
func (config *Config) ParseConfig(opts ...bvh.Option) (Shape, error) {
	if config.Type == "" {
		return config.inferShape()
	}
	kind, err := ParseKind(config.Type)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSphere:
		return NewSphere(config.R, config.Label)
	case KindBox:
		return NewBox(r3.Vector{X: config.X, Y: config.Y, Z: config.Z}, config.Label)
	case KindCapsule:
		return NewCapsule(config.R, config.L, config.Label)
	case KindCylinder:
		return NewCylinder(config.R, config.L, config.Label)
	case KindCone:
		return NewCone(config.R, config.L, config.Label)
	case KindPlane, KindHalfspace:
		if len(config.Normal) != 3 {
			return nil, errors.Wrapf(ErrInvalidGeometry, "%s normal must have 3 components, got %d", kind, len(config.Normal))
		}
		n := r3.Vector{X: config.Normal[0], Y: config.Normal[1], Z: config.Normal[2]}
		if kind == KindPlane {
			return NewPlane(n, config.Offset, config.Label)
		}
		return NewHalfspace(n, config.Offset, config.Label)
	case KindConvexMesh:
		if config.File != "" {
			return NewConvexMeshFromPLYFile(config.File, config.Label)
		}
		return NewConvexMesh(config.vertices(), config.Triangles, config.Label)
	case KindTriangleSoup:
		if config.File != "" {
			return NewTriangleSoupFromPLYFile(config.File, config.Label, opts...)
		}
		return NewTriangleSoup(config.vertices(), config.Triangles, config.Label, opts...)
	}
	return nil, errGeometryTypeUnsupported
}

func (config *Config) inferShape() (Shape, error) {
	switch {
	case config.X > 0 && config.Y > 0 && config.Z > 0:
		return NewBox(r3.Vector{X: config.X, Y: config.Y, Z: config.Z}, config.Label)
	case config.R > 0 && config.L > 0:
		return NewCapsule(config.R, config.L, config.Label)
	case config.R > 0:
		return NewSphere(config.R, config.Label)
	}
	return nil, errGeometryTypeUnsupported
}

func (config *Config) vertices() []r3.Vector {
	return lo.Map(config.Vertices, func(v [3]float64, _ int) r3.Vector {
		return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
	})
}

// NewConfig returns the Config that reproduces a shape.
func NewConfig(s Shape) (*Config, error) {
	config := &Config{Type: s.Kind().String(), Label: s.Label()}
	switch shape := s.(type) {
	case *Sphere:
		config.R = shape.radius
	case *Box:
		d := shape.Dims()
		config.X, config.Y, config.Z = d.X, d.Y, d.Z
	case *Capsule:
		config.R, config.L = shape.radius, shape.length
	case *Cylinder:
		config.R, config.L = shape.radius, shape.length
	case *Cone:
		config.R, config.L = shape.radius, shape.length
	case *Plane:
		config.Normal = []float64{shape.normal.X, shape.normal.Y, shape.normal.Z}
		config.Offset = shape.offset
	case *Halfspace:
		config.Normal = []float64{shape.normal.X, shape.normal.Y, shape.normal.Z}
		config.Offset = shape.offset
	case *ConvexMesh:
		config.Vertices = toArrays(shape.vertices)
		config.Triangles = shape.triangles
	case *TriangleSoup:
		config.Vertices = toArrays(shape.vertices)
		config.Triangles = shape.indices
	default:
		return nil, errGeometryTypeUnsupported
	}
	return config, nil
}

func toArrays(vs []r3.Vector) [][3]float64 {
	return lo.Map(vs, func(v r3.Vector, _ int) [3]float64 { return [3]float64{v.X, v.Y, v.Z} })
}

// MarshalShape encodes a shape as its JSON Config.
func MarshalShape(s Shape) ([]byte, error) {
	config, err := NewConfig(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(config)
}

// UnmarshalShape decodes a shape from its JSON Config.
func UnmarshalShape(data []byte, opts ...bvh.Option) (Shape, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(ErrInvalidGeometry, err.Error())
	}
	return config.ParseConfig(opts...)
}
