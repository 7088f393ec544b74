package config

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/yosuke-furukawa/json5/encoding/json5"

	"go.viam.com/fcl/bvh"
	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
	"go.viam.com/fcl/utils"
)

// Read reads a config from the given file. ${VAR} references are expanded from the environment
// before parsing, and the file may use JSON5 syntax.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	cfg.ConfigFilePath = originalPath
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Scene is a set of named shapes together with the engine settings to check them with.
type Scene struct {
	Engine  *Config       `json:"engine,omitempty"`
	Objects []SceneObject `json:"objects"`
}

// SceneObject is one shape in a scene. EndPose, when set, is where the object has moved to at the
// end of a swept query.
type SceneObject struct {
	Name     string                  `json:"name"`
	Geometry geometry.Config         `json:"geometry"`
	Pose     *spatialmath.PoseConfig `json:"pose,omitempty"`
	EndPose  *spatialmath.PoseConfig `json:"end_pose,omitempty"`
}

// Validate ensures all parts of the scene are valid.
func (s *Scene) Validate(path string) error {
	if s.Engine != nil {
		if err := s.Engine.Validate(joinPath(path, "engine")); err != nil {
			return err
		}
	}
	for i, obj := range s.Objects {
		if obj.Name == "" {
			return utils.NewConfigValidationFieldRequiredError(joinPath(path, fmt.Sprintf("objects.%d", i)), "name")
		}
	}
	names := lo.Map(s.Objects, func(o SceneObject, _ int) string { return o.Name })
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return utils.NewConfigValidationError(joinPath(path, "objects"), errors.Errorf("duplicate object name %q", dups[0]))
	}
	return nil
}

// EngineConfig returns the scene's engine settings, or the defaults if it has none.
func (s *Scene) EngineConfig() *Config {
	if s.Engine == nil {
		return Default()
	}
	return s.Engine
}

// Parse builds the object's shape and its start and end poses. An object without an end pose
// ends where it starts.
func (o *SceneObject) Parse(opts ...bvh.Option) (geometry.Shape, spatialmath.Pose, spatialmath.Pose, error) {
	shape, err := o.Geometry.ParseConfig(opts...)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "object %q", o.Name)
	}
	start, err := o.Pose.ParseConfig()
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "object %q pose", o.Name)
	}
	end := start
	if o.EndPose != nil {
		if end, err = o.EndPose.ParseConfig(); err != nil {
			return nil, nil, nil, errors.Wrapf(err, "object %q end pose", o.Name)
		}
	}
	return shape, start, end, nil
}

// ReadScene reads a scene from the given file. Mesh files named by the scene are resolved relative
// to the scene file's directory.
func ReadScene(filePath string) (*Scene, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return SceneFromReader(filePath, bytes.NewReader(buf))
}

// SceneFromReader reads a scene from the given reader.
func SceneFromReader(originalPath string, r io.Reader) (*Scene, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var scene Scene
	if err := json5.Unmarshal(data, &scene); err != nil {
		return nil, errors.Wrap(err, "failed to decode Scene from json")
	}
	if scene.Engine != nil {
		// overlay the file's engine settings on the defaults
		engine := Default()
		if err := json5.Unmarshal(data, &struct {
			Engine *Config `json:"engine"`
		}{engine}); err != nil {
			return nil, errors.Wrap(err, "failed to decode engine config")
		}
		engine.ConfigFilePath = originalPath
		scene.Engine = engine
	}
	dir := filepath.Dir(originalPath)
	for i := range scene.Objects {
		if f := scene.Objects[i].Geometry.File; f != "" && !filepath.IsAbs(f) && originalPath != "" {
			scene.Objects[i].Geometry.File = filepath.Join(dir, f)
		}
	}
	if err := scene.Validate(""); err != nil {
		return nil, err
	}
	return &scene, nil
}
