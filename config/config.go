// Package config defines the engine configuration and the scene file format, and reads both from
// JSON or JSON5 files with environment variable substitution.
package config

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/fcl/broadphase"
	"go.viam.com/fcl/bvh"
	"go.viam.com/fcl/narrowphase"
	"go.viam.com/fcl/utils"
)

// Config tunes an engine. The zero value of every field means "use the default".
type Config struct {
	BroadPhase  string       `json:"broad_phase,omitempty"`
	AABBMargin  float64      `json:"aabb_margin,omitempty"`
	BVH         BVHConfig    `json:"bvh"`
	Query       QueryConfig  `json:"query"`
	GJK         SolverConfig `json:"gjk"`
	EPA         SolverConfig `json:"epa"`
	Continuous  SolverConfig `json:"continuous"`
	Parallelism int          `json:"parallelism,omitempty"`

	ConfigFilePath string `json:"-"`
}

// BVHConfig configures the hierarchies built for triangle soups.
type BVHConfig struct {
	LeafSize      int    `json:"leaf_size,omitempty"`
	Split         string `json:"split,omitempty"`
	Volume        string `json:"volume,omitempty"`
	MaxPrimitives int    `json:"max_primitives,omitempty"`
	SAHBins       int    `json:"sah_bins,omitempty"`
}

// QueryConfig holds the default query options.
type QueryConfig struct {
	EnableContactManifold bool    `json:"enable_contact_manifold,omitempty"`
	MaxContacts           int     `json:"max_contacts,omitempty"`
	DistanceTolerance     float64 `json:"distance_tolerance,omitempty"`
	TouchingCounts        bool    `json:"touching_counts,omitempty"`
}

// SolverConfig bounds an iterative solver.
type SolverConfig struct {
	MaxIterations int     `json:"max_iterations,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty"`
}

// DefaultAABBMargin is how far the dynamic tree fattens the boxes it stores.
const DefaultAABBMargin = 0.05

// Default returns the configuration used when none is supplied.
func Default() *Config {
	return &Config{
		BroadPhase: broadphase.DynamicTreeName,
		AABBMargin: DefaultAABBMargin,
		BVH: BVHConfig{
			LeafSize:      bvh.DefaultLeafSize,
			Split:         bvh.SplitSAH.String(),
			Volume:        bvh.VolumeAABB.String(),
			MaxPrimitives: bvh.DefaultMaxPrimitives,
		},
		GJK: SolverConfig{MaxIterations: narrowphase.DefaultGJKMaxIterations, Tolerance: narrowphase.DefaultGJKTolerance},
		EPA: SolverConfig{MaxIterations: narrowphase.DefaultEPAMaxIterations, Tolerance: narrowphase.DefaultEPATolerance},
		Continuous: SolverConfig{
			MaxIterations: narrowphase.DefaultContinuousMaxIterations,
			Tolerance:     narrowphase.DefaultContinuousTolerance,
		},
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	switch c.BroadPhase {
	case "", broadphase.DynamicTreeName, broadphase.SweepAndPruneName, broadphase.BruteForceName:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown broad_phase %q", c.BroadPhase))
	}
	if c.AABBMargin < 0 {
		return utils.NewConfigValidationError(path, errors.New("aabb_margin must not be negative"))
	}
	if c.Parallelism < 0 {
		return utils.NewConfigValidationError(path, errors.New("parallelism must not be negative"))
	}
	if err := c.BVH.Validate(joinPath(path, "bvh")); err != nil {
		return err
	}
	if err := c.Query.Validate(joinPath(path, "query")); err != nil {
		return err
	}
	for _, solver := range []struct {
		name string
		cfg  SolverConfig
	}{{"gjk", c.GJK}, {"epa", c.EPA}, {"continuous", c.Continuous}} {
		if err := solver.cfg.Validate(joinPath(path, solver.name)); err != nil {
			return err
		}
	}
	return nil
}

// Validate ensures the hierarchy settings are valid.
func (c *BVHConfig) Validate(path string) error {
	if _, err := c.Options(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if c.LeafSize < 0 || c.MaxPrimitives < 0 || c.SAHBins < 0 {
		return utils.NewConfigValidationError(path, errors.New("leaf_size, max_primitives and sah_bins must not be negative"))
	}
	return nil
}

// Options converts the config into build options.
func (c *BVHConfig) Options() ([]bvh.Option, error) {
	split, err := bvh.ParseSplitMethod(c.Split)
	if err != nil {
		return nil, err
	}
	volume, err := bvh.ParseVolumeType(c.Volume)
	if err != nil {
		return nil, err
	}
	opts := []bvh.Option{bvh.WithSplit(split), bvh.WithVolume(volume)}
	if c.LeafSize > 0 {
		opts = append(opts, bvh.WithLeafSize(c.LeafSize))
	}
	if c.MaxPrimitives > 0 {
		opts = append(opts, bvh.WithMaxPrimitives(c.MaxPrimitives))
	}
	if c.SAHBins > 0 {
		opts = append(opts, bvh.WithSAHBins(c.SAHBins))
	}
	return opts, nil
}

// Validate ensures the query options are valid.
func (c *QueryConfig) Validate(path string) error {
	if c.MaxContacts < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_contacts must not be negative"))
	}
	if c.DistanceTolerance < 0 {
		return utils.NewConfigValidationError(path, errors.New("distance_tolerance must not be negative"))
	}
	return nil
}

// Validate ensures the solver bounds are valid.
func (c SolverConfig) Validate(path string) error {
	if c.MaxIterations < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_iterations must not be negative"))
	}
	if c.Tolerance < 0 {
		return utils.NewConfigValidationError(path, errors.New("tolerance must not be negative"))
	}
	return nil
}

// Request builds the narrow phase request described by the config.
func (c *Config) Request() *narrowphase.Request {
	return &narrowphase.Request{
		EnableContactManifold: c.Query.EnableContactManifold,
		MaxContacts:           c.Query.MaxContacts,
		DistanceTolerance:     c.Query.DistanceTolerance,
		TouchingCounts:        c.Query.TouchingCounts,
		GJKMaxIterations:      c.GJK.MaxIterations,
		GJKTolerance:          c.GJK.Tolerance,
		EPAMaxIterations:      c.EPA.MaxIterations,
		EPATolerance:          c.EPA.Tolerance,
	}
}

// ContinuousRequest builds the advancement settings described by the config.
func (c *Config) ContinuousRequest() *narrowphase.ContinuousRequest {
	return &narrowphase.ContinuousRequest{MaxIterations: c.Continuous.MaxIterations, Tolerance: c.Continuous.Tolerance}
}

// FromMap decodes a config from an attribute map, such as one embedded in a larger document.
// Fields missing from the map keep their defaults.
func FromMap(attrs map[string]interface{}) (*Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
