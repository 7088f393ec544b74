// Package collision is the public face of the engine. It places shapes in the world as objects,
// routes each pair of shapes to the narrow phase handler for their kinds, and runs whole scenes
// through a broad phase followed by parallel narrow phase queries.
package collision

import (
	"github.com/pkg/errors"

	"go.viam.com/fcl/bvh"
	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/narrowphase"
)

var (
	// ErrInvalidGeometry is returned for shapes built with invalid parameters.
	ErrInvalidGeometry = geometry.ErrInvalidGeometry
	// ErrInvalidQuery is returned for queries that cannot be answered, such as one on an object
	// with no pose.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNumericalFailure is returned when an iterative solver does not converge. The result
	// returned with it is a conservative estimate.
	ErrNumericalFailure = narrowphase.ErrNumericalFailure
	// ErrResourceExhausted is returned when a mesh exceeds the configured primitive budget.
	ErrResourceExhausted = bvh.ErrResourceExhausted
)

// Contact is one point of contact between two objects. Its normal points from the first object
// to the second.
type Contact = narrowphase.Contact

// DistanceResult is the signed distance between two objects and their nearest points.
type DistanceResult = narrowphase.DistanceResult

// Motion is a rigid motion over the unit time interval.
type Motion = narrowphase.Motion

// ContinuousResult is the outcome of a swept query.
type ContinuousResult = narrowphase.ContinuousResult

func newMissingPoseError(o *Object) error {
	return errors.Wrapf(ErrInvalidQuery, "object %d (%s) has no pose", o.ID(), o.Shape().Kind())
}

func newNilObjectError() error {
	return errors.Wrap(ErrInvalidQuery, "object is nil")
}

func newUnsupportedPairError(a, b geometry.Kind) error {
	return errors.Wrapf(ErrInvalidQuery, "no collision route between %s and %s", a, b)
}

// QueryOptions selects what a collide query reports.
type QueryOptions struct {
	// EnableContactManifold reports every contact point instead of only the deepest.
	EnableContactManifold bool
	// MaxContacts caps the reported contacts when the manifold is enabled. Zero means no cap.
	MaxContacts int
	// DistanceTolerance reports objects separated by at most this much as colliding, with a
	// negative depth.
	DistanceTolerance float64
	// TouchingCounts reports objects at exactly zero separation as colliding.
	TouchingCounts bool
}

// DefaultQueryOptions reports the single deepest contact of strictly overlapping objects.
func DefaultQueryOptions() *QueryOptions {
	return &QueryOptions{}
}

// request merges the options into a base request carrying the solver settings.
func (o *QueryOptions) request(base *narrowphase.Request) *narrowphase.Request {
	req := *base
	if o != nil {
		req.EnableContactManifold = o.EnableContactManifold
		req.MaxContacts = o.MaxContacts
		req.DistanceTolerance = o.DistanceTolerance
		req.TouchingCounts = o.TouchingCounts
	}
	return &req
}
