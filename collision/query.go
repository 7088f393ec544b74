package collision

import (
	"github.com/pkg/errors"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/narrowphase"
	"go.viam.com/fcl/spatialmath"
)

func checkShapes(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose) error {
	if a == nil || b == nil {
		return errors.Wrap(ErrInvalidQuery, "shape is nil")
	}
	if pa == nil || pb == nil {
		return errors.Wrap(ErrInvalidQuery, "pose is nil")
	}
	if !spatialmath.PoseIsFinite(pa) || !spatialmath.PoseIsFinite(pb) {
		return errors.Wrap(ErrInvalidQuery, "pose is not finite")
	}
	return nil
}

// Collide reports the contacts between two shapes at the given poses, using the default solver
// settings. A nil opts uses DefaultQueryOptions.
func Collide(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, opts *QueryOptions) ([]Contact, error) {
	if err := checkShapes(a, pa, b, pb); err != nil {
		return nil, err
	}
	return defaultDispatcher.collide(a, pa, b, pb, opts.request(narrowphase.DefaultRequest()))
}

// Distance returns the signed distance between two shapes at the given poses. Overlapping shapes
// have a negative distance whose magnitude is the penetration depth.
func Distance(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose) (DistanceResult, error) {
	if err := checkShapes(a, pa, b, pb); err != nil {
		return DistanceResult{}, err
	}
	return defaultDispatcher.distance(a, pa, b, pb, narrowphase.DefaultRequest())
}

// ContinuousCollide finds the first time at which a moving along ma touches b moving along mb.
func ContinuousCollide(a geometry.Shape, ma Motion, b geometry.Shape, mb Motion) (ContinuousResult, error) {
	return continuous(defaultDispatcher, a, ma, b, mb, narrowphase.DefaultRequest(), narrowphase.DefaultContinuousRequest())
}

func continuous(
	d *dispatcher,
	a geometry.Shape, ma Motion,
	b geometry.Shape, mb Motion,
	req *narrowphase.Request, creq *narrowphase.ContinuousRequest,
) (ContinuousResult, error) {
	if err := checkShapes(a, ma.Start, b, mb.Start); err != nil {
		return ContinuousResult{}, err
	}
	if err := checkShapes(a, ma.End, b, mb.End); err != nil {
		return ContinuousResult{}, err
	}
	r, err := d.lookup(a.Kind(), b.Kind())
	if err != nil {
		return ContinuousResult{}, err
	}
	dist := func(pa, pb spatialmath.Pose) (DistanceResult, error) {
		return r.distance(a, pa, b, pb, req)
	}
	return narrowphase.Continuous(a, ma, b, mb, dist, creq)
}
