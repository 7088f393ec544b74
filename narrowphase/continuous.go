package narrowphase

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
)

// Default settings for continuous collision.
const (
	DefaultContinuousMaxIterations = 64
	DefaultContinuousTolerance     = 1e-4
)

// Motion is a rigid motion over the unit interval: translation is linear and rotation is
// spherical between Start and End.
type Motion struct {
	Start spatialmath.Pose
	End   spatialmath.Pose
}

// NewStaticMotion returns a motion that stays at p.
func NewStaticMotion(p spatialmath.Pose) Motion {
	return Motion{Start: p, End: p}
}

// At returns the pose at time t in [0, 1].
func (m Motion) At(t float64) spatialmath.Pose {
	return spatialmath.Interpolate(m.Start, m.End, t)
}

// ContinuousRequest configures conservative advancement.
type ContinuousRequest struct {
	MaxIterations int
	// Tolerance is the separation at which the shapes are considered to be in contact.
	Tolerance float64
}

// DefaultContinuousRequest returns the default advancement settings.
func DefaultContinuousRequest() *ContinuousRequest {
	return &ContinuousRequest{MaxIterations: DefaultContinuousMaxIterations, Tolerance: DefaultContinuousTolerance}
}

// ContinuousResult is the outcome of a swept query. When Collides is false TimeOfContact is 1 and
// the poses are the end poses.
type ContinuousResult struct {
	Collides      bool
	TimeOfContact float64
	PoseA         spatialmath.Pose
	PoseB         spatialmath.Pose
	Iterations    int
}

// DistanceFunc measures the signed distance between two fixed shapes at the given poses.
type DistanceFunc func(pa, pb spatialmath.Pose) (DistanceResult, error)

// Continuous finds the first time at which a moving along ma touches b moving along mb. Each step
// advances time by the current distance over an upper bound on how fast any point of either shape
// can approach the other, so the shapes are never stepped through each other.
func Continuous(a geometry.Shape, ma Motion, b geometry.Shape, mb Motion, dist DistanceFunc, req *ContinuousRequest) (ContinuousResult, error) {
	if req == nil {
		req = DefaultContinuousRequest()
	}
	maxIter, tol := req.MaxIterations, req.Tolerance
	if maxIter <= 0 {
		maxIter = DefaultContinuousMaxIterations
	}
	if tol <= 0 {
		tol = DefaultContinuousTolerance
	}

	moveA := ma.End.Point().Sub(ma.Start.Point())
	moveB := mb.End.Point().Sub(mb.Start.Point())
	relative := moveB.Sub(moveA)
	_, angleA := spatialmath.PoseDelta(ma.Start, ma.End)
	_, angleB := spatialmath.PoseDelta(mb.Start, mb.End)
	spin := rotationBound(angleA, a.BoundingRadius()) + rotationBound(angleB, b.BoundingRadius())
	// Only along the nearest normal when distance is convex in t. Against a soup or a plane another
	// feature than the nearest one may lie ahead, so the full speed bounds the approach.
	directional := alongNormal(a.Kind()) && alongNormal(b.Kind())

	t := 0.0
	for i := 1; i <= maxIter; i++ {
		pa, pb := ma.At(t), mb.At(t)
		d, err := dist(pa, pb)
		if err != nil && !errors.Is(err, ErrNumericalFailure) {
			return ContinuousResult{}, err
		}
		if d.Distance <= tol {
			return ContinuousResult{Collides: true, TimeOfContact: t, PoseA: pa, PoseB: pb, Iterations: i}, nil
		}

		var step float64
		switch n := d.Normal(); {
		case math.IsInf(spin, 1):
			// an unbounded shape is turning; fall back to uniform steps
			step = 1 / float64(maxIter)
		case !directional || n.Norm2() == 0:
			step = d.Distance / (relative.Norm() + spin)
		default:
			step = d.Distance / (math.Abs(relative.Dot(n)) + spin)
		}
		if math.IsInf(step, 1) || math.IsNaN(step) {
			// nothing approaches: either nothing moves, or two convex shapes slide past each other
			break
		}
		t += step
		if t > 1 {
			break
		}
		if i == maxIter {
			return ContinuousResult{TimeOfContact: t - step, PoseA: ma.At(t - step), PoseB: mb.At(t - step), Iterations: i},
				errors.Wrapf(ErrNumericalFailure, "conservative advancement did not converge in %d iterations", maxIter)
		}
	}
	return ContinuousResult{TimeOfContact: 1, PoseA: ma.End, PoseB: mb.End}, nil
}

func alongNormal(k geometry.Kind) bool {
	return k != geometry.KindTriangleSoup && k != geometry.KindPlane
}

// rotationBound is the farthest any point of a shape with the given bounding radius travels while
// turning through angle.
func rotationBound(angle, radius float64) float64 {
	if angle == 0 {
		return 0
	}
	return angle * radius
}
