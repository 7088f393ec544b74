// Package narrowphase computes exact contacts, distances and times of contact between pairs of
// placed shapes. Every function in this package is pure: it reads its shapes and poses and
// allocates its own scratch state, so any number of queries may run concurrently.
package narrowphase

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrNumericalFailure is returned when an iterative method fails to converge. Results returned
// alongside it are conservative best estimates.
var ErrNumericalFailure = errors.New("numerical failure")

// touchEpsilon is the band around zero separation within which shapes are considered touching.
const touchEpsilon = 1e-9

// Default iteration limits and tolerances.
const (
	DefaultGJKMaxIterations = 128
	DefaultGJKTolerance     = 1e-8
	DefaultEPAMaxIterations = 255
	DefaultEPATolerance     = 1e-8
)

// Request configures a single query.
type Request struct {
	// EnableContactManifold reports every contact point of a pair instead of only the deepest.
	EnableContactManifold bool
	// MaxContacts caps the reported contacts when the manifold is enabled. Zero means no cap.
	MaxContacts int
	// DistanceTolerance reports shapes separated by at most this much as contacts with negative
	// depth.
	DistanceTolerance float64
	// TouchingCounts reports shapes at exactly zero separation as contacts.
	TouchingCounts bool

	GJKMaxIterations int
	GJKTolerance     float64
	EPAMaxIterations int
	EPATolerance     float64
}

// DefaultRequest returns the request used when none is given: the deepest contact only, strict
// overlap, default solver settings.
func DefaultRequest() *Request {
	return &Request{
		GJKMaxIterations: DefaultGJKMaxIterations,
		GJKTolerance:     DefaultGJKTolerance,
		EPAMaxIterations: DefaultEPAMaxIterations,
		EPATolerance:     DefaultEPATolerance,
	}
}

func (r *Request) gjkSettings() (int, float64) {
	if r == nil {
		return DefaultGJKMaxIterations, DefaultGJKTolerance
	}
	iters, tol := r.GJKMaxIterations, r.GJKTolerance
	if iters <= 0 {
		iters = DefaultGJKMaxIterations
	}
	if tol <= 0 {
		tol = DefaultGJKTolerance
	}
	return iters, tol
}

func (r *Request) epaSettings() (int, float64) {
	if r == nil {
		return DefaultEPAMaxIterations, DefaultEPATolerance
	}
	iters, tol := r.EPAMaxIterations, r.EPATolerance
	if iters <= 0 {
		iters = DefaultEPAMaxIterations
	}
	if tol <= 0 {
		tol = DefaultEPATolerance
	}
	return iters, tol
}

// Contact is one point of contact between shape A and shape B, in world coordinates.
type Contact struct {
	Point r3.Vector
	// Normal is the unit direction along which B must move to separate from A.
	Normal r3.Vector
	// Depth is positive for overlap, zero for touching, and negative for separated shapes
	// reported because of a distance tolerance.
	Depth float64
	// PrimitiveA and PrimitiveB are triangle indices for triangle soups, otherwise -1.
	PrimitiveA int
	PrimitiveB int
}

// Flip returns the same contact seen from B.
func (c Contact) Flip() Contact {
	return Contact{
		Point:      c.Point,
		Normal:     c.Normal.Mul(-1),
		Depth:      c.Depth,
		PrimitiveA: c.PrimitiveB,
		PrimitiveB: c.PrimitiveA,
	}
}

// DistanceResult is the separation between two shapes. Negative distances are penetration depths.
type DistanceResult struct {
	Distance float64
	NearestA r3.Vector
	NearestB r3.Vector
	// PrimitiveA and PrimitiveB are triangle indices for triangle soups, otherwise -1.
	PrimitiveA int
	PrimitiveB int
}

// Flip returns the same result seen from B.
func (d DistanceResult) Flip() DistanceResult {
	return DistanceResult{
		Distance:   d.Distance,
		NearestA:   d.NearestB,
		NearestB:   d.NearestA,
		PrimitiveA: d.PrimitiveB,
		PrimitiveB: d.PrimitiveA,
	}
}

// Normal returns the unit direction from NearestA to NearestB, or a zero vector when they
// coincide.
func (d DistanceResult) Normal() r3.Vector {
	diff := d.NearestB.Sub(d.NearestA)
	n := diff.Norm()
	if n < 1e-12 {
		return r3.Vector{}
	}
	if d.Distance < 0 {
		// the nearest points of penetrating shapes are the deepest points, which cross over
		return diff.Mul(-1 / n)
	}
	return diff.Mul(1 / n)
}

// ToleranceContact converts a small positive separation into a contact with negative depth.
func ToleranceContact(d DistanceResult) Contact {
	return Contact{
		Point:      d.NearestA.Add(d.NearestB).Mul(0.5),
		Normal:     d.Normal(),
		Depth:      -d.Distance,
		PrimitiveA: d.PrimitiveA,
		PrimitiveB: d.PrimitiveB,
	}
}

// Finalize applies the touching and tolerance policy of req to raw contacts, orders them by depth,
// and trims them to the requested count.
func Finalize(contacts []Contact, req *Request) []Contact {
	if req == nil {
		req = DefaultRequest()
	}
	out := contacts[:0]
	for _, c := range contacts {
		if math.Abs(c.Depth) <= touchEpsilon {
			c.Depth = 0
		}
		switch {
		case c.Depth > 0:
		case c.Depth == 0 && req.TouchingCounts:
		case req.DistanceTolerance > 0 && -c.Depth <= req.DistanceTolerance:
		default:
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth > out[j].Depth
		}
		if out[i].PrimitiveA != out[j].PrimitiveA {
			return out[i].PrimitiveA < out[j].PrimitiveA
		}
		return out[i].PrimitiveB < out[j].PrimitiveB
	})
	switch {
	case len(out) == 0:
		return nil
	case !req.EnableContactManifold:
		return out[:1]
	case req.MaxContacts > 0 && len(out) > req.MaxContacts:
		return out[:req.MaxContacts]
	}
	return out
}

func unit(v r3.Vector) r3.Vector {
	n := v.Norm()
	if n < 1e-12 {
		return r3.Vector{}
	}
	return v.Mul(1 / n)
}

// anyPerpendicular returns some unit vector perpendicular to v.
func anyPerpendicular(v r3.Vector) r3.Vector {
	axis := r3.Vector{X: 1}
	if math.Abs(v.X) > math.Abs(v.Y) && math.Abs(v.X) > math.Abs(v.Z) {
		axis = r3.Vector{Y: 1}
	}
	return unit(v.Cross(axis))
}
