package collision

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/narrowphase"
	"go.viam.com/fcl/spatialmath"
)

type collideFunc func(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, req *narrowphase.Request) ([]Contact, error)

type distanceFunc func(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, req *narrowphase.Request) (DistanceResult, error)

// collideRoute adapts a handler over concrete shape types to the dispatcher's signature.
func collideRoute[A, B geometry.Shape](
	f func(A, spatialmath.Pose, B, spatialmath.Pose, *narrowphase.Request) ([]Contact, error),
) collideFunc {
	return func(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, req *narrowphase.Request) ([]Contact, error) {
		sa, okA := a.(A)
		sb, okB := b.(B)
		if !okA || !okB {
			return nil, newUnsupportedPairError(a.Kind(), b.Kind())
		}
		return f(sa, pa, sb, pb, req)
	}
}

func distanceRoute[A, B geometry.Shape](
	f func(A, spatialmath.Pose, B, spatialmath.Pose, *narrowphase.Request) (DistanceResult, error),
) distanceFunc {
	return func(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, req *narrowphase.Request) (DistanceResult, error) {
		sa, okA := a.(A)
		sb, okB := b.(B)
		if !okA || !okB {
			return DistanceResult{}, newUnsupportedPairError(a.Kind(), b.Kind())
		}
		return f(sa, pa, sb, pb, req)
	}
}

// swapCollide runs a route registered for (b, a) on (a, b) and expresses its contacts from a.
func swapCollide(f collideFunc) collideFunc {
	return func(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, req *narrowphase.Request) ([]Contact, error) {
		contacts, err := f(b, pb, a, pa, req)
		return lo.Map(contacts, func(c Contact, _ int) Contact { return c.Flip() }), err
	}
}

func swapDistance(f distanceFunc) distanceFunc {
	return func(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, req *narrowphase.Request) (DistanceResult, error) {
		d, err := f(b, pb, a, pa, req)
		return d.Flip(), err
	}
}

type pairKey struct {
	a, b geometry.Kind
}

type route struct {
	collide  collideFunc
	distance distanceFunc
}

// dispatcher maps each ordered pair of kinds to its handlers. It is built once and never
// modified, so it may be shared freely.
type dispatcher struct {
	routes map[pairKey]route
}

// convexKinds are the kinds whose shapes implement geometry.Convex.
var convexKinds = lo.Filter(geometry.Kinds(), func(k geometry.Kind, _ int) bool { return k.IsConvex() })

func newDispatcher() *dispatcher {
	d := &dispatcher{routes: map[pairKey]route{}}

	d.register(geometry.KindSphere, geometry.KindSphere,
		collideRoute(narrowphase.SphereSphere), distanceRoute(narrowphase.SphereSphereDistance))
	d.register(geometry.KindSphere, geometry.KindCapsule,
		collideRoute(narrowphase.SphereCapsule), distanceRoute(narrowphase.SphereCapsuleDistance))
	d.register(geometry.KindCapsule, geometry.KindCapsule,
		collideRoute(narrowphase.CapsuleCapsule), distanceRoute(narrowphase.CapsuleCapsuleDistance))
	d.register(geometry.KindSphere, geometry.KindBox,
		collideRoute(narrowphase.SphereBox), distanceRoute(narrowphase.SphereBoxDistance))
	d.register(geometry.KindBox, geometry.KindBox,
		collideRoute(narrowphase.BoxBox), distanceRoute(narrowphase.ConvexConvexDistance))

	for _, k := range convexKinds {
		d.register(k, geometry.KindHalfspace,
			collideRoute(narrowphase.ConvexHalfspace), distanceRoute(narrowphase.ConvexHalfspaceDistance))
		d.register(k, geometry.KindPlane,
			collideRoute(narrowphase.ConvexPlane), distanceRoute(narrowphase.ConvexPlaneDistance))
		d.register(geometry.KindTriangleSoup, k,
			collideRoute(narrowphase.MeshConvex), distanceRoute(narrowphase.MeshConvexDistance))
	}

	d.register(geometry.KindTriangleSoup, geometry.KindTriangleSoup,
		collideRoute(narrowphase.MeshMesh), distanceRoute(narrowphase.MeshMeshDistance))
	d.register(geometry.KindTriangleSoup, geometry.KindHalfspace,
		collideRoute(narrowphase.MeshHalfspace), distanceRoute(narrowphase.MeshHalfspaceDistance))
	d.register(geometry.KindTriangleSoup, geometry.KindPlane,
		collideRoute(narrowphase.MeshPlane), distanceRoute(narrowphase.MeshPlaneDistance))

	d.register(geometry.KindHalfspace, geometry.KindHalfspace,
		collideRoute(narrowphase.HalfspaceHalfspace), distanceRoute(narrowphase.HalfspaceHalfspaceDistance))
	d.register(geometry.KindPlane, geometry.KindHalfspace,
		collideRoute(narrowphase.PlaneHalfspace), distanceRoute(narrowphase.PlaneHalfspaceDistance))
	d.register(geometry.KindPlane, geometry.KindPlane,
		collideRoute(narrowphase.PlanePlane), distanceRoute(narrowphase.PlanePlaneDistance))
	return d
}

func (d *dispatcher) register(a, b geometry.Kind, c collideFunc, dist distanceFunc) {
	d.routes[pairKey{a, b}] = route{collide: c, distance: dist}
}

// lookup finds the handlers for a pair: an exact registration, then the swapped one, then GJK
// and EPA for any two convex shapes.
func (d *dispatcher) lookup(a, b geometry.Kind) (route, error) {
	if r, ok := d.routes[pairKey{a, b}]; ok {
		return r, nil
	}
	if r, ok := d.routes[pairKey{b, a}]; ok {
		return route{collide: swapCollide(r.collide), distance: swapDistance(r.distance)}, nil
	}
	if a.IsConvex() && b.IsConvex() {
		return route{
			collide:  collideRoute(narrowphase.ConvexConvex),
			distance: distanceRoute(narrowphase.ConvexConvexDistance),
		}, nil
	}
	return route{}, newUnsupportedPairError(a, b)
}

func (d *dispatcher) collide(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, req *narrowphase.Request) ([]Contact, error) {
	r, err := d.lookup(a.Kind(), b.Kind())
	if err != nil {
		return nil, err
	}
	contacts, err := r.collide(a, pa, b, pb, req)
	if len(contacts) == 0 && req.DistanceTolerance > 0 {
		// nothing overlaps; look for a near miss within the tolerance band
		dist, derr := r.distance(a, pa, b, pb, req)
		if derr == nil && dist.Distance <= req.DistanceTolerance {
			contacts = []Contact{narrowphase.ToleranceContact(dist)}
		}
		if derr != nil && !errors.Is(derr, narrowphase.ErrNumericalFailure) {
			return nil, derr
		}
	}
	return narrowphase.Finalize(contacts, req), err
}

func (d *dispatcher) distance(a geometry.Shape, pa spatialmath.Pose, b geometry.Shape, pb spatialmath.Pose, req *narrowphase.Request) (DistanceResult, error) {
	r, err := d.lookup(a.Kind(), b.Kind())
	if err != nil {
		return DistanceResult{}, err
	}
	return r.distance(a, pa, b, pb, req)
}

// Route names an ordered pair of kinds with a dedicated handler.
type Route struct {
	A, B geometry.Kind
}

// Routes lists the pairs of kinds with a dedicated handler. Every other pair of convex kinds is
// handled by GJK and EPA, and reversed pairs reuse the handler of their mirror image.
func Routes() []Route {
	routes := lo.MapToSlice(defaultDispatcher.routes, func(k pairKey, _ route) Route { return Route{A: k.a, B: k.b} })
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].A != routes[j].A {
			return routes[i].A < routes[j].A
		}
		return routes[i].B < routes[j].B
	})
	return routes
}

var defaultDispatcher = newDispatcher()
