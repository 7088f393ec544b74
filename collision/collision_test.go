package collision

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/fcl/broadphase"
	"go.viam.com/fcl/config"
	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/logging"
	"go.viam.com/fcl/spatialmath"
)

func at(x, y, z float64) spatialmath.Pose {
	return spatialmath.NewPoseFromPoint(r3.Vector{X: x, Y: y, Z: z})
}

func cube() ([]r3.Vector, [][3]int) {
	return []r3.Vector{
			{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
			{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
		}, [][3]int{
			{0, 2, 1}, {0, 3, 2},
			{4, 5, 6}, {4, 6, 7},
			{0, 1, 5}, {0, 5, 4},
			{3, 7, 6}, {3, 6, 2},
			{0, 4, 7}, {0, 7, 3},
			{1, 2, 6}, {1, 6, 5},
		}
}

// unitShapes returns bounded shapes whose support along +x and -x is exactly 1 over the whole
// band |y|, |z| <= 1, so any two of them placed apart along x have the same gap.
func unitShapes(t *testing.T) []geometry.Shape {
	t.Helper()
	verts, faces := cube()
	var shapes []geometry.Shape
	for _, make := range []func() (geometry.Shape, error){
		func() (geometry.Shape, error) { return geometry.NewSphere(1, "sphere") },
		func() (geometry.Shape, error) { return geometry.NewBox(r3.Vector{X: 2, Y: 2, Z: 2}, "box") },
		func() (geometry.Shape, error) { return geometry.NewCapsule(1, 3, "capsule") },
		func() (geometry.Shape, error) { return geometry.NewCylinder(1, 2, "cylinder") },
		func() (geometry.Shape, error) { return geometry.NewConvexMesh(verts, faces, "convex") },
		func() (geometry.Shape, error) { return geometry.NewTriangleSoup(verts, faces, "soup") },
	} {
		s, err := make()
		test.That(t, err, test.ShouldBeNil)
		shapes = append(shapes, s)
	}
	return shapes
}

func TestEveryPairHasARoute(t *testing.T) {
	for _, a := range geometry.Kinds() {
		for _, b := range geometry.Kinds() {
			_, err := defaultDispatcher.lookup(a, b)
			test.That(t, err, test.ShouldBeNil)
		}
	}
	routes := Routes()
	test.That(t, routes, test.ShouldContain, Route{A: geometry.KindSphere, B: geometry.KindSphere})
	test.That(t, routes, test.ShouldContain, Route{A: geometry.KindTriangleSoup, B: geometry.KindBox})
	test.That(t, routes, test.ShouldNotContain, Route{A: geometry.KindBox, B: geometry.KindTriangleSoup})
}

func TestSpheres(t *testing.T) {
	a, err := geometry.NewSphere(1, "")
	test.That(t, err, test.ShouldBeNil)
	b, err := geometry.NewSphere(1, "")
	test.That(t, err, test.ShouldBeNil)

	contacts, err := Collide(a, at(0, 0, 0), b, at(1.5, 0, 0), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(contacts), test.ShouldEqual, 1)
	test.That(t, contacts[0].Depth, test.ShouldAlmostEqual, 0.5)
	test.That(t, math.Abs(contacts[0].Normal.X), test.ShouldAlmostEqual, 1)

	contacts, err = Collide(a, at(0, 0, 0), b, at(3, 0, 0), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, contacts, test.ShouldBeEmpty)
	d, err := Distance(a, at(0, 0, 0), b, at(3, 0, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Distance, test.ShouldAlmostEqual, 1)

	res, err := ContinuousCollide(a, Motion{Start: at(-5, 0, 0), End: at(5, 0, 0)}, b, Motion{Start: at(0, 0, 0), End: at(0, 0, 0)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Collides, test.ShouldBeTrue)
	test.That(t, res.TimeOfContact, test.ShouldAlmostEqual, 0.3, 1e-4)
}

func TestPositiveGap(t *testing.T) {
	const gap = 0.5
	shapes := unitShapes(t)
	for _, a := range shapes {
		for _, b := range shapes {
			t.Run(fmt.Sprintf("%s_%s", a.Label(), b.Label()), func(t *testing.T) {
				pb := at(2+gap, 0, 0)
				contacts, err := Collide(a, at(0, 0, 0), b, pb, nil)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, contacts, test.ShouldBeEmpty)

				d, err := Distance(a, at(0, 0, 0), b, pb)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, d.Distance, test.ShouldAlmostEqual, gap, 1e-6)
			})
		}
	}
}

func TestSymmetry(t *testing.T) {
	shapes := unitShapes(t)
	pb := spatialmath.NewPose(r3.Vector{X: 1.6, Y: 0.3, Z: 0.2}, &spatialmath.R4AA{Theta: 0.3, RX: 1, RY: 1, RZ: 0})
	for _, a := range shapes {
		for _, b := range shapes {
			t.Run(fmt.Sprintf("%s_%s", a.Label(), b.Label()), func(t *testing.T) {
				ab, err := Collide(a, at(0, 0, 0), b, pb, nil)
				test.That(t, err, test.ShouldBeNil)
				ba, err := Collide(b, pb, a, at(0, 0, 0), nil)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, len(ab), test.ShouldEqual, len(ba))
				test.That(t, len(ab), test.ShouldEqual, 1)
				test.That(t, ab[0].Depth, test.ShouldAlmostEqual, ba[0].Depth, 1e-4)
				if a.Kind() == geometry.KindTriangleSoup || b.Kind() == geometry.KindTriangleSoup {
					// soups may tie between several triangle pairs of equal depth
					return
				}
				test.That(t, spatialmath.R3VectorAlmostEqual(ab[0].Normal, ba[0].Normal.Mul(-1), 1e-4), test.ShouldBeTrue)
			})
		}
	}
}

func TestQueryPolicy(t *testing.T) {
	a, err := geometry.NewSphere(1, "")
	test.That(t, err, test.ShouldBeNil)

	t.Run("touching", func(t *testing.T) {
		contacts, err := Collide(a, at(0, 0, 0), a, at(2, 0, 0), nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, contacts, test.ShouldBeEmpty)

		contacts, err = Collide(a, at(0, 0, 0), a, at(2, 0, 0), &QueryOptions{TouchingCounts: true})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(contacts), test.ShouldEqual, 1)
		test.That(t, contacts[0].Depth, test.ShouldEqual, 0)
	})

	t.Run("touching every pair", func(t *testing.T) {
		shapes := unitShapes(t)
		for _, sa := range shapes {
			for _, sb := range shapes {
				t.Run(sa.Label()+"-"+sb.Label(), func(t *testing.T) {
					contacts, err := Collide(sa, at(0, 0, 0), sb, at(2, 0, 0), nil)
					test.That(t, err, test.ShouldBeNil)
					test.That(t, contacts, test.ShouldBeEmpty)

					contacts, err = Collide(sa, at(0, 0, 0), sb, at(2, 0, 0), &QueryOptions{TouchingCounts: true})
					test.That(t, err, test.ShouldBeNil)
					test.That(t, len(contacts), test.ShouldEqual, 1)
					test.That(t, contacts[0].Depth, test.ShouldEqual, 0)
				})
			}
		}
	})

	t.Run("shallow box and cylinder", func(t *testing.T) {
		box, err := geometry.NewBox(r3.Vector{X: 2, Y: 2, Z: 2}, "")
		test.That(t, err, test.ShouldBeNil)
		cyl, err := geometry.NewCylinder(1, 2, "")
		test.That(t, err, test.ShouldBeNil)
		for _, pen := range []float64{1e-7, 1e-5} {
			contacts, err := Collide(box, at(0, 0, 0), cyl, at(2-pen, 0, 0), nil)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(contacts), test.ShouldEqual, 1)
			test.That(t, contacts[0].Depth, test.ShouldAlmostEqual, pen, 1e-9)

			contacts, err = Collide(cyl, at(0, 0, 0), box, at(2-pen, 0, 0), nil)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(contacts), test.ShouldEqual, 1)
		}
		d, err := Distance(box, at(0, 0, 0), cyl, at(2-1e-8, 0, 0))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.Distance, test.ShouldAlmostEqual, -1e-8, 1e-9)
		d, err = Distance(box, at(0, 0, 0), cyl, at(2+1e-5, 0, 0))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.Distance, test.ShouldAlmostEqual, 1e-5, 1e-9)
	})

	t.Run("tolerance", func(t *testing.T) {
		opts := &QueryOptions{DistanceTolerance: 0.1}
		contacts, err := Collide(a, at(0, 0, 0), a, at(2.05, 0, 0), opts)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(contacts), test.ShouldEqual, 1)
		test.That(t, contacts[0].Depth, test.ShouldAlmostEqual, -0.05)
		test.That(t, contacts[0].Normal.X, test.ShouldAlmostEqual, 1)

		contacts, err = Collide(a, at(0, 0, 0), a, at(2.2, 0, 0), opts)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, contacts, test.ShouldBeEmpty)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := Collide(a, nil, a, at(0, 0, 0), nil)
		test.That(t, errors.Is(err, ErrInvalidQuery), test.ShouldBeTrue)
		_, err = Distance(nil, at(0, 0, 0), a, at(0, 0, 0))
		test.That(t, errors.Is(err, ErrInvalidQuery), test.ShouldBeTrue)
		_, err = Collide(a, at(math.NaN(), 0, 0), a, at(0, 0, 0), nil)
		test.That(t, errors.Is(err, ErrInvalidQuery), test.ShouldBeTrue)
	})
}

func TestObject(t *testing.T) {
	box, err := geometry.NewBox(r3.Vector{X: 2, Y: 4, Z: 6}, "")
	test.That(t, err, test.ShouldBeNil)
	a := NewObject(box, at(1, 0, 0))
	b := NewObject(box, nil)
	test.That(t, a.ID(), test.ShouldNotEqual, b.ID())
	test.That(t, spatialmath.R3VectorAlmostEqual(a.AABB().Min, r3.Vector{X: 0, Y: -2, Z: -3}, 1e-9), test.ShouldBeTrue)
	test.That(t, b.AABB().IsEmpty(), test.ShouldBeTrue)

	b.SetPose(spatialmath.NewPose(r3.Vector{}, &spatialmath.R4AA{Theta: math.Pi / 2, RZ: 1}))
	test.That(t, spatialmath.R3VectorAlmostEqual(b.AABB().Max, r3.Vector{X: 2, Y: 1, Z: 3}, 1e-9), test.ShouldBeTrue)

	b.SetUserData("crate")
	test.That(t, b.UserData(), test.ShouldEqual, "crate")
}

func TestEngine(t *testing.T) {
	for _, name := range []string{broadphase.DynamicTreeName, broadphase.SweepAndPruneName, broadphase.BruteForceName} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.BroadPhase = name
			logger, logs := logging.NewObservedTestLogger(t)
			engine, err := NewEngine(cfg, logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, logs.FilterMessage("collision engine created").Len(), test.ShouldEqual, 1)

			sphere, err := geometry.NewSphere(1, "")
			test.That(t, err, test.ShouldBeNil)
			ground, err := geometry.NewHalfspace(r3.Vector{Z: 1}, 0, "")
			test.That(t, err, test.ShouldBeNil)

			a := NewObject(sphere, at(0, 0, 0.5))
			b := NewObject(sphere, at(1.5, 0, 0.5))
			c := NewObject(sphere, at(10, 0, 5))
			floor := NewObject(ground, at(0, 0, 0))
			test.That(t, engine.Insert(a, b, c, floor), test.ShouldBeNil)
			test.That(t, engine.Len(), test.ShouldEqual, 4)
			test.That(t, engine.Insert(a), test.ShouldNotBeNil)

			results, err := engine.CollideAll(context.Background(), nil)
			test.That(t, err, test.ShouldBeNil)
			collided := map[[2]uint64]bool{}
			for _, r := range results {
				collided[[2]uint64{r.A.ID(), r.B.ID()}] = true
			}
			test.That(t, collided, test.ShouldResemble, map[[2]uint64]bool{
				{a.ID(), b.ID()}:     true,
				{a.ID(), floor.ID()}: true,
				{b.ID(), floor.ID()}: true,
			})

			test.That(t, engine.SetPose(c, at(10, 0, 0.9)), test.ShouldBeNil)
			results, err = engine.CollideAll(context.Background(), &QueryOptions{EnableContactManifold: true})
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(results), test.ShouldEqual, 4)

			distances, err := engine.DistanceAll(context.Background())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(distances), test.ShouldEqual, 6)
			for _, d := range distances {
				if d.A == a && d.B == c {
					test.That(t, d.Distance.Distance, test.ShouldAlmostEqual, math.Hypot(10, 0.4)-2, 1e-9)
				}
			}

			for _, o := range []*Object{a, b, c, floor} {
				test.That(t, engine.Remove(o), test.ShouldBeNil)
			}
			test.That(t, engine.OverlappingPairs(), test.ShouldBeEmpty)
			test.That(t, engine.Remove(a), test.ShouldNotBeNil)

			stats := engine.Stats()
			test.That(t, stats.Queries, test.ShouldBeGreaterThanOrEqualTo, uint64(13))
			test.That(t, stats.Contacts, test.ShouldBeGreaterThan, uint64(0))
			test.That(t, stats.NumericalFailures, test.ShouldEqual, uint64(0))
		})
	}
}

func TestEngineMissingPose(t *testing.T) {
	engine, err := NewEngine(nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	sphere, err := geometry.NewSphere(1, "")
	test.That(t, err, test.ShouldBeNil)

	floating := NewObject(sphere, nil)
	placed := NewObject(sphere, at(0, 0, 0))
	test.That(t, errors.Is(engine.Insert(floating), ErrInvalidQuery), test.ShouldBeTrue)
	_, err = engine.Collide(floating, placed, nil)
	test.That(t, errors.Is(err, ErrInvalidQuery), test.ShouldBeTrue)
	_, err = engine.Distance(placed, floating)
	test.That(t, errors.Is(err, ErrInvalidQuery), test.ShouldBeTrue)
	_, err = engine.Collide(nil, placed, nil)
	test.That(t, errors.Is(err, ErrInvalidQuery), test.ShouldBeTrue)

	res, err := engine.ContinuousCollide(placed, Motion{Start: at(0, 0, 0), End: at(0, 0, 0)}, floating, Motion{Start: at(5, 0, 0), End: at(0, 0, 0)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Collides, test.ShouldBeTrue)
	test.That(t, res.TimeOfContact, test.ShouldAlmostEqual, 0.6, 1e-4)
}

func TestEngineObjectMovedDirectly(t *testing.T) {
	for _, name := range []string{broadphase.DynamicTreeName, broadphase.SweepAndPruneName, broadphase.BruteForceName} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.BroadPhase = name
			engine, err := NewEngine(cfg, logging.NewTestLogger(t))
			test.That(t, err, test.ShouldBeNil)
			sphere, err := geometry.NewSphere(1, "")
			test.That(t, err, test.ShouldBeNil)

			a := NewObject(sphere, at(0, 0, 0))
			b := NewObject(sphere, at(10, 0, 0))
			test.That(t, engine.Insert(a, b), test.ShouldBeNil)
			test.That(t, engine.OverlappingPairs(), test.ShouldBeEmpty)

			b.SetPose(at(1, 0, 0))
			pairs := engine.OverlappingPairs()
			test.That(t, len(pairs), test.ShouldEqual, 1)
			test.That(t, pairs[0].B, test.ShouldEqual, b)
			results, err := engine.CollideAll(context.Background(), nil)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(results), test.ShouldEqual, 1)

			b.SetPose(at(50, 0, 0))
			test.That(t, engine.OverlappingPairs(), test.ShouldBeEmpty)
			found := engine.Query(spatialmath.NewAABBFromCenter(r3.Vector{X: 50}, r3.Vector{X: 1, Y: 1, Z: 1}))
			test.That(t, found, test.ShouldResemble, []*Object{b})
		})
	}
}

func TestLoadScene(t *testing.T) {
	scene, err := config.SceneFromReader("", strings.NewReader(`{
		engine: {broad_phase: "sweep_and_prune", bvh: {volume: "kdop"}},
		objects: [
			{name: "ball", geometry: {type: "sphere", r: 1}, pose: {translation: {x: 0}}},
			{name: "crate", geometry: {type: "box", x: 2, y: 2, z: 2}, pose: {translation: {x: 1.5}}},
			{name: "far", geometry: {type: "capsule", r: 0.5, l: 2}, pose: {translation: {x: 20}}, end_pose: {translation: {x: 0}}},
		],
	}`))
	test.That(t, err, test.ShouldBeNil)

	engine, objects, err := LoadScene(scene, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, engine.Config().BroadPhase, test.ShouldEqual, broadphase.SweepAndPruneName)
	test.That(t, len(objects), test.ShouldEqual, 3)
	test.That(t, objects[0].Object.UserData(), test.ShouldEqual, "ball")

	pairs := engine.OverlappingPairs()
	test.That(t, len(pairs), test.ShouldEqual, 1)
	names := []interface{}{pairs[0].A.UserData(), pairs[0].B.UserData()}
	test.That(t, names, test.ShouldContain, "ball")
	test.That(t, names, test.ShouldContain, "crate")

	far := objects[2]
	res, err := engine.ContinuousCollide(far.Object, far.Motion, objects[0].Object, objects[0].Motion)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Collides, test.ShouldBeTrue)
	test.That(t, res.TimeOfContact, test.ShouldAlmostEqual, 0.925, 1e-3)
}
