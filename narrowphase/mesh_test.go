package narrowphase

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/fcl/bvh"
	"go.viam.com/fcl/geometry"
)

// cubeSoup returns a closed cube of side 2 centered on its origin.
func cubeSoup(t *testing.T, opts ...bvh.Option) *geometry.TriangleSoup {
	t.Helper()
	vertices := []r3.Vector{
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2},
		{4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4},
		{3, 7, 6}, {3, 6, 2},
		{0, 4, 7}, {0, 7, 3},
		{1, 2, 6}, {1, 6, 5},
	}
	soup, err := geometry.NewTriangleSoup(vertices, faces, "cube", opts...)
	test.That(t, err, test.ShouldBeNil)
	return soup
}

func TestMeshConvex(t *testing.T) {
	for _, vol := range []bvh.VolumeType{bvh.VolumeAABB, bvh.VolumeOBB, bvh.VolumeKDOP} {
		t.Run(vol.String(), func(t *testing.T) {
			soup := cubeSoup(t, bvh.WithVolume(vol), bvh.WithLeafSize(1))
			sphere := mustSphere(t, 0.5)

			raw, err := MeshConvex(soup, at(0, 0, 0), sphere, at(0, 0, 1.2), DefaultRequest())
			test.That(t, err, test.ShouldBeNil)
			contacts := Finalize(raw, DefaultRequest())
			test.That(t, len(contacts), test.ShouldEqual, 1)
			test.That(t, contacts[0].Depth, test.ShouldAlmostEqual, 0.3, 1e-6)
			vectorsClose(t, contacts[0].Normal, r3.Vector{Z: 1})
			test.That(t, contacts[0].PrimitiveA, test.ShouldBeIn, 2, 3)

			raw, err = MeshConvex(soup, at(0, 0, 0), sphere, at(0, 0, 1.8), DefaultRequest())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, raw, test.ShouldBeEmpty)

			d, err := MeshConvexDistance(soup, at(0, 0, 0), sphere, at(0, 0, 1.8), DefaultRequest())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, d.Distance, test.ShouldAlmostEqual, 0.3, 1e-6)
			test.That(t, d.NearestA.Z, test.ShouldAlmostEqual, 1, 1e-6)
			test.That(t, d.NearestB.Z, test.ShouldAlmostEqual, 1.3, 1e-6)
		})
	}
}

func TestMeshMesh(t *testing.T) {
	a, b := cubeSoup(t), cubeSoup(t)

	t.Run("overlapping", func(t *testing.T) {
		contacts, err := MeshMesh(a, at(0, 0, 0), b, at(1.5, 0.3, 0.2), manifold())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, contacts, test.ShouldNotBeEmpty)
		for _, c := range contacts {
			test.That(t, c.PrimitiveA, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, c.PrimitiveB, test.ShouldBeGreaterThanOrEqualTo, 0)
		}
	})

	t.Run("separated", func(t *testing.T) {
		contacts, err := MeshMesh(a, at(0, 0, 0), b, at(3, 0, 0), manifold())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, contacts, test.ShouldBeEmpty)

		d, err := MeshMeshDistance(a, at(0, 0, 0), b, at(3, 0, 0), DefaultRequest())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.Distance, test.ShouldAlmostEqual, 1, 1e-9)
		test.That(t, d.NearestB.X-d.NearestA.X, test.ShouldAlmostEqual, 1, 1e-9)
	})

	t.Run("distance when overlapping is not positive", func(t *testing.T) {
		d, err := MeshMeshDistance(a, at(0, 0, 0), b, at(1.5, 0.3, 0.2), DefaultRequest())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.Distance, test.ShouldBeLessThanOrEqualTo, 0)
	})
}

func TestMeshPlanar(t *testing.T) {
	soup := cubeSoup(t)
	ground := mustHalfspace(t, r3.Vector{Z: 1}, 0)

	t.Run("halfspace", func(t *testing.T) {
		contacts, err := MeshHalfspace(soup, at(0, 0, 0.9), ground, at(0, 0, 0), manifold())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(contacts), test.ShouldEqual, 4)
		for _, c := range contacts {
			test.That(t, c.Depth, test.ShouldAlmostEqual, 0.1, 1e-9)
			vectorsClose(t, c.Normal, r3.Vector{Z: -1})
		}

		d, err := MeshHalfspaceDistance(soup, at(0, 0, 3), ground, at(0, 0, 0), DefaultRequest())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.Distance, test.ShouldAlmostEqual, 2)
	})

	t.Run("plane", func(t *testing.T) {
		plane, err := geometry.NewPlane(r3.Vector{Z: 1}, 0, "")
		test.That(t, err, test.ShouldBeNil)

		raw, err := MeshPlane(soup, at(0, 0, 0.9), plane, at(0, 0, 0), DefaultRequest())
		test.That(t, err, test.ShouldBeNil)
		contacts := Finalize(raw, DefaultRequest())
		test.That(t, len(contacts), test.ShouldEqual, 1)
		test.That(t, contacts[0].Depth, test.ShouldAlmostEqual, 0.1, 1e-9)
		vectorsClose(t, contacts[0].Normal, r3.Vector{Z: -1})

		raw, err = MeshPlane(soup, at(0, 0, 1.5), plane, at(0, 0, 0), DefaultRequest())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, raw, test.ShouldBeEmpty)

		d, err := MeshPlaneDistance(soup, at(0, 0, -4), plane, at(0, 0, 0), DefaultRequest())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.Distance, test.ShouldAlmostEqual, 3)

		d, err = MeshPlaneDistance(soup, at(0, 0, 0.9), plane, at(0, 0, 0), DefaultRequest())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.Distance, test.ShouldAlmostEqual, -0.1)
	})
}
