package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/fcl/bvh"
	"go.viam.com/fcl/spatialmath"
)

// unitCube returns the vertices and outward wound faces of a cube of side 2 centered on the origin.
func unitCube() ([]r3.Vector, [][3]int) {
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
	return vertices, faces
}

func TestConstructorValidation(t *testing.T) {
	verts, faces := unitCube()
	for _, tc := range []struct {
		name string
		make func() error
		ok   bool
	}{
		{"sphere", func() error { _, err := NewSphere(1, ""); return err }, true},
		{"sphere zero radius", func() error { _, err := NewSphere(0, ""); return err }, false},
		{"sphere nan radius", func() error { _, err := NewSphere(math.NaN(), ""); return err }, false},
		{"box", func() error { _, err := NewBox(r3.Vector{X: 1, Y: 2, Z: 3}, ""); return err }, true},
		{"box zero size", func() error { _, err := NewBox(r3.Vector{}, ""); return err }, true},
		{"box negative", func() error { _, err := NewBox(r3.Vector{X: 1, Y: -1, Z: 1}, ""); return err }, false},
		{"capsule", func() error { _, err := NewCapsule(1, 4, ""); return err }, true},
		{"capsule sphere-like", func() error { _, err := NewCapsule(1, 2, ""); return err }, true},
		{"capsule too short", func() error { _, err := NewCapsule(1, 1.5, ""); return err }, false},
		{"cylinder", func() error { _, err := NewCylinder(1, 1, ""); return err }, true},
		{"cylinder flat", func() error { _, err := NewCylinder(1, 0, ""); return err }, false},
		{"cone", func() error { _, err := NewCone(1, 2, ""); return err }, true},
		{"cone negative", func() error { _, err := NewCone(-1, 2, ""); return err }, false},
		{"convex mesh", func() error { _, err := NewConvexMesh(verts, faces, ""); return err }, true},
		{"convex mesh no faces", func() error { _, err := NewConvexMesh(verts, nil, ""); return err }, true},
		{"convex mesh empty", func() error { _, err := NewConvexMesh(nil, nil, ""); return err }, false},
		{"convex mesh bad index", func() error { _, err := NewConvexMesh(verts, [][3]int{{0, 1, 8}}, ""); return err }, false},
		{"soup", func() error { _, err := NewTriangleSoup(verts, faces, ""); return err }, true},
		{"soup without triangles", func() error { _, err := NewTriangleSoup(verts, nil, ""); return err }, false},
		{"soup negative index", func() error { _, err := NewTriangleSoup(verts, [][3]int{{-1, 1, 2}}, ""); return err }, false},
		{"plane", func() error { _, err := NewPlane(r3.Vector{X: 0, Y: 0, Z: 2}, 1, ""); return err }, true},
		{"plane zero normal", func() error { _, err := NewPlane(r3.Vector{}, 1, ""); return err }, false},
		{"halfspace infinite offset", func() error { _, err := NewHalfspace(r3.Vector{X: 1, Y: 0, Z: 0}, math.Inf(1), ""); return err }, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.make()
			if tc.ok {
				test.That(t, err, test.ShouldBeNil)
			} else {
				test.That(t, err, test.ShouldNotBeNil)
				test.That(t, errors.Is(err, ErrInvalidGeometry), test.ShouldBeTrue)
			}
		})
	}
}

func TestSoupOverBudget(t *testing.T) {
	verts, faces := unitCube()
	_, err := NewTriangleSoup(verts, faces, "", bvh.WithMaxPrimitives(4))
	test.That(t, errors.Is(err, bvh.ErrResourceExhausted), test.ShouldBeTrue)
}

func TestVolumes(t *testing.T) {
	verts, faces := unitCube()
	sphere, _ := NewSphere(2, "")
	box, _ := NewBox(r3.Vector{X: 1, Y: 2, Z: 3}, "")
	capsule, _ := NewCapsule(1, 4, "")
	cylinder, _ := NewCylinder(1, 2, "")
	cone, _ := NewCone(3, 1, "")
	mesh, _ := NewConvexMesh(verts, faces, "")
	soup, _ := NewTriangleSoup(verts, faces, "")
	plane, _ := NewPlane(r3.Vector{X: 0, Y: 0, Z: 1}, 0, "")

	test.That(t, sphere.Volume(), test.ShouldAlmostEqual, 32*math.Pi/3)
	test.That(t, box.Volume(), test.ShouldAlmostEqual, 6.)
	test.That(t, capsule.Volume(), test.ShouldAlmostEqual, 2*math.Pi+4*math.Pi/3)
	test.That(t, cylinder.Volume(), test.ShouldAlmostEqual, 2*math.Pi)
	test.That(t, cone.Volume(), test.ShouldAlmostEqual, 3*math.Pi)
	test.That(t, mesh.Volume(), test.ShouldAlmostEqual, 8.)
	test.That(t, soup.Volume(), test.ShouldEqual, 0.)
	test.That(t, math.IsInf(plane.Volume(), 1), test.ShouldBeTrue)
}

func TestLocalAABB(t *testing.T) {
	capsule, _ := NewCapsule(1, 6, "")
	box := capsule.LocalAABB()
	test.That(t, box.Min, test.ShouldResemble, r3.Vector{X: -1, Y: -1, Z: -3})
	test.That(t, box.Max, test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 3})
	test.That(t, capsule.BoundingRadius(), test.ShouldEqual, 3.)

	t.Run("halfspace along -z", func(t *testing.T) {
		h, err := NewHalfspace(r3.Vector{X: 0, Y: 0, Z: -2}, 4, "")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, h.Offset(), test.ShouldAlmostEqual, 2.)
		b := h.LocalAABB()
		test.That(t, b.Min.Z, test.ShouldAlmostEqual, -2.)
		test.That(t, math.IsInf(b.Max.Z, 1), test.ShouldBeTrue)
		test.That(t, math.IsInf(b.Min.X, -1), test.ShouldBeTrue)
	})
	t.Run("plane along +y is flat", func(t *testing.T) {
		p, err := NewPlane(r3.Vector{X: 0, Y: 1, Z: 0}, 1.5, "")
		test.That(t, err, test.ShouldBeNil)
		b := p.LocalAABB()
		test.That(t, b.Min.Y, test.ShouldEqual, 1.5)
		test.That(t, b.Max.Y, test.ShouldEqual, 1.5)
		test.That(t, b.IsBounded(), test.ShouldBeFalse)
	})
	t.Run("tilted halfspace is unbounded", func(t *testing.T) {
		h, _ := NewHalfspace(r3.Vector{X: 1, Y: 1, Z: 0}, 0, "")
		test.That(t, h.LocalAABB(), test.ShouldResemble, spatialmath.InfiniteAABB())
	})
}

func TestSupport(t *testing.T) {
	cone, _ := NewCone(1, 2, "")
	test.That(t, cone.Support(r3.Vector{X: 0, Y: 0, Z: 1}), test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 1})
	test.That(t, cone.Support(r3.Vector{X: 1, Y: 0, Z: -1}), test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: -1})

	cyl, _ := NewCylinder(2, 2, "")
	s := cyl.Support(r3.Vector{X: 0, Y: -3, Z: -1})
	test.That(t, s.Y, test.ShouldAlmostEqual, -2.)
	test.That(t, s.Z, test.ShouldAlmostEqual, -1.)

	capsule, _ := NewCapsule(1, 4, "")
	test.That(t, capsule.Support(r3.Vector{X: 0, Y: 0, Z: -5}), test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: -2})

	box, _ := NewBox(r3.Vector{X: 2, Y: 4, Z: 6}, "")
	test.That(t, box.Support(r3.Vector{X: -1, Y: 0, Z: 1}), test.ShouldResemble, r3.Vector{X: -1, Y: 2, Z: 3})

	verts, faces := unitCube()
	mesh, _ := NewConvexMesh(verts, faces, "")
	test.That(t, mesh.Support(r3.Vector{X: 1, Y: 1, Z: 1}), test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 1})
}

func TestInertia(t *testing.T) {
	verts, faces := unitCube()
	mesh, _ := NewConvexMesh(verts, faces, "")
	box, _ := NewBox(r3.Vector{X: 2, Y: 2, Z: 2}, "")

	fromMesh, err := Inertia(mesh, 3)
	test.That(t, err, test.ShouldBeNil)
	fromBox, err := Inertia(box, 3)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, fromMesh.At(i, j), test.ShouldAlmostEqual, fromBox.At(i, j), 1e-9)
		}
	}
	test.That(t, fromBox.At(0, 0), test.ShouldAlmostEqual, 2.)

	cone, _ := NewCone(1, 4, "")
	ic, err := Inertia(cone, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ic.At(0, 0), test.ShouldAlmostEqual, 1.75)
	test.That(t, ic.At(2, 2), test.ShouldAlmostEqual, 0.3)

	// a capsule with no core is a sphere
	capsule, _ := NewCapsule(1, 2, "")
	sphere, _ := NewSphere(1, "")
	icap, err := Inertia(capsule, 2)
	test.That(t, err, test.ShouldBeNil)
	isph, _ := Inertia(sphere, 2)
	test.That(t, icap.At(0, 0), test.ShouldAlmostEqual, isph.At(0, 0))
	test.That(t, icap.At(2, 2), test.ShouldAlmostEqual, isph.At(2, 2))

	plane, _ := NewPlane(r3.Vector{X: 0, Y: 0, Z: 1}, 0, "")
	_, err = Inertia(plane, 1)
	test.That(t, errors.Is(err, ErrInvalidGeometry), test.ShouldBeTrue)
	_, err = Inertia(sphere, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestKinds(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, k)
	}
	_, err := ParseKind("torus")
	test.That(t, errors.Is(err, ErrInvalidGeometry), test.ShouldBeTrue)
	test.That(t, KindHalfspace.IsBounded(), test.ShouldBeFalse)
	test.That(t, KindTriangleSoup.IsConvex(), test.ShouldBeFalse)
	test.That(t, KindCone.IsConvex(), test.ShouldBeTrue)
}

func TestConfig(t *testing.T) {
	t.Run("inferred types", func(t *testing.T) {
		s, err := (&Config{X: 1, Y: 2, Z: 3}).ParseConfig()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Kind(), test.ShouldEqual, KindBox)
		s, err = (&Config{R: 1, L: 3}).ParseConfig()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Kind(), test.ShouldEqual, KindCapsule)
		s, err = (&Config{R: 1}).ParseConfig()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Kind(), test.ShouldEqual, KindSphere)
		_, err = (&Config{}).ParseConfig()
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("plane needs a normal", func(t *testing.T) {
		_, err := (&Config{Type: "plane", Normal: []float64{0, 1}}).ParseConfig()
		test.That(t, errors.Is(err, ErrInvalidGeometry), test.ShouldBeTrue)
	})

	t.Run("json", func(t *testing.T) {
		verts, faces := unitCube()
		soup, err := NewTriangleSoup(verts, faces, "floor")
		test.That(t, err, test.ShouldBeNil)
		data, err := MarshalShape(soup)
		test.That(t, err, test.ShouldBeNil)
		back, err := UnmarshalShape(data, bvh.WithVolume(bvh.VolumeOBB))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Kind(), test.ShouldEqual, KindTriangleSoup)
		test.That(t, back.Label(), test.ShouldEqual, "floor")
		test.That(t, back.(*TriangleSoup).NumTriangles(), test.ShouldEqual, 12)
		test.That(t, back.(*TriangleSoup).Tree().Volume(), test.ShouldEqual, bvh.VolumeOBB)

		var raw map[string]interface{}
		data, err = MarshalShape(mustHalfspace(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, json.Unmarshal(data, &raw), test.ShouldBeNil)
		test.That(t, raw["type"], test.ShouldEqual, "halfspace")
		h, err := UnmarshalShape(data)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, h.(*Halfspace).Offset(), test.ShouldAlmostEqual, 0.5)
	})
}

func mustHalfspace(t *testing.T) *Halfspace {
	t.Helper()
	h, err := NewHalfspace(r3.Vector{X: 0, Y: 0, Z: 1}, 0.5, "ground")
	test.That(t, err, test.ShouldBeNil)
	return h
}
