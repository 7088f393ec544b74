package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestAABB(t *testing.T) {
	a := AABB{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 2, Y: 2, Z: 2}}
	b := AABB{Min: r3.Vector{X: 2, Y: 1, Z: 1}, Max: r3.Vector{X: 3, Y: 3, Z: 3}}
	c := AABB{Min: r3.Vector{X: 5, Y: 5, Z: 5}, Max: r3.Vector{X: 6, Y: 6, Z: 6}}

	t.Run("overlap", func(t *testing.T) {
		test.That(t, a.Overlaps(b), test.ShouldBeTrue)
		test.That(t, b.Overlaps(a), test.ShouldBeTrue)
		test.That(t, a.Overlaps(c), test.ShouldBeFalse)
	})

	t.Run("union and containment", func(t *testing.T) {
		u := a.Union(c)
		test.That(t, u.Contains(a), test.ShouldBeTrue)
		test.That(t, u.Contains(c), test.ShouldBeTrue)
		test.That(t, a.Contains(u), test.ShouldBeFalse)
		test.That(t, EmptyAABB().Union(a), test.ShouldResemble, a)
		test.That(t, EmptyAABB().IsEmpty(), test.ShouldBeTrue)
		test.That(t, a.ContainsPoint(r3.Vector{X: 1, Y: 1, Z: 2}), test.ShouldBeTrue)
	})

	t.Run("measures", func(t *testing.T) {
		test.That(t, a.SurfaceArea(), test.ShouldEqual, 24)
		test.That(t, a.Volume(), test.ShouldEqual, 8)
		test.That(t, a.Center(), test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 1})
		test.That(t, EmptyAABB().SurfaceArea(), test.ShouldEqual, 0)
		test.That(t, AABB{Max: r3.Vector{X: 1, Y: 5, Z: 2}}.LongestAxis(), test.ShouldEqual, 1)
		test.That(t, a.Expand(1).Min, test.ShouldResemble, r3.Vector{X: -1, Y: -1, Z: -1})
	})

	t.Run("transform", func(t *testing.T) {
		box := NewAABBFromCenter(r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1})
		rotated := box.Transform(NewPose(r3.Vector{X: 10, Y: 0, Z: 0}, &R4AA{Theta: math.Pi / 4, RZ: 1}))
		test.That(t, rotated.Max.X, test.ShouldAlmostEqual, 10+math.Sqrt2)
		test.That(t, rotated.Max.Y, test.ShouldAlmostEqual, math.Sqrt2)
		test.That(t, rotated.Max.Z, test.ShouldAlmostEqual, 1)
	})

	t.Run("unbounded", func(t *testing.T) {
		inf := math.Inf(1)
		below := AABB{Min: r3.Vector{X: -inf, Y: -inf, Z: -inf}, Max: r3.Vector{X: inf, Y: inf, Z: 0}}
		test.That(t, below.IsBounded(), test.ShouldBeFalse)
		test.That(t, InfiniteAABB().Overlaps(c), test.ShouldBeTrue)

		moved := below.Transform(NewPoseFromPoint(r3.Vector{X: 0, Y: 0, Z: 3}))
		test.That(t, moved.Max.Z, test.ShouldEqual, 3)
		test.That(t, math.IsInf(moved.Min.Z, -1), test.ShouldBeTrue)

		tilted := below.Transform(NewPoseFromOrientation(&R4AA{Theta: 0.1, RX: 1}))
		test.That(t, math.IsInf(tilted.Max.Z, 1), test.ShouldBeTrue)
		test.That(t, below.Center(), test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 0})
	})
}

func TestOBBSeparation(t *testing.T) {
	unit := OBBFromAABB(NewAABBFromCenter(r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1}))

	t.Run("axis aligned gap", func(t *testing.T) {
		other := unit.Transform(NewPoseFromPoint(r3.Vector{X: 3.5, Y: 0, Z: 0}))
		test.That(t, OBBSeparation(unit, other), test.ShouldAlmostEqual, 1.5, 1e-6)
		test.That(t, unit.Overlaps(other), test.ShouldBeFalse)
	})

	t.Run("overlap depth", func(t *testing.T) {
		other := unit.Transform(NewPoseFromPoint(r3.Vector{X: 0, Y: 1.5, Z: 0}))
		test.That(t, OBBSeparation(unit, other), test.ShouldAlmostEqual, -0.5, 1e-6)
		test.That(t, unit.Overlaps(other), test.ShouldBeTrue)
	})

	t.Run("rotated box is a lower bound", func(t *testing.T) {
		pose := NewPose(r3.Vector{X: 4, Y: 0, Z: 0}, &R4AA{Theta: math.Pi / 4, RZ: 1})
		other := unit.Transform(pose)
		gap := OBBSeparation(unit, other)
		// the rotated corner reaches to x = 4 - sqrt2
		test.That(t, gap, test.ShouldAlmostEqual, 3-math.Sqrt2, 1e-6)
		test.That(t, gap, test.ShouldBeLessThanOrEqualTo, 3-math.Sqrt2+1e-9)
		test.That(t, other.AABB().Min.X, test.ShouldAlmostEqual, 4-math.Sqrt2)
	})

	t.Run("unequal extents", func(t *testing.T) {
		tall := OBBFromAABB(NewAABBFromCenter(r3.Vector{}, r3.Vector{X: 1, Y: 2, Z: 3}))
		small := OBBFromAABB(NewAABBFromCenter(r3.Vector{X: 0, Y: 4, Z: 0}, r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}))
		test.That(t, OBBSeparation(tall, small), test.ShouldAlmostEqual, 1.5, 1e-6)
		test.That(t, OBBSeparation(small, tall), test.ShouldAlmostEqual, 1.5, 1e-6)

		deep := small.Transform(NewPoseFromPoint(r3.Vector{X: 0, Y: -2, Z: 2.8}))
		test.That(t, OBBSeparation(tall, deep), test.ShouldAlmostEqual, -0.5, 1e-6)
	})

	t.Run("corners and containment", func(t *testing.T) {
		other := unit.Transform(NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, &R4AA{Theta: 1, RX: 1, RY: 2, RZ: 3}))
		for _, c := range other.Corners() {
			test.That(t, other.ContainsPoint(c, 1e-9), test.ShouldBeTrue)
			test.That(t, other.AABB().ContainsPoint(c), test.ShouldBeTrue)
		}
		test.That(t, other.ContainsPoint(r3.Vector{X: 10, Y: 0, Z: 0}, 1e-9), test.ShouldBeFalse)
	})
}
