package bvh

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/fcl/spatialmath"
)

// stripOfTriangles lays n unit right triangles side by side along +X.
func stripOfTriangles(n int) [][3]r3.Vector {
	tris := make([][3]r3.Vector, n)
	for i := range tris {
		x := float64(i)
		tris[i] = [3]r3.Vector{{X: x, Y: 0, Z: 0}, {X: x + 1, Y: 0, Z: 0}, {X: x, Y: 1, Z: 0}}
	}
	return tris
}

func randomTriangles(rng *rand.Rand, n int, spread float64) [][3]r3.Vector {
	tris := make([][3]r3.Vector, n)
	for i := range tris {
		c := r3.Vector{X: rng.Float64() * spread, Y: rng.Float64() * spread, Z: rng.Float64() * spread}
		for j := 0; j < 3; j++ {
			tris[i][j] = c.Add(r3.Vector{X: rng.Float64() - .5, Y: rng.Float64() - .5, Z: rng.Float64() - .5})
		}
	}
	return tris
}

func primitives(tris [][3]r3.Vector) []Primitive {
	prims := make([]Primitive, len(tris))
	for i, tri := range tris {
		prims[i] = NewPrimitive(tri[0], tri[1], tri[2])
	}
	return prims
}

func TestBuild(t *testing.T) {
	t.Run("empty input gives empty tree", func(t *testing.T) {
		tree, err := Build(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Empty(), test.ShouldBeTrue)
		test.That(t, tree.Root(), test.ShouldBeNil)
		test.That(t, tree.Validate(), test.ShouldBeNil)
		test.That(t, tree.Stats(), test.ShouldResemble, Stats{})
	})

	t.Run("few triangles creates leaf node", func(t *testing.T) {
		tree, err := Build(primitives(stripOfTriangles(3)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(tree.Nodes), test.ShouldEqual, 1)
		test.That(t, tree.Root().IsLeaf(), test.ShouldBeTrue)
		test.That(t, tree.Root().Count, test.ShouldEqual, 3)
		test.That(t, tree.Root().Bounds, test.ShouldResemble, spatialmath.AABB{Max: r3.Vector{X: 3, Y: 1, Z: 0}})
	})

	t.Run("many triangles creates internal nodes", func(t *testing.T) {
		tree, err := Build(primitives(stripOfTriangles(10)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Root().IsLeaf(), test.ShouldBeFalse)
		test.That(t, tree.Validate(), test.ShouldBeNil)
		s := tree.Stats()
		test.That(t, s.Leaves, test.ShouldBeGreaterThanOrEqualTo, 3)
		test.That(t, s.Nodes, test.ShouldEqual, 2*s.Leaves-1)
		test.That(t, s.MeanLeafSize, test.ShouldAlmostEqual, 10/float64(s.Leaves))
	})

	t.Run("budget", func(t *testing.T) {
		_, err := Build(primitives(stripOfTriangles(10)), WithMaxPrimitives(5))
		test.That(t, errors.Is(err, ErrResourceExhausted), test.ShouldBeTrue)
		_, err = Build(primitives(stripOfTriangles(10)), WithMaxPrimitives(0))
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("coincident centroids", func(t *testing.T) {
		tris := make([][3]r3.Vector, 9)
		for i := range tris {
			tris[i] = [3]r3.Vector{{X: -1, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 1}}
		}
		tree, err := Build(primitives(tris))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Validate(), test.ShouldBeNil)
		test.That(t, len(tree.Nodes), test.ShouldEqual, 1)
		test.That(t, tree.Root().Count, test.ShouldEqual, 9)

		tree, err = Build(primitives(tris), WithSplit(SplitMedian))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Validate(), test.ShouldBeNil)
		test.That(t, tree.Stats().Leaves, test.ShouldEqual, 3)

		// past the leaf limit coincident centroids are cut in half by count
		tree, err = Build(primitives(tris), WithLeafSize(2))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Validate(), test.ShouldBeNil)
		test.That(t, tree.Root().IsLeaf(), test.ShouldBeFalse)
	})

	t.Run("no split beats the leaf", func(t *testing.T) {
		tris := make([][3]r3.Vector, 6)
		for i := range tris {
			d := r3.Vector{X: float64(i) * 1e-3}
			tris[i] = [3]r3.Vector{r3.Vector{X: -1, Y: -1}.Add(d), r3.Vector{X: 1, Y: -1, Z: 1}.Add(d), r3.Vector{Y: 1}.Add(d)}
		}
		tree, err := Build(primitives(tris))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Validate(), test.ShouldBeNil)
		test.That(t, tree.Root().IsLeaf(), test.ShouldBeTrue)

		// a strip spreads out far enough to pay for its nodes
		tree, err = Build(primitives(stripOfTriangles(6)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Root().IsLeaf(), test.ShouldBeFalse)
	})
}

func TestBuildInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tris := randomTriangles(rng, 300, 20)
	for _, volume := range []VolumeType{VolumeAABB, VolumeOBB, VolumeKDOP} {
		for _, split := range []SplitMethod{SplitSAH, SplitMedian} {
			for _, leafSize := range []int{1, 4, 9} {
				t.Run(volume.String()+"/"+split.String(), func(t *testing.T) {
					tree, err := Build(primitives(tris), WithVolume(volume), WithSplit(split), WithLeafSize(leafSize))
					test.That(t, err, test.ShouldBeNil)
					test.That(t, tree.Volume(), test.ShouldEqual, volume)
					test.That(t, tree.Validate(), test.ShouldBeNil)
					for i := range tree.Nodes {
						n := &tree.Nodes[i]
						if !n.IsLeaf() {
							continue
						}
						for _, prim := range tree.Primitives(n) {
							for _, p := range tris[prim] {
								test.That(t, n.Bounds.ContainsPoint(p), test.ShouldBeTrue)
								if volume == VolumeOBB {
									test.That(t, n.OBB.ContainsPoint(p, 1e-9), test.ShouldBeTrue)
								}
							}
						}
					}
				})
			}
		}
	}
}

func TestParseOptions(t *testing.T) {
	v, err := ParseVolumeType("obb")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, VolumeOBB)
	_, err = ParseVolumeType("sphere")
	test.That(t, err, test.ShouldNotBeNil)

	s, err := ParseSplitMethod("median")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, SplitMedian)
	_, err = ParseSplitMethod("random")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDOP(t *testing.T) {
	a := NewDOPFromPoints(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 1, Z: 1})
	b := NewDOPFromPoints(r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})
	test.That(t, a.Contains(b), test.ShouldBeTrue)
	test.That(t, a.Overlaps(b), test.ShouldBeTrue)

	// these point sets are separated only along the (1,1,0) slab
	c := NewDOPFromPoints(r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{X: 0, Y: 1, Z: 0}, r3.Vector{X: 0, Y: 0, Z: 0})
	d := NewDOPFromPoints(r3.Vector{X: 1, Y: 1, Z: 0}, r3.Vector{X: 0.9, Y: 0.9, Z: 0}).Translate(r3.Vector{X: 0.2, Y: 0.2, Z: 0})
	test.That(t, c.Overlaps(d), test.ShouldBeFalse)
	test.That(t, c.Union(d).Contains(c), test.ShouldBeTrue)
	test.That(t, EmptyDOP().Union(a), test.ShouldResemble, a)
}

// bruteForcePairs lists triangle pairs whose AABBs overlap after placing each set at its pose.
func bruteForcePairs(a, b [][3]r3.Vector, poseA, poseB spatialmath.Pose) map[[2]int]bool {
	out := map[[2]int]bool{}
	for i, ta := range a {
		boxA := spatialmath.NewAABBFromPoints(ta[0], ta[1], ta[2]).Transform(poseA)
		for j, tb := range b {
			triA := spatialmath.NewTriangle(ta[0], ta[1], ta[2]).Transform(poseA)
			triB := spatialmath.NewTriangle(tb[0], tb[1], tb[2]).Transform(poseB)
			boxB := spatialmath.NewAABBFromPoints(tb[0], tb[1], tb[2]).Transform(poseB)
			if boxA.Overlaps(boxB) && spatialmath.TrianglesIntersect(triA, triB) {
				out[[2]int{i, j}] = true
			}
		}
	}
	return out
}

func TestCollideTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	trisA := randomTriangles(rng, 200, 5)
	trisB := randomTriangles(rng, 200, 5)
	poseA := spatialmath.NewPose(r3.Vector{X: 1, Y: 0, Z: 0}, &spatialmath.R4AA{Theta: 0.3, RZ: 1})
	poseB := spatialmath.NewPose(r3.Vector{X: 0, Y: 2, Z: 1}, &spatialmath.R4AA{Theta: 1.1, RX: 1, RY: 1})
	expected := bruteForcePairs(trisA, trisB, poseA, poseB)
	test.That(t, len(expected), test.ShouldBeGreaterThan, 0)

	for _, volume := range []VolumeType{VolumeAABB, VolumeOBB, VolumeKDOP} {
		t.Run(volume.String(), func(t *testing.T) {
			treeA, err := Build(primitives(trisA), WithVolume(volume))
			test.That(t, err, test.ShouldBeNil)
			treeB, err := Build(primitives(trisB), WithVolume(volume))
			test.That(t, err, test.ShouldBeNil)

			found := map[[2]int]bool{}
			CollideTrees(treeA, poseA, treeB, poseB, func(pa, pb int) bool {
				ta := spatialmath.NewTriangle(trisA[pa][0], trisA[pa][1], trisA[pa][2]).Transform(poseA)
				tb := spatialmath.NewTriangle(trisB[pb][0], trisB[pb][1], trisB[pb][2]).Transform(poseB)
				if spatialmath.TrianglesIntersect(ta, tb) {
					found[[2]int{pa, pb}] = true
				}
				return true
			})
			test.That(t, found, test.ShouldResemble, expected)
		})
	}

	t.Run("same orientation uses k-DOPs", func(t *testing.T) {
		treeA, err := Build(primitives(trisA), WithVolume(VolumeKDOP))
		test.That(t, err, test.ShouldBeNil)
		treeB, err := Build(primitives(trisB), WithVolume(VolumeKDOP))
		test.That(t, err, test.ShouldBeNil)
		pA := spatialmath.NewPoseFromPoint(r3.Vector{X: 0.5, Y: 0, Z: 0})
		pB := spatialmath.NewPoseFromPoint(r3.Vector{X: 0, Y: 0.5, Z: 0})
		want := bruteForcePairs(trisA, trisB, pA, pB)
		found := map[[2]int]bool{}
		CollideTrees(treeA, pA, treeB, pB, func(pa, pb int) bool {
			ta := spatialmath.NewTriangle(trisA[pa][0], trisA[pa][1], trisA[pa][2]).Transform(pA)
			tb := spatialmath.NewTriangle(trisB[pb][0], trisB[pb][1], trisB[pb][2]).Transform(pB)
			if spatialmath.TrianglesIntersect(ta, tb) {
				found[[2]int{pa, pb}] = true
			}
			return true
		})
		test.That(t, found, test.ShouldResemble, want)
	})

	t.Run("early exit", func(t *testing.T) {
		treeA, _ := Build(primitives(trisA))
		treeB, _ := Build(primitives(trisB))
		calls := 0
		CollideTrees(treeA, poseA, treeB, poseB, func(pa, pb int) bool {
			calls++
			return false
		})
		test.That(t, calls, test.ShouldEqual, 1)
	})
}

func TestDistanceTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	trisA := randomTriangles(rng, 80, 5)
	trisB := randomTriangles(rng, 80, 5)
	poseA := spatialmath.NewZeroPose()
	poseB := spatialmath.NewPose(r3.Vector{X: 12, Y: 1, Z: -2}, &spatialmath.R4AA{Theta: 0.7, RY: 1})

	triDist := func(pa, pb int) float64 {
		ta := spatialmath.NewTriangle(trisA[pa][0], trisA[pa][1], trisA[pa][2]).Transform(poseA)
		tb := spatialmath.NewTriangle(trisB[pb][0], trisB[pb][1], trisB[pb][2]).Transform(poseB)
		_, _, d := spatialmath.ClosestPointsTriangleTriangle(ta, tb)
		return d
	}
	expected := math.Inf(1)
	for i := range trisA {
		for j := range trisB {
			expected = math.Min(expected, triDist(i, j))
		}
	}

	for _, volume := range []VolumeType{VolumeAABB, VolumeOBB, VolumeKDOP} {
		t.Run(volume.String(), func(t *testing.T) {
			treeA, err := Build(primitives(trisA), WithVolume(volume))
			test.That(t, err, test.ShouldBeNil)
			treeB, err := Build(primitives(trisB), WithVolume(volume))
			test.That(t, err, test.ShouldBeNil)
			calls := 0
			d, pa, pb := DistanceTrees(treeA, poseA, treeB, poseB, func(pa, pb int) float64 {
				calls++
				return triDist(pa, pb)
			})
			test.That(t, d, test.ShouldAlmostEqual, expected, 1e-9)
			test.That(t, triDist(pa, pb), test.ShouldAlmostEqual, expected, 1e-9)
			test.That(t, calls, test.ShouldBeLessThan, len(trisA)*len(trisB))
		})
	}

	t.Run("empty", func(t *testing.T) {
		empty, _ := Build(nil)
		full, _ := Build(primitives(trisA))
		d, pa, pb := DistanceTrees(empty, poseA, full, poseB, func(int, int) float64 { return 0 })
		test.That(t, math.IsInf(d, 1), test.ShouldBeTrue)
		test.That(t, pa, test.ShouldEqual, -1)
		test.That(t, pb, test.ShouldEqual, -1)
	})
}

func TestSingleTreeQueries(t *testing.T) {
	tris := stripOfTriangles(40)
	tree, err := Build(primitives(tris), WithVolume(VolumeOBB))
	test.That(t, err, test.ShouldBeNil)

	probe := spatialmath.OBBFromAABB(spatialmath.NewAABBFromCenter(r3.Vector{X: 10.5, Y: 0.5, Z: 0}, r3.Vector{X: 0.2, Y: 0.2, Z: 0.2}))
	var hits []int
	tree.Query(probe, func(prim int) bool {
		hits = append(hits, prim)
		return true
	})
	test.That(t, hits, test.ShouldContain, 10)
	test.That(t, len(hits), test.ShouldBeLessThanOrEqualTo, 8)

	var boxHits []int
	tree.QueryAABB(spatialmath.NewAABBFromCenter(r3.Vector{X: 30.2, Y: 0.2, Z: 0}, r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}), func(prim int) bool {
		boxHits = append(boxHits, prim)
		return true
	})
	test.That(t, boxHits, test.ShouldContain, 30)

	far := spatialmath.OBBFromAABB(spatialmath.NewAABBFromCenter(r3.Vector{X: 20, Y: 0.5, Z: 5}, r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}))
	d, prim := tree.Distance(far, func(prim int) float64 {
		box := spatialmath.NewAABBFromPoints(tris[prim][0], tris[prim][1], tris[prim][2])
		return math.Max(0, 4.5-box.Max.Z)
	})
	test.That(t, d, test.ShouldAlmostEqual, 4.5)
	test.That(t, prim, test.ShouldBeBetweenOrEqual, 0, 39)
}

func TestTraverse(t *testing.T) {
	tris := stripOfTriangles(40)
	tree, err := Build(primitives(tris))
	test.That(t, err, test.ShouldBeNil)

	// everything left of x = 5.5
	var hits []int
	tree.Traverse(func(n *Node) bool { return n.Bounds.Min.X <= 5.5 }, func(prim int) bool {
		hits = append(hits, prim)
		return true
	})
	for _, want := range []int{0, 1, 2, 3, 4, 5} {
		test.That(t, hits, test.ShouldContain, want)
	}
	test.That(t, hits, test.ShouldNotContain, 39)

	count := 0
	tree.Traverse(func(*Node) bool { return true }, func(int) bool {
		count++
		return count < 3
	})
	test.That(t, count, test.ShouldEqual, 3)
}
