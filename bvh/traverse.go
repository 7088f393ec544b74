package bvh

import (
	"container/heap"
	"math"

	"go.viam.com/fcl/spatialmath"
)

// nodeVolume returns the node's volume as an OBB in the tree's local frame.
func (t *Tree) nodeVolume(n *Node) spatialmath.OBB {
	if t.volume == VolumeOBB {
		return n.OBB
	}
	return spatialmath.OBBFromAABB(n.Bounds)
}

// pairTester decides whether node a of one tree may touch node b of another, with b's frame given
// relative to a's.
type pairTester struct {
	a, b   *Tree
	rel    spatialmath.Pose
	useDOP bool
}

// k-DOPs are only comparable when both trees share an orientation, since their slab directions
// are fixed in each tree's local frame.
func newPairTester(a *Tree, poseA spatialmath.Pose, b *Tree, poseB spatialmath.Pose) *pairTester {
	sameRotation := poseA.Orientation().Quaternion() == poseB.Orientation().Quaternion()
	return &pairTester{
		a:      a,
		b:      b,
		rel:    spatialmath.PoseBetween(poseA, poseB),
		useDOP: a.volume == VolumeKDOP && b.volume == VolumeKDOP && sameRotation,
	}
}

// separation returns a lower bound on the distance between the two node volumes. Non-positive
// values mean the volumes overlap.
func (p *pairTester) separation(na, nb *Node) float64 {
	gap := spatialmath.OBBSeparation(p.a.nodeVolume(na), p.b.nodeVolume(nb).Transform(p.rel))
	if p.useDOP && !na.DOP.Overlaps(nb.DOP.Translate(p.rel.Point())) {
		return math.Max(gap, math.SmallestNonzeroFloat64)
	}
	return gap
}

// descendA chooses which side of a node pair to split: the non-leaf side, or the larger one.
func descendA(na, nb *Node) bool {
	if nb.IsLeaf() {
		return true
	}
	if na.IsLeaf() {
		return false
	}
	return na.Bounds.SurfaceArea() >= nb.Bounds.SurfaceArea()
}

// CollideTrees visits every pair of primitives whose leaf volumes overlap when tree a is placed at
// poseA and tree b at poseB. The visitor returns false to stop the traversal early.
func CollideTrees(a *Tree, poseA spatialmath.Pose, b *Tree, poseB spatialmath.Pose, visit func(primA, primB int) bool) {
	if a.Empty() || b.Empty() {
		return
	}
	tester := newPairTester(a, poseA, b, poseB)
	stack := [][2]int{{0, 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		na, nb := &a.Nodes[top[0]], &b.Nodes[top[1]]
		if tester.separation(na, nb) > 0 {
			continue
		}
		if na.IsLeaf() && nb.IsLeaf() {
			for _, pa := range a.Primitives(na) {
				for _, pb := range b.Primitives(nb) {
					if !visit(pa, pb) {
						return
					}
				}
			}
			continue
		}
		if descendA(na, nb) {
			stack = append(stack, [2]int{na.Right, top[1]}, [2]int{na.Left, top[1]})
		} else {
			stack = append(stack, [2]int{top[0], nb.Right}, [2]int{top[0], nb.Left})
		}
	}
}

// Query visits every primitive whose leaf volume overlaps vol, given in the tree's local frame.
// The visitor returns false to stop early.
func (t *Tree) Query(vol spatialmath.OBB, visit func(prim int) bool) {
	if t.Empty() {
		return
	}
	stack := []int{0}
	for len(stack) > 0 {
		n := &t.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if spatialmath.OBBSeparation(t.nodeVolume(n), vol) > 0 {
			continue
		}
		if n.IsLeaf() {
			for _, prim := range t.Primitives(n) {
				if !visit(prim) {
					return
				}
			}
			continue
		}
		stack = append(stack, n.Right, n.Left)
	}
}

// QueryAABB visits every primitive whose leaf bounds overlap box, given in the tree's local frame.
func (t *Tree) QueryAABB(box spatialmath.AABB, visit func(prim int) bool) {
	if t.Empty() {
		return
	}
	stack := []int{0}
	for len(stack) > 0 {
		n := &t.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !n.Bounds.Overlaps(box) {
			continue
		}
		if n.IsLeaf() {
			for _, prim := range t.Primitives(n) {
				if !visit(prim) {
					return
				}
			}
			continue
		}
		stack = append(stack, n.Right, n.Left)
	}
}

type distanceItem struct {
	a, b  int
	bound float64
}

type distanceQueue []distanceItem

func (q distanceQueue) Len() int            { return len(q) }
func (q distanceQueue) Less(i, j int) bool  { return q[i].bound < q[j].bound }
func (q distanceQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *distanceQueue) Push(x interface{}) { *q = append(*q, x.(distanceItem)) }
func (q *distanceQueue) Pop() interface{} {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// DistanceTrees finds the smallest value of leaf over all primitive pairs, visiting node pairs in
// order of their volume lower bound and skipping any pair that cannot beat the best value so far.
// leaf should return the exact distance between two primitives, or a non-positive value if they
// intersect, which ends the search. It returns +Inf and -1 indices for empty trees.
func DistanceTrees(
	a *Tree, poseA spatialmath.Pose,
	b *Tree, poseB spatialmath.Pose,
	leaf func(primA, primB int) float64,
) (float64, int, int) {
	best, bestA, bestB := math.Inf(1), -1, -1
	if a.Empty() || b.Empty() {
		return best, bestA, bestB
	}
	tester := newPairTester(a, poseA, b, poseB)
	q := &distanceQueue{{a: 0, b: 0, bound: math.Max(0, tester.separation(&a.Nodes[0], &b.Nodes[0]))}}
	for q.Len() > 0 {
		item := heap.Pop(q).(distanceItem)
		if item.bound >= best {
			break
		}
		na, nb := &a.Nodes[item.a], &b.Nodes[item.b]
		if na.IsLeaf() && nb.IsLeaf() {
			for _, pa := range a.Primitives(na) {
				for _, pb := range b.Primitives(nb) {
					if d := leaf(pa, pb); d < best {
						best, bestA, bestB = d, pa, pb
						if best <= 0 {
							return best, bestA, bestB
						}
					}
				}
			}
			continue
		}
		var children [2][2]int
		if descendA(na, nb) {
			children = [2][2]int{{na.Left, item.b}, {na.Right, item.b}}
		} else {
			children = [2][2]int{{item.a, nb.Left}, {item.a, nb.Right}}
		}
		for _, c := range children {
			bound := math.Max(0, tester.separation(&a.Nodes[c[0]], &b.Nodes[c[1]]))
			if bound < best {
				heap.Push(q, distanceItem{a: c[0], b: c[1], bound: bound})
			}
		}
	}
	return best, bestA, bestB
}

// Distance is the single-tree form of DistanceTrees: vol is a bounding box of the query shape in
// the tree's local frame and leaf measures the exact distance to one primitive.
func (t *Tree) Distance(vol spatialmath.OBB, leaf func(prim int) float64) (float64, int) {
	best, bestPrim := math.Inf(1), -1
	if t.Empty() {
		return best, bestPrim
	}
	q := &distanceQueue{{a: 0, bound: math.Max(0, spatialmath.OBBSeparation(t.nodeVolume(&t.Nodes[0]), vol))}}
	for q.Len() > 0 {
		item := heap.Pop(q).(distanceItem)
		if item.bound >= best {
			break
		}
		n := &t.Nodes[item.a]
		if n.IsLeaf() {
			for _, prim := range t.Primitives(n) {
				if d := leaf(prim); d < best {
					best, bestPrim = d, prim
					if best <= 0 {
						return best, bestPrim
					}
				}
			}
			continue
		}
		for _, c := range []int{n.Left, n.Right} {
			bound := math.Max(0, spatialmath.OBBSeparation(t.nodeVolume(&t.Nodes[c]), vol))
			if bound < best {
				heap.Push(q, distanceItem{a: c, bound: bound})
			}
		}
	}
	return best, bestPrim
}

// Traverse visits the primitives of every leaf reached through nodes accepted by accept. It is
// used for queries against regions that are not boxes, such as half spaces.
func (t *Tree) Traverse(accept func(n *Node) bool, visit func(prim int) bool) {
	if t.Empty() {
		return
	}
	stack := []int{0}
	for len(stack) > 0 {
		n := &t.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !accept(n) {
			continue
		}
		if n.IsLeaf() {
			for _, prim := range t.Primitives(n) {
				if !visit(prim) {
					return
				}
			}
			continue
		}
		stack = append(stack, n.Right, n.Left)
	}
}
