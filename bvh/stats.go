package bvh

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Stats summarizes the shape of a tree.
type Stats struct {
	Nodes          int
	Leaves         int
	Depth          int
	MeanLeafSize   float64
	MedianLeafSize float64
}

// Stats walks the tree and reports its size and balance.
func (t *Tree) Stats() Stats {
	if t.Empty() {
		return Stats{}
	}
	var leafSizes stats.Float64Data
	s := Stats{Nodes: len(t.Nodes)}
	type entry struct{ node, depth int }
	stack := []entry{{0, 1}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.depth > s.Depth {
			s.Depth = e.depth
		}
		n := &t.Nodes[e.node]
		if n.IsLeaf() {
			leafSizes = append(leafSizes, float64(n.Count))
			continue
		}
		stack = append(stack, entry{n.Left, e.depth + 1}, entry{n.Right, e.depth + 1})
	}
	s.Leaves = len(leafSizes)
	s.MeanLeafSize, _ = leafSizes.Mean()
	s.MedianLeafSize, _ = leafSizes.Median()
	return s
}

// Validate checks the structural invariants of the tree: every primitive appears in exactly one
// leaf, no leaf exceeds the leaf limit, and every node's volume contains its children's.
func (t *Tree) Validate() error {
	if t.Empty() {
		if len(t.Order) != 0 {
			return errors.New("empty tree has a primitive ordering")
		}
		return nil
	}
	const eps = 1e-9
	seen := make([]bool, len(t.Order))
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			if n.Count == 0 || n.Count > t.maxLeaf {
				return errors.Errorf("leaf %d holds %d primitives, limit is %d", i, n.Count, t.maxLeaf)
			}
			for j := n.First; j < n.First+n.Count; j++ {
				if seen[j] {
					return errors.Errorf("primitive slot %d is claimed by more than one leaf", j)
				}
				seen[j] = true
			}
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return errors.Errorf("node %d has invalid children %d and %d", i, n.Left, n.Right)
		}
		for _, c := range []int{n.Left, n.Right} {
			child := &t.Nodes[c]
			if !n.Bounds.Expand(eps).Contains(child.Bounds) {
				return errors.Errorf("node %d bounds do not contain child %d", i, c)
			}
			switch t.volume {
			case VolumeOBB:
				for _, corner := range child.OBB.Corners() {
					if !n.OBB.ContainsPoint(corner, eps) {
						return errors.Errorf("node %d oriented box does not contain child %d", i, c)
					}
				}
			case VolumeKDOP:
				if !n.DOP.Contains(child.DOP) {
					return errors.Errorf("node %d k-DOP does not contain child %d", i, c)
				}
			case VolumeAABB:
			}
		}
	}
	for j, ok := range seen {
		if !ok {
			return errors.Errorf("primitive slot %d is not in any leaf", j)
		}
	}
	return nil
}
