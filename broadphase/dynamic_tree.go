package broadphase

import (
	"sync"

	"go.viam.com/fcl/logging"
	"go.viam.com/fcl/spatialmath"
)

const nullNode = -1

type treeNode struct {
	// fattened bounds for leaves, union of children for internal nodes
	aabb   spatialmath.AABB
	parent int
	left   int
	right  int
	// leaves have height 0; free nodes have height -1
	height int
	entry  *entry
}

func (n *treeNode) isLeaf() bool {
	return n.left == nullNode
}

// DynamicTree is an incrementally balanced AABB tree over fattened proxy bounds. Moving a proxy
// only touches the tree once it leaves its fattened box.
type DynamicTree struct {
	mu       sync.RWMutex
	logger   logging.Logger
	margin   float64
	nodes    []treeNode
	root     int
	freeList int
	entries  map[uint64]*entry
	unbound  unboundedSet
}

// NewDynamicTree returns an empty tree that fattens every leaf by margin on each side.
func NewDynamicTree(margin float64, logger logging.Logger) *DynamicTree {
	if margin < 0 {
		margin = 0
	}
	return &DynamicTree{
		logger:   logger,
		margin:   margin,
		root:     nullNode,
		freeList: nullNode,
		entries:  map[uint64]*entry{},
	}
}

// Insert starts tracking p.
func (t *DynamicTree) Insert(p Proxy) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[p.ID()]; ok {
		return ErrProxyExists
	}
	e := &entry{proxy: p, tight: p.AABB()}
	t.entries[p.ID()] = e
	t.place(e)
	t.logger.Debugw("broad phase insert", "id", p.ID(), "bounded", e.bounded())
	return nil
}

// Remove stops tracking p.
func (t *DynamicTree) Remove(p Proxy) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[p.ID()]
	if !ok {
		return ErrProxyNotFound
	}
	t.unplace(e)
	delete(t.entries, p.ID())
	t.logger.Debugw("broad phase remove", "id", p.ID())
	return nil
}

// Update refreshes p's bounds, moving its leaf only when the new bounds escape the fattened box.
func (t *DynamicTree) Update(p Proxy) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[p.ID()]
	if !ok {
		return ErrProxyNotFound
	}
	tight := p.AABB()
	wasBounded := e.bounded()
	e.proxy = p
	e.tight = tight
	if wasBounded && e.bounded() && t.nodes[e.slot].aabb.Contains(tight) {
		return nil
	}
	if wasBounded {
		t.removeLeaf(e.slot)
		t.freeNode(e.slot)
	} else {
		t.unbound.remove(e)
	}
	t.place(e)
	return nil
}

// OverlappingPairs returns the pairs whose current bounds overlap.
func (t *DynamicTree) OverlappingPairs() []Pair {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Pair
	if t.root != nullNode {
		out = t.selfPairs(t.root, out)
	}
	out = t.unbound.pairs(t.entries, out)
	return sortPairs(out)
}

// Query returns the proxies whose current bounds overlap box.
func (t *DynamicTree) Query(box spatialmath.AABB) []Proxy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Proxy
	if t.root != nullNode {
		stack := []int{t.root}
		for len(stack) > 0 {
			n := &t.nodes[stack[len(stack)-1]]
			stack = stack[:len(stack)-1]
			if !n.aabb.Overlaps(box) {
				continue
			}
			if n.isLeaf() {
				if n.entry.tight.Overlaps(box) {
					out = append(out, n.entry.proxy)
				}
				continue
			}
			stack = append(stack, n.left, n.right)
		}
	}
	return sortProxies(t.unbound.query(box, out))
}

// Len returns the number of tracked proxies.
func (t *DynamicTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear drops every proxy.
func (t *DynamicTree) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = nil
	t.root = nullNode
	t.freeList = nullNode
	t.entries = map[uint64]*entry{}
	t.unbound = unboundedSet{}
}

// Height returns the height of the tree, 0 for a single leaf and -1 when empty.
func (t *DynamicTree) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.root == nullNode {
		return -1
	}
	return t.nodes[t.root].height
}

func (t *DynamicTree) place(e *entry) {
	if !e.bounded() {
		t.unbound.add(e)
		return
	}
	leaf := t.allocNode()
	t.nodes[leaf].aabb = e.tight.Expand(t.margin)
	t.nodes[leaf].height = 0
	t.nodes[leaf].entry = e
	e.slot = leaf
	t.insertLeaf(leaf)
}

func (t *DynamicTree) unplace(e *entry) {
	if !e.bounded() {
		t.unbound.remove(e)
		return
	}
	t.removeLeaf(e.slot)
	t.freeNode(e.slot)
}

func (t *DynamicTree) allocNode() int {
	if t.freeList != nullNode {
		idx := t.freeList
		t.freeList = t.nodes[idx].parent
		t.nodes[idx] = treeNode{parent: nullNode, left: nullNode, right: nullNode}
		return idx
	}
	t.nodes = append(t.nodes, treeNode{parent: nullNode, left: nullNode, right: nullNode})
	return len(t.nodes) - 1
}

func (t *DynamicTree) freeNode(idx int) {
	t.nodes[idx] = treeNode{parent: t.freeList, left: nullNode, right: nullNode, height: -1}
	t.freeList = idx
}

// insertLeaf walks down choosing the child with the lowest surface area cost, then pairs the leaf
// with the sibling found there.
func (t *DynamicTree) insertLeaf(leaf int) {
	if t.root == nullNode {
		t.root = leaf
		t.nodes[leaf].parent = nullNode
		return
	}
	leafBox := t.nodes[leaf].aabb
	index := t.root
	for !t.nodes[index].isLeaf() {
		n := &t.nodes[index]
		area := n.aabb.SurfaceArea()
		combined := n.aabb.Union(leafBox).SurfaceArea()
		cost := 2 * combined
		inheritance := 2 * (combined - area)
		costLeft := t.descendCost(n.left, leafBox) + inheritance
		costRight := t.descendCost(n.right, leafBox) + inheritance
		if cost < costLeft && cost < costRight {
			break
		}
		if costLeft < costRight {
			index = n.left
		} else {
			index = n.right
		}
	}

	sibling := index
	oldParent := t.nodes[sibling].parent
	newParent := t.allocNode()
	t.nodes[newParent] = treeNode{
		aabb:   leafBox.Union(t.nodes[sibling].aabb),
		parent: oldParent,
		left:   sibling,
		right:  leaf,
		height: t.nodes[sibling].height + 1,
	}
	t.nodes[sibling].parent = newParent
	t.nodes[leaf].parent = newParent
	if oldParent == nullNode {
		t.root = newParent
	} else if t.nodes[oldParent].left == sibling {
		t.nodes[oldParent].left = newParent
	} else {
		t.nodes[oldParent].right = newParent
	}
	t.refit(t.nodes[leaf].parent)
}

func (t *DynamicTree) descendCost(child int, leafBox spatialmath.AABB) float64 {
	c := &t.nodes[child]
	combined := c.aabb.Union(leafBox).SurfaceArea()
	if c.isLeaf() {
		return combined
	}
	return combined - c.aabb.SurfaceArea()
}

func (t *DynamicTree) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = nullNode
		return
	}
	parent := t.nodes[leaf].parent
	grandParent := t.nodes[parent].parent
	sibling := t.nodes[parent].left
	if sibling == leaf {
		sibling = t.nodes[parent].right
	}
	if grandParent == nullNode {
		t.root = sibling
		t.nodes[sibling].parent = nullNode
		t.freeNode(parent)
		return
	}
	if t.nodes[grandParent].left == parent {
		t.nodes[grandParent].left = sibling
	} else {
		t.nodes[grandParent].right = sibling
	}
	t.nodes[sibling].parent = grandParent
	t.freeNode(parent)
	t.refit(grandParent)
}

// refit walks to the root rebalancing and recomputing bounds and heights.
func (t *DynamicTree) refit(index int) {
	for index != nullNode {
		index = t.balance(index)
		n := &t.nodes[index]
		l, r := &t.nodes[n.left], &t.nodes[n.right]
		n.height = 1 + max(l.height, r.height)
		n.aabb = l.aabb.Union(r.aabb)
		index = n.parent
	}
}

// balance performs a left or right rotation if node a is imbalanced and returns the new root of
// the subtree.
func (t *DynamicTree) balance(iA int) int {
	a := &t.nodes[iA]
	if a.isLeaf() || a.height < 2 {
		return iA
	}
	iB, iC := a.left, a.right
	b, c := &t.nodes[iB], &t.nodes[iC]
	bal := c.height - b.height

	switch {
	case bal > 1:
		// rotate c up
		iF, iG := c.left, c.right
		f, g := &t.nodes[iF], &t.nodes[iG]
		c.left = iA
		c.parent = a.parent
		a.parent = iC
		t.replaceChild(c.parent, iA, iC)
		if f.height > g.height {
			c.right = iF
			a.right = iG
			g.parent = iA
			a.aabb = b.aabb.Union(g.aabb)
			c.aabb = a.aabb.Union(f.aabb)
			a.height = 1 + max(b.height, g.height)
			c.height = 1 + max(a.height, f.height)
		} else {
			c.right = iG
			a.right = iF
			f.parent = iA
			a.aabb = b.aabb.Union(f.aabb)
			c.aabb = a.aabb.Union(g.aabb)
			a.height = 1 + max(b.height, f.height)
			c.height = 1 + max(a.height, g.height)
		}
		return iC
	case bal < -1:
		// rotate b up
		iD, iE := b.left, b.right
		d, e := &t.nodes[iD], &t.nodes[iE]
		b.left = iA
		b.parent = a.parent
		a.parent = iB
		t.replaceChild(b.parent, iA, iB)
		if d.height > e.height {
			b.right = iD
			a.left = iE
			e.parent = iA
			a.aabb = c.aabb.Union(e.aabb)
			b.aabb = a.aabb.Union(d.aabb)
			a.height = 1 + max(c.height, e.height)
			b.height = 1 + max(a.height, d.height)
		} else {
			b.right = iE
			a.left = iD
			d.parent = iA
			a.aabb = c.aabb.Union(d.aabb)
			b.aabb = a.aabb.Union(e.aabb)
			a.height = 1 + max(c.height, d.height)
			b.height = 1 + max(a.height, e.height)
		}
		return iB
	}
	return iA
}

func (t *DynamicTree) replaceChild(parent, old, updated int) {
	if parent == nullNode {
		t.root = updated
		return
	}
	if t.nodes[parent].left == old {
		t.nodes[parent].left = updated
	} else {
		t.nodes[parent].right = updated
	}
}

// selfPairs finds overlapping leaf pairs within a subtree by descending it against itself.
func (t *DynamicTree) selfPairs(index int, out []Pair) []Pair {
	n := &t.nodes[index]
	if n.isLeaf() {
		return out
	}
	out = t.selfPairs(n.left, out)
	out = t.selfPairs(n.right, out)
	return t.crossPairs(n.left, n.right, out)
}

func (t *DynamicTree) crossPairs(ia, ib int, out []Pair) []Pair {
	stack := [][2]int{{ia, ib}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		a, b := &t.nodes[top[0]], &t.nodes[top[1]]
		if !a.aabb.Overlaps(b.aabb) {
			continue
		}
		switch {
		case a.isLeaf() && b.isLeaf():
			if a.entry.tight.Overlaps(b.entry.tight) {
				out = append(out, newPair(a.entry.proxy, b.entry.proxy))
			}
		case b.isLeaf() || (!a.isLeaf() && a.aabb.SurfaceArea() >= b.aabb.SurfaceArea()):
			stack = append(stack, [2]int{a.left, top[1]}, [2]int{a.right, top[1]})
		default:
			stack = append(stack, [2]int{top[0], b.left}, [2]int{top[0], b.right})
		}
	}
	return out
}
