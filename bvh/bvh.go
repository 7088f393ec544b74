// Package bvh builds and traverses bounding volume hierarchies over the primitives of a mesh.
// Trees are stored as a flat arena of nodes addressed by index and are never modified after they
// are built, so a single tree may be shared by any number of concurrent readers.
package bvh

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/fcl/spatialmath"
)

// ErrResourceExhausted is returned when a build would exceed its configured primitive budget.
var ErrResourceExhausted = errors.New("resource exhausted")

// DefaultLeafSize is the number of primitives a leaf may hold unless overridden.
const DefaultLeafSize = 4

// DefaultMaxPrimitives bounds the size of a single tree.
const DefaultMaxPrimitives = 1 << 22

const defaultSAHBins = 12

// SAH costs of descending into a node and of testing one primitive. Leaves built by the SAH split
// may hold up to sahLeafFactor times the leaf size when no split is cheaper than the leaf.
const (
	sahTravCost   = 1.0
	sahPrimCost   = 1.0
	sahLeafFactor = 4
)

// VolumeType selects the bounding volume stored at each node.
type VolumeType int

// Supported bounding volumes.
const (
	VolumeAABB VolumeType = iota
	VolumeOBB
	VolumeKDOP
)

func (v VolumeType) String() string {
	switch v {
	case VolumeAABB:
		return "aabb"
	case VolumeOBB:
		return "obb"
	case VolumeKDOP:
		return "kdop"
	}
	return "unknown"
}

// ParseVolumeType parses the name used in configuration files.
func ParseVolumeType(s string) (VolumeType, error) {
	switch s {
	case "", "aabb":
		return VolumeAABB, nil
	case "obb":
		return VolumeOBB, nil
	case "kdop", "18dop":
		return VolumeKDOP, nil
	}
	return VolumeAABB, errors.Errorf("unknown bvh volume type %q", s)
}

// SplitMethod selects how an internal node divides its primitives.
type SplitMethod int

// Supported split methods.
const (
	SplitSAH SplitMethod = iota
	SplitMedian
)

func (s SplitMethod) String() string {
	if s == SplitMedian {
		return "median"
	}
	return "sah"
}

// ParseSplitMethod parses the name used in configuration files.
func ParseSplitMethod(s string) (SplitMethod, error) {
	switch s {
	case "", "sah":
		return SplitSAH, nil
	case "median":
		return SplitMedian, nil
	}
	return SplitSAH, errors.Errorf("unknown bvh split method %q", s)
}

// Primitive is the build input for one leaf item.
type Primitive struct {
	Bounds   spatialmath.AABB
	Centroid r3.Vector
	// Points are the primitive's vertices, used to fit oriented and k-DOP volumes.
	Points []r3.Vector
}

// NewPrimitive creates a primitive from its vertices.
func NewPrimitive(points ...r3.Vector) Primitive {
	var c r3.Vector
	for _, p := range points {
		c = c.Add(p)
	}
	if len(points) > 0 {
		c = c.Mul(1 / float64(len(points)))
	}
	return Primitive{Bounds: spatialmath.NewAABBFromPoints(points...), Centroid: c, Points: points}
}

// Node is one entry in a tree's arena. A node is a leaf when Left is negative, in which case
// Order[First:First+Count] lists its primitives.
type Node struct {
	Bounds spatialmath.AABB
	OBB    spatialmath.OBB
	DOP    DOP

	Left  int
	Right int
	First int
	Count int
}

// IsLeaf returns true if the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree is a built hierarchy. The root is Nodes[0]; an empty tree has no nodes.
type Tree struct {
	Nodes []Node
	Order []int

	volume  VolumeType
	maxLeaf int
}

type options struct {
	leafSize      int
	split         SplitMethod
	volume        VolumeType
	maxPrimitives int
	bins          int
}

// Option configures Build.
type Option func(*options)

// WithLeafSize sets the largest number of primitives stored in one leaf.
func WithLeafSize(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.leafSize = k
		}
	}
}

// WithSplit sets the split heuristic.
func WithSplit(s SplitMethod) Option {
	return func(o *options) {
		o.split = s
	}
}

// WithVolume sets the node bounding volume.
func WithVolume(v VolumeType) Option {
	return func(o *options) {
		o.volume = v
	}
}

// WithMaxPrimitives bounds the number of primitives accepted by Build. Zero removes the bound.
func WithMaxPrimitives(n int) Option {
	return func(o *options) {
		o.maxPrimitives = n
	}
}

// WithSAHBins sets the number of buckets evaluated per axis by the SAH split.
func WithSAHBins(n int) Option {
	return func(o *options) {
		if n >= 2 {
			o.bins = n
		}
	}
}

// Build constructs a tree over prims. An empty input yields an empty tree and no error.
func Build(prims []Primitive, opts ...Option) (*Tree, error) {
	o := options{
		leafSize:      DefaultLeafSize,
		split:         SplitSAH,
		volume:        VolumeAABB,
		maxPrimitives: DefaultMaxPrimitives,
		bins:          defaultSAHBins,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxPrimitives > 0 && len(prims) > o.maxPrimitives {
		return nil, errors.Wrapf(ErrResourceExhausted, "bvh over %d primitives exceeds limit of %d", len(prims), o.maxPrimitives)
	}

	tree := &Tree{volume: o.volume, maxLeaf: o.leafSize}
	if o.split == SplitSAH {
		tree.maxLeaf = sahLeafFactor * o.leafSize
	}
	if len(prims) == 0 {
		return tree, nil
	}
	tree.Order = make([]int, len(prims))
	for i := range tree.Order {
		tree.Order[i] = i
	}
	tree.Nodes = make([]Node, 0, 2*len(prims)/o.leafSize+1)

	b := builder{prims: prims, tree: tree, opts: o}
	b.build()
	b.fitVolumes()
	return tree, nil
}

// Volume returns the bounding volume type stored at each node.
func (t *Tree) Volume() VolumeType {
	return t.volume
}

// Empty returns true if the tree holds no primitives.
func (t *Tree) Empty() bool {
	return len(t.Nodes) == 0
}

// Root returns the root node, or nil for an empty tree.
func (t *Tree) Root() *Node {
	if t.Empty() {
		return nil
	}
	return &t.Nodes[0]
}

// Primitives returns the primitive indices held by a leaf.
func (t *Tree) Primitives(n *Node) []int {
	return t.Order[n.First : n.First+n.Count]
}

type builder struct {
	prims []Primitive
	tree  *Tree
	opts  options
}

type buildTask struct {
	node, first, count int
}

func (b *builder) newNode(first, count int) int {
	bounds := spatialmath.EmptyAABB()
	for _, idx := range b.tree.Order[first : first+count] {
		bounds = bounds.Union(b.prims[idx].Bounds)
	}
	b.tree.Nodes = append(b.tree.Nodes, Node{Bounds: bounds, Left: -1, Right: -1, First: first, Count: count})
	return len(b.tree.Nodes) - 1
}

func (b *builder) build() {
	stack := []buildTask{{node: b.newNode(0, len(b.prims)), first: 0, count: len(b.prims)}}
	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if task.count <= b.opts.leafSize {
			continue
		}

		var mid int
		if b.opts.split == SplitSAH {
			var cost float64
			mid, cost = b.splitSAH(task.first, task.count)
			// a split that costs no less than testing every primitive is not worth a node
			if task.count <= b.tree.maxLeaf && (mid == 0 || cost >= sahPrimCost*float64(task.count)) {
				continue
			}
		}
		if mid <= 0 || mid >= task.count {
			mid = b.splitMedian(task.first, task.count)
		}

		left := b.newNode(task.first, mid)
		right := b.newNode(task.first+mid, task.count-mid)
		node := &b.tree.Nodes[task.node]
		node.Left, node.Right = left, right
		node.Count = 0
		stack = append(stack,
			buildTask{node: right, first: task.first + mid, count: task.count - mid},
			buildTask{node: left, first: task.first, count: mid},
		)
	}
}

func (b *builder) centroidBounds(order []int) spatialmath.AABB {
	box := spatialmath.EmptyAABB()
	for _, idx := range order {
		box = box.ExtendPoint(b.prims[idx].Centroid)
	}
	return box
}

// splitMedian orders the range along the widest centroid axis and cuts it at the median. Ranges
// whose centroids all coincide are cut in half by count.
func (b *builder) splitMedian(first, count int) int {
	order := b.tree.Order[first : first+count]
	axis := b.centroidBounds(order).LongestAxis()
	key := func(i int) float64 {
		return spatialmath.Component(b.prims[order[i]].Centroid, axis)
	}
	sort.SliceStable(order, func(i, j int) bool { return key(i) < key(j) })

	values := make([]float64, count)
	for i := range order {
		values[i] = key(i)
	}
	median, err := stats.Median(values)
	if err != nil {
		return count / 2
	}
	mid := sort.Search(count, func(i int) bool { return key(i) >= median })
	if mid <= 0 || mid >= count || absInt(mid-count/2) > count/4 {
		return count / 2
	}
	return mid
}

type sahBin struct {
	bounds spatialmath.AABB
	count  int
}

// splitSAH evaluates bucketed splits on every axis, partitions the range at the cheapest one and
// returns the split point with its cost. It returns 0 when the centroids cannot be separated.
func (b *builder) splitSAH(first, count int) (int, float64) {
	order := b.tree.Order[first : first+count]
	cb := b.centroidBounds(order)
	parentArea := b.rangeBounds(order).SurfaceArea()
	if parentArea <= 0 || math.IsInf(parentArea, 0) {
		return 0, math.Inf(1)
	}

	nBins := b.opts.bins
	bestCost := math.Inf(1)
	bestAxis, bestSplit := -1, 0
	for axis := 0; axis < 3; axis++ {
		lo, hi := spatialmath.Component(cb.Min, axis), spatialmath.Component(cb.Max, axis)
		if hi-lo < 1e-12 {
			continue
		}
		bins := make([]sahBin, nBins)
		for i := range bins {
			bins[i].bounds = spatialmath.EmptyAABB()
		}
		for _, idx := range order {
			bi := binIndex(spatialmath.Component(b.prims[idx].Centroid, axis), lo, hi, nBins)
			bins[bi].count++
			bins[bi].bounds = bins[bi].bounds.Union(b.prims[idx].Bounds)
		}

		// right-to-left sweep of accumulated areas and counts
		rightArea := make([]float64, nBins)
		rightCount := make([]int, nBins)
		acc := spatialmath.EmptyAABB()
		n := 0
		for i := nBins - 1; i > 0; i-- {
			acc = acc.Union(bins[i].bounds)
			n += bins[i].count
			rightArea[i] = acc.SurfaceArea()
			rightCount[i] = n
		}
		acc = spatialmath.EmptyAABB()
		n = 0
		for i := 0; i < nBins-1; i++ {
			acc = acc.Union(bins[i].bounds)
			n += bins[i].count
			if n == 0 || rightCount[i+1] == 0 {
				continue
			}
			cost := sahTravCost + sahPrimCost*(acc.SurfaceArea()*float64(n)+rightArea[i+1]*float64(rightCount[i+1]))/parentArea
			if cost < bestCost {
				bestCost, bestAxis, bestSplit = cost, axis, i
			}
		}
	}
	if bestAxis < 0 {
		return 0, math.Inf(1)
	}

	lo, hi := spatialmath.Component(cb.Min, bestAxis), spatialmath.Component(cb.Max, bestAxis)
	mid := 0
	for i := range order {
		if binIndex(spatialmath.Component(b.prims[order[i]].Centroid, bestAxis), lo, hi, nBins) <= bestSplit {
			order[i], order[mid] = order[mid], order[i]
			mid++
		}
	}
	return mid, bestCost
}

func (b *builder) rangeBounds(order []int) spatialmath.AABB {
	box := spatialmath.EmptyAABB()
	for _, idx := range order {
		box = box.Union(b.prims[idx].Bounds)
	}
	return box
}

func binIndex(v, lo, hi float64, nBins int) int {
	bi := int(float64(nBins) * (v - lo) / (hi - lo))
	if bi >= nBins {
		bi = nBins - 1
	}
	if bi < 0 {
		bi = 0
	}
	return bi
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
