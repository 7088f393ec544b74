package bvh

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/fcl/spatialmath"
)

// dopDirections are the 9 slab normals of an 18-DOP: the coordinate axes and the face diagonals.
var dopDirections = [9]r3.Vector{
	{X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1},
	{X: 1, Y: 1, Z: 0}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1},
	{X: 1, Y: -1, Z: 0}, {X: 1, Y: 0, Z: -1}, {X: 0, Y: 1, Z: -1},
}

// DOP is an 18-sided discrete oriented polytope: an interval along each of 9 fixed directions.
type DOP struct {
	Min [9]float64
	Max [9]float64
}

// EmptyDOP returns a DOP that contains nothing.
func EmptyDOP() DOP {
	var d DOP
	for i := range d.Min {
		d.Min[i] = math.Inf(1)
		d.Max[i] = math.Inf(-1)
	}
	return d
}

// NewDOPFromPoints returns the tightest DOP around pts.
func NewDOPFromPoints(pts ...r3.Vector) DOP {
	d := EmptyDOP()
	for _, p := range pts {
		for i, dir := range dopDirections {
			v := dir.Dot(p)
			d.Min[i] = math.Min(d.Min[i], v)
			d.Max[i] = math.Max(d.Max[i], v)
		}
	}
	return d
}

// Union returns the smallest DOP containing both.
func (d DOP) Union(o DOP) DOP {
	for i := range d.Min {
		d.Min[i] = math.Min(d.Min[i], o.Min[i])
		d.Max[i] = math.Max(d.Max[i], o.Max[i])
	}
	return d
}

// Contains returns whether o lies inside d.
func (d DOP) Contains(o DOP) bool {
	for i := range d.Min {
		if o.Min[i] < d.Min[i] || o.Max[i] > d.Max[i] {
			return false
		}
	}
	return true
}

// Translate shifts the DOP by t without rotating it.
func (d DOP) Translate(t r3.Vector) DOP {
	for i, dir := range dopDirections {
		off := dir.Dot(t)
		d.Min[i] += off
		d.Max[i] += off
	}
	return d
}

// Overlaps returns false if some slab direction separates the two DOPs. Both must be expressed in
// the same frame.
func (d DOP) Overlaps(o DOP) bool {
	for i := range d.Min {
		if d.Min[i] > o.Max[i] || o.Min[i] > d.Max[i] {
			return false
		}
	}
	return true
}

// fitVolumes fills in the oriented or k-DOP volumes bottom-up. Children are always allocated after
// their parent, so a reverse sweep visits every child before its parent.
func (b *builder) fitVolumes() {
	nodes := b.tree.Nodes
	for i := len(nodes) - 1; i >= 0; i-- {
		n := &nodes[i]
		switch b.opts.volume {
		case VolumeOBB:
			var pts []r3.Vector
			if n.IsLeaf() {
				pts = b.leafPoints(n)
			} else {
				lc, rc := nodes[n.Left].OBB.Corners(), nodes[n.Right].OBB.Corners()
				pts = append(lc[:], rc[:]...)
			}
			n.OBB = fitOBB(pts)
		case VolumeKDOP:
			if n.IsLeaf() {
				n.DOP = NewDOPFromPoints(b.leafPoints(n)...)
			} else {
				n.DOP = nodes[n.Left].DOP.Union(nodes[n.Right].DOP)
			}
		case VolumeAABB:
		}
		if !n.IsLeaf() {
			n.Bounds = nodes[n.Left].Bounds.Union(nodes[n.Right].Bounds)
		}
	}
}

func (b *builder) leafPoints(n *Node) []r3.Vector {
	var pts []r3.Vector
	for _, idx := range b.tree.Primitives(n) {
		p := b.prims[idx]
		if len(p.Points) > 0 {
			pts = append(pts, p.Points...)
			continue
		}
		corners := p.Bounds.Corners()
		pts = append(pts, corners[:]...)
	}
	return pts
}

// fitOBB fits a box to pts along the principal axes of their covariance. Degenerate point sets
// fall back to the world axes.
func fitOBB(pts []r3.Vector) spatialmath.OBB {
	if len(pts) == 0 {
		return spatialmath.OBB{Axes: *spatialmath.IdentityRotationMatrix()}
	}
	var mean r3.Vector
	for _, p := range pts {
		mean = mean.Add(p)
	}
	mean = mean.Mul(1 / float64(len(pts)))

	cov := mat.NewSymDense(3, nil)
	for _, p := range pts {
		d := p.Sub(mean)
		v := [3]float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+v[i]*v[j])
			}
		}
	}

	axes := [3]r3.Vector{{X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}}
	var eig mat.EigenSym
	if eig.Factorize(cov, true) {
		var ev mat.Dense
		eig.VectorsTo(&ev)
		a0 := r3.Vector{X: ev.At(0, 2), Y: ev.At(1, 2), Z: ev.At(2, 2)}
		a1 := r3.Vector{X: ev.At(0, 1), Y: ev.At(1, 1), Z: ev.At(2, 1)}
		if a0.Norm() > 0.5 && a1.Norm() > 0.5 {
			a0 = a0.Normalize()
			a1 = a1.Sub(a0.Mul(a1.Dot(a0))).Normalize()
			axes = [3]r3.Vector{a0, a1, a0.Cross(a1)}
		}
	}

	lo := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := lo.Mul(-1)
	for _, p := range pts {
		for i, ax := range axes {
			v := ax.Dot(p)
			lo = spatialmath.SetComponent(lo, i, math.Min(spatialmath.Component(lo, i), v))
			hi = spatialmath.SetComponent(hi, i, math.Max(spatialmath.Component(hi, i), v))
		}
	}
	rm, _ := spatialmath.NewRotationMatrix([]float64{
		axes[0].X, axes[1].X, axes[2].X,
		axes[0].Y, axes[1].Y, axes[2].Y,
		axes[0].Z, axes[1].Z, axes[2].Z,
	})
	localCenter := lo.Add(hi).Mul(0.5)
	return spatialmath.OBB{
		Center:   rm.Mul(localCenter),
		Axes:     *rm,
		HalfSize: hi.Sub(lo).Mul(0.5),
	}
}
