package narrowphase

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

type epaFace struct {
	v      [3]int
	normal r3.Vector
	dist   float64
}

type epaResult struct {
	depth  float64
	normal r3.Vector
	pa, pb r3.Vector
}

// epa expands a polytope inside the Minkowski difference A - B, starting from a GJK simplex
// that contains the origin, until it finds the boundary face nearest the origin. The result's
// normal points from A to B and pa, pb are the deepest points of each shape inside the other.
func epa(a, b *body, simplex []vertex, maxIter int, tol float64) (epaResult, error) {
	verts, ok := seedTetrahedron(a, b, simplex)
	if !ok {
		return epaResult{normal: fallbackNormal(a, b)}, errors.Wrap(ErrNumericalFailure, "epa: minkowski difference is flat")
	}

	centroid := verts[0].w.Add(verts[1].w).Add(verts[2].w).Add(verts[3].w).Mul(0.25)
	var faces []epaFace
	for _, f := range tetraFaces {
		face := makeFace(verts, f[0], f[1], f[2])
		if face.normal.Dot(centroid.Sub(verts[f[0]].w)) > 0 {
			face = makeFace(verts, f[0], f[2], f[1])
		}
		faces = append(faces, face)
	}

	var best epaFace
	for iter := 0; iter < maxIter; iter++ {
		bestIdx := 0
		for i := range faces {
			if faces[i].dist < faces[bestIdx].dist {
				bestIdx = i
			}
		}
		best = faces[bestIdx]
		w := minkowski(a, b, fullOf, best.normal)
		gap := w.w.Dot(best.normal) - best.dist
		if gap <= tol*math.Max(1, math.Abs(best.dist)) || containsVertex(verts, w) {
			return faceResult(verts, best), nil
		}

		verts = append(verts, w)
		wi := len(verts) - 1
		var horizon [][2]int
		kept := faces[:0]
		for _, f := range faces {
			if f.normal.Dot(w.w.Sub(verts[f.v[0]].w)) <= 1e-12 {
				kept = append(kept, f)
				continue
			}
			for e := 0; e < 3; e++ {
				horizon = addHorizonEdge(horizon, [2]int{f.v[e], f.v[(e+1)%3]})
			}
		}
		faces = kept
		for _, e := range horizon {
			faces = append(faces, makeFace(verts, e[0], e[1], wi))
		}
		if len(faces) == 0 {
			break
		}
	}
	return faceResult(verts, best), errors.Wrapf(ErrNumericalFailure, "epa did not converge in %d iterations", maxIter)
}

// addHorizonEdge records the boundary of the region removed from the polytope: an edge shared by
// two removed faces appears once in each direction and cancels out.
func addHorizonEdge(edges [][2]int, e [2]int) [][2]int {
	for i, other := range edges {
		if other[0] == e[1] && other[1] == e[0] {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return append(edges, e)
}

func makeFace(verts []vertex, i, j, k int) epaFace {
	a, b, c := verts[i].w, verts[j].w, verts[k].w
	n := b.Sub(a).Cross(c.Sub(a))
	f := epaFace{v: [3]int{i, j, k}}
	if norm := n.Norm(); norm > 1e-14 {
		f.normal = n.Mul(1 / norm)
		f.dist = f.normal.Dot(a)
	} else {
		// a sliver face never wins the nearest-face search and is replaced once a neighbor expands
		f.normal = anyPerpendicular(b.Sub(a))
		f.dist = math.Inf(1)
	}
	return f
}

func faceResult(verts []vertex, f epaFace) epaResult {
	a, b, c := verts[f.v[0]], verts[f.v[1]], verts[f.v[2]]
	bary := triangleBarycentric(a.w, b.w, c.w, f.normal.Mul(f.dist))
	res := epaResult{depth: math.Max(0, f.dist), normal: f.normal}
	for i, v := range [3]vertex{a, b, c} {
		res.pa = res.pa.Add(v.a.Mul(bary[i]))
		res.pb = res.pb.Add(v.b.Mul(bary[i]))
	}
	return res
}

// seedTetrahedron grows a GJK simplex that contains the origin into a full tetrahedron by adding
// support points along directions that raise its dimension.
func seedTetrahedron(a, b *body, simplex []vertex) ([]vertex, bool) {
	verts := append([]vertex(nil), simplex...)
	if len(verts) == 0 {
		verts = append(verts, minkowski(a, b, fullOf, r3.Vector{X: 1}))
	}
	axes := []r3.Vector{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}
	for len(verts) < 4 {
		var dirs []r3.Vector
		switch len(verts) {
		case 2:
			d := verts[1].w.Sub(verts[0].w)
			p := anyPerpendicular(d)
			q := unit(d.Cross(p))
			dirs = append(dirs, p, p.Mul(-1), q, q.Mul(-1))
		case 3:
			n := unit(verts[1].w.Sub(verts[0].w).Cross(verts[2].w.Sub(verts[0].w)))
			dirs = append(dirs, n, n.Mul(-1))
		}
		dirs = append(dirs, axes...)
		grew := false
		for _, d := range dirs {
			if d.Norm2() == 0 {
				continue
			}
			w := minkowski(a, b, fullOf, d)
			if raisesDimension(verts, w.w) {
				verts = append(verts, w)
				grew = true
				break
			}
		}
		if !grew {
			return nil, false
		}
	}
	return verts, true
}

func raisesDimension(verts []vertex, p r3.Vector) bool {
	const eps = 1e-12
	switch len(verts) {
	case 1:
		return p.Sub(verts[0].w).Norm2() > eps
	case 2:
		return verts[1].w.Sub(verts[0].w).Cross(p.Sub(verts[0].w)).Norm2() > eps
	default:
		n := verts[1].w.Sub(verts[0].w).Cross(verts[2].w.Sub(verts[0].w))
		return math.Abs(n.Dot(p.Sub(verts[0].w))) > eps
	}
}

func fallbackNormal(a, b *body) r3.Vector {
	if n := unit(b.center.Sub(a.center)); n.Norm2() > 0 {
		return n
	}
	return r3.Vector{Z: 1}
}
