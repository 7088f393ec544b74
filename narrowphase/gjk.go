package narrowphase

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// vertex is a point of the Minkowski difference A - B together with the points of A and B that
// produced it.
type vertex struct {
	w, a, b r3.Vector
}

type supportFunc func(b *body, dir r3.Vector) r3.Vector

func coreOf(b *body, dir r3.Vector) r3.Vector { return b.coreSupport(dir) }

func fullOf(b *body, dir r3.Vector) r3.Vector { return b.support(dir) }

func minkowski(a, b *body, sup supportFunc, dir r3.Vector) vertex {
	pa := sup(a, dir)
	pb := sup(b, dir.Mul(-1))
	return vertex{w: pa.Sub(pb), a: pa, b: pb}
}

type gjkResult struct {
	distance float64
	pa, pb   r3.Vector
	simplex  []vertex
	overlap  bool
}

// gjkInsideDistance is how near the origin the simplex may come before the pair is handed to EPA
// as overlapping. Nearer than this GJK cannot tell touching from shallow overlap.
const gjkInsideDistance = 1e-6

// gjk finds the distance between a and b, or reports that they overlap. On overlap the returned
// simplex seeds EPA; it contains the origin or lies within gjkInsideDistance of it.
func gjk(a, b *body, sup supportFunc, maxIter int, tol float64) (gjkResult, error) {
	v := a.center.Sub(b.center)
	if v.Norm2() < 1e-24 {
		v = r3.Vector{X: 1}
	}
	simplex := make([]vertex, 0, 4)
	var lambdas []float64
	prev := math.Inf(1)
	// lower is the best proven lower bound on the distance
	lower := 0.0
	for iter := 0; iter < maxIter; iter++ {
		w := minkowski(a, b, sup, v.Mul(-1))
		if len(simplex) > 0 {
			vv := v.Norm2()
			lower = math.Max(lower, v.Dot(w.w)/math.Sqrt(vv))
			if vv-v.Dot(w.w) <= tol*vv || containsVertex(simplex, w) {
				return witness(simplex, lambdas, v), nil
			}
		}
		next, nextSimplex, nextLambdas := closestOnSimplex(append(simplex, w))
		vv := next.Norm2()
		if vv <= gjkInsideDistance*gjkInsideDistance || len(nextSimplex) == 4 {
			return gjkResult{overlap: true, simplex: nextSimplex}, nil
		}
		if vv >= prev {
			// stalled; what is left to decide is the duality gap between lower and |v|
			if lower <= gjkInsideDistance {
				return gjkResult{overlap: true, simplex: nextSimplex}, nil
			}
			res := witness(simplex, lambdas, v)
			if res.distance-lower <= math.Sqrt(tol)*math.Max(1, lower) {
				return res, nil
			}
			return res, errors.Wrapf(ErrNumericalFailure, "gjk stalled with distance in [%g, %g]", lower, res.distance)
		}
		v, simplex, lambdas = next, nextSimplex, nextLambdas
		prev = vv
	}
	return witness(simplex, lambdas, v), errors.Wrapf(ErrNumericalFailure, "gjk did not converge in %d iterations", maxIter)
}

func containsVertex(simplex []vertex, w vertex) bool {
	for _, s := range simplex {
		if s.w.Sub(w.w).Norm2() < 1e-24 {
			return true
		}
	}
	return false
}

func witness(simplex []vertex, lambdas []float64, v r3.Vector) gjkResult {
	res := gjkResult{distance: v.Norm(), simplex: simplex}
	for i, s := range simplex {
		res.pa = res.pa.Add(s.a.Mul(lambdas[i]))
		res.pb = res.pb.Add(s.b.Mul(lambdas[i]))
	}
	return res
}

// closestOnSimplex returns the point of the simplex nearest the origin, the smallest sub-simplex
// containing it, and its barycentric coordinates over that sub-simplex.
func closestOnSimplex(s []vertex) (r3.Vector, []vertex, []float64) {
	switch len(s) {
	case 1:
		return s[0].w, s, []float64{1}
	case 2:
		return closestOnSegment(s[0], s[1])
	case 3:
		return closestOnTriangle(s[0], s[1], s[2])
	default:
		return closestOnTetrahedron(s)
	}
}

func closestOnSegment(p, q vertex) (r3.Vector, []vertex, []float64) {
	d := q.w.Sub(p.w)
	dd := d.Norm2()
	if dd < 1e-30 {
		return p.w, []vertex{p}, []float64{1}
	}
	t := -p.w.Dot(d) / dd
	switch {
	case t <= 0:
		return p.w, []vertex{p}, []float64{1}
	case t >= 1:
		return q.w, []vertex{q}, []float64{1}
	}
	return p.w.Add(d.Mul(t)), []vertex{p, q}, []float64{1 - t, t}
}

func closestOnTriangle(p, q, r vertex) (r3.Vector, []vertex, []float64) {
	bary := triangleBarycentric(p.w, q.w, r.w, r3.Vector{})
	all := [3]vertex{p, q, r}
	var out []vertex
	var lambdas []float64
	var pt r3.Vector
	for i, l := range bary {
		if l > 0 {
			out = append(out, all[i])
			lambdas = append(lambdas, l)
			pt = pt.Add(all[i].w.Mul(l))
		}
	}
	return pt, out, lambdas
}

var tetraFaces = [4][4]int{{0, 1, 2, 3}, {0, 3, 1, 2}, {0, 2, 3, 1}, {1, 3, 2, 0}}

func closestOnTetrahedron(s []vertex) (r3.Vector, []vertex, []float64) {
	best := math.Inf(1)
	var bestPt r3.Vector
	var bestSet []vertex
	var bestLambdas []float64
	inside := true
	for _, f := range tetraFaces {
		a, b, c, opp := s[f[0]].w, s[f[1]].w, s[f[2]].w, s[f[3]].w
		n := b.Sub(a).Cross(c.Sub(a))
		signOrigin := -a.Dot(n)
		signOpp := opp.Sub(a).Dot(n)
		if signOpp*signOpp > 1e-30 && signOrigin*signOpp >= 0 {
			continue
		}
		inside = false
		pt, set, lambdas := closestOnTriangle(s[f[0]], s[f[1]], s[f[2]])
		if d := pt.Norm2(); d < best {
			best, bestPt, bestSet, bestLambdas = d, pt, set, lambdas
		}
	}
	if inside {
		return r3.Vector{}, s, nil
	}
	return bestPt, bestSet, bestLambdas
}

// triangleBarycentric returns the barycentric coordinates of the point of triangle abc closest
// to p.
func triangleBarycentric(a, b, c, p r3.Vector) [3]float64 {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return [3]float64{1, 0, 0}
	}
	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return [3]float64{0, 1, 0}
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return [3]float64{1 - v, v, 0}
	}
	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return [3]float64{0, 0, 1}
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return [3]float64{1 - w, 0, w}
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return [3]float64{0, 1 - w, w}
	}
	sum := va + vb + vc
	if math.Abs(sum) < 1e-30 {
		return degenerateBarycentric(a, b, c, p)
	}
	v, w := vb/sum, vc/sum
	return [3]float64{1 - v - w, v, w}
}

// degenerateBarycentric handles collinear triangles by taking the best of the three edges.
func degenerateBarycentric(a, b, c, p r3.Vector) [3]float64 {
	pts := [3]r3.Vector{a, b, c}
	best := math.Inf(1)
	var out [3]float64
	for i := 0; i < 3; i++ {
		j := (i + 1) % 3
		d := pts[j].Sub(pts[i])
		t := 0.0
		if dd := d.Norm2(); dd > 0 {
			t = math.Max(0, math.Min(1, p.Sub(pts[i]).Dot(d)/dd))
		}
		if dist := pts[i].Add(d.Mul(t)).Sub(p).Norm2(); dist < best {
			best = dist
			out = [3]float64{}
			out[i] = 1 - t
			out[j] += t
		}
	}
	return out
}
