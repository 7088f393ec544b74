package narrowphase

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
)

type placedBox struct {
	center r3.Vector
	axes   [3]r3.Vector
	half   [3]float64
}

func placeBox(b *geometry.Box, p spatialmath.Pose) placedBox {
	rm := p.Orientation().RotationMatrix()
	h := b.HalfSize()
	return placedBox{
		center: p.Point(),
		axes:   [3]r3.Vector{rm.Col(0), rm.Col(1), rm.Col(2)},
		half:   [3]float64{h.X, h.Y, h.Z},
	}
}

// radius is the half length of the box's projection onto a unit axis.
func (b *placedBox) radius(l r3.Vector) float64 {
	return b.half[0]*math.Abs(b.axes[0].Dot(l)) + b.half[1]*math.Abs(b.axes[1].Dot(l)) + b.half[2]*math.Abs(b.axes[2].Dot(l))
}

// supportCorner returns the corner farthest along dir, ignoring axis skip (pass -1 for none).
func (b *placedBox) supportCorner(dir r3.Vector, skip int) r3.Vector {
	p := b.center
	for i := 0; i < 3; i++ {
		if i == skip {
			continue
		}
		p = p.Add(b.axes[i].Mul(signOf(b.axes[i].Dot(dir)) * b.half[i]))
	}
	return p
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

const (
	axisFaceA = iota
	axisFaceB
	axisEdge
)

type satAxis struct {
	kind    int
	i, j    int
	normal  r3.Vector
	overlap float64
}

// BoxBox collides two boxes by testing the 15 separating axes. Face contacts are resolved by
// clipping the incident face against the reference face, yielding up to 8 points; edge contacts
// yield the closest points of the two edges.
func BoxBox(a *geometry.Box, pa spatialmath.Pose, b *geometry.Box, pb spatialmath.Pose, _ *Request) ([]Contact, error) {
	ba, bb := placeBox(a, pa), placeBox(b, pb)
	d := bb.center.Sub(ba.center)

	best := satAxis{overlap: math.Inf(1)}
	try := func(l r3.Vector, kind, i, j int) bool {
		ov := ba.radius(l) + bb.radius(l) - math.Abs(d.Dot(l))
		if ov < -touchEpsilon {
			return false
		}
		better := ov < best.overlap
		if kind == axisEdge {
			// edges must win clearly so that resting boxes produce face manifolds
			better = ov*1.05+1e-9 < best.overlap
		}
		if better {
			n := l
			if d.Dot(l) < 0 {
				n = l.Mul(-1)
			}
			best = satAxis{kind: kind, i: i, j: j, normal: n, overlap: ov}
		}
		return true
	}
	for i := 0; i < 3; i++ {
		if !try(ba.axes[i], axisFaceA, i, -1) {
			return nil, nil
		}
	}
	for j := 0; j < 3; j++ {
		if !try(bb.axes[j], axisFaceB, -1, j) {
			return nil, nil
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			l := ba.axes[i].Cross(bb.axes[j])
			n := l.Norm()
			if n < 1e-6 {
				continue
			}
			if !try(l.Mul(1/n), axisEdge, i, j) {
				return nil, nil
			}
		}
	}

	if best.kind == axisEdge {
		return []Contact{edgeContact(&ba, &bb, best)}, nil
	}
	var contacts []Contact
	if best.kind == axisFaceA {
		contacts = faceContacts(&ba, best.i, &bb, best.normal, best.normal)
	} else {
		contacts = faceContacts(&bb, best.j, &ba, best.normal.Mul(-1), best.normal)
	}
	if len(contacts) == 0 {
		// clipping lost every point to round off; fall back to the deepest corner
		p := bb.supportCorner(best.normal.Mul(-1), -1)
		contacts = []Contact{{
			Point: p.Add(best.normal.Mul(best.overlap / 2)), Normal: best.normal, Depth: best.overlap,
			PrimitiveA: -1, PrimitiveB: -1,
		}}
	}
	return contacts, nil
}

func edgeContact(ba, bb *placedBox, ax satAxis) Contact {
	n := ax.normal
	pa := ba.supportCorner(n, ax.i)
	pb := bb.supportCorner(n.Mul(-1), ax.j)
	ea := ba.axes[ax.i].Mul(ba.half[ax.i])
	eb := bb.axes[ax.j].Mul(bb.half[ax.j])
	qa, qb := spatialmath.ClosestPointsSegmentSegment(pa.Sub(ea), pa.Add(ea), pb.Sub(eb), pb.Add(eb))
	return Contact{
		Point:      qa.Add(qb).Mul(0.5),
		Normal:     n,
		Depth:      ax.overlap,
		PrimitiveA: -1,
		PrimitiveB: -1,
	}
}

// faceContacts clips the face of inc most opposed to refNormal against face axis of ref, whose
// outward normal is refNormal. contactNormal is the reported A to B normal.
func faceContacts(ref *placedBox, axis int, inc *placedBox, refNormal, contactNormal r3.Vector) []Contact {
	refCenter := ref.center.Add(refNormal.Mul(ref.half[axis]))
	u, v := (axis+1)%3, (axis+2)%3

	// incident face: the one whose outward normal is most anti-parallel to refNormal
	k, kDot := 0, 0.0
	for i := 0; i < 3; i++ {
		if dot := math.Abs(inc.axes[i].Dot(refNormal)); dot > kDot {
			k, kDot = i, dot
		}
	}
	incNormal := inc.axes[k].Mul(-signOf(inc.axes[k].Dot(refNormal)))
	incCenter := inc.center.Add(incNormal.Mul(inc.half[k]))
	iu, iv := (k+1)%3, (k+2)%3
	eu, ev := inc.axes[iu].Mul(inc.half[iu]), inc.axes[iv].Mul(inc.half[iv])
	poly := []r3.Vector{
		incCenter.Add(eu).Add(ev),
		incCenter.Sub(eu).Add(ev),
		incCenter.Sub(eu).Sub(ev),
		incCenter.Add(eu).Sub(ev),
	}

	for _, side := range []struct {
		n r3.Vector
		h float64
	}{
		{ref.axes[u], ref.half[u]},
		{ref.axes[u].Mul(-1), ref.half[u]},
		{ref.axes[v], ref.half[v]},
		{ref.axes[v].Mul(-1), ref.half[v]},
	} {
		poly = clipPolygon(poly, side.n, side.n.Dot(ref.center)+side.h)
		if len(poly) == 0 {
			return nil
		}
	}

	var out []Contact
	for _, p := range poly {
		depth := -refNormal.Dot(p.Sub(refCenter))
		if depth < -touchEpsilon {
			continue
		}
		out = append(out, Contact{
			Point:      p.Add(refNormal.Mul(depth / 2)),
			Normal:     contactNormal,
			Depth:      depth,
			PrimitiveA: -1,
			PrimitiveB: -1,
		})
	}
	return out
}

// clipPolygon keeps the part of poly with n·x <= offset (Sutherland-Hodgman).
func clipPolygon(poly []r3.Vector, n r3.Vector, offset float64) []r3.Vector {
	const eps = 1e-12
	var out []r3.Vector
	for i, cur := range poly {
		next := poly[(i+1)%len(poly)]
		dc, dn := n.Dot(cur)-offset, n.Dot(next)-offset
		if dc <= eps {
			out = append(out, cur)
		}
		if (dc < -eps && dn > eps) || (dc > eps && dn < -eps) {
			t := dc / (dc - dn)
			out = append(out, cur.Add(next.Sub(cur).Mul(t)))
		}
	}
	return out
}
