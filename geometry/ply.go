package geometry

import (
	"bufio"
	"io"
	"os"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/fcl/bvh"
)

// NewTriangleSoupFromPLY reads a PLY mesh and builds a triangle soup from its faces. Faces with
// more than three vertices are fanned into triangles.
func NewTriangleSoupFromPLY(r io.Reader, label string, opts ...bvh.Option) (*TriangleSoup, error) {
	vertices, triangles, err := readPLY(r)
	if err != nil {
		return nil, err
	}
	return NewTriangleSoup(vertices, triangles, label, opts...)
}

// NewTriangleSoupFromPLYFile is NewTriangleSoupFromPLY on the contents of a file.
func NewTriangleSoupFromPLYFile(path, label string, opts ...bvh.Option) (*TriangleSoup, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewTriangleSoupFromPLY(bufio.NewReader(f), label, opts...)
}

// NewConvexMeshFromPLY reads a PLY mesh whose vertices describe a convex polytope.
func NewConvexMeshFromPLY(r io.Reader, label string) (*ConvexMesh, error) {
	vertices, triangles, err := readPLY(r)
	if err != nil {
		return nil, err
	}
	return NewConvexMesh(vertices, triangles, label)
}

// NewConvexMeshFromPLYFile is NewConvexMeshFromPLY on the contents of a file.
func NewConvexMeshFromPLYFile(path, label string) (*ConvexMesh, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewConvexMeshFromPLY(bufio.NewReader(f), label)
}

// readPLY extracts vertices and triangulated faces. The parser panics on malformed input, which is
// reported as invalid geometry.
func readPLY(r io.Reader) (vertices []r3.Vector, triangles [][3]int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Wrapf(ErrInvalidGeometry, "malformed ply: %v", rec)
		}
	}()
	ply := goply.New(r)
	for i, v := range ply.Elements("vertex") {
		x, okX := plyFloat(v["x"])
		y, okY := plyFloat(v["y"])
		z, okZ := plyFloat(v["z"])
		if !okX || !okY || !okZ {
			return nil, nil, errors.Wrapf(ErrInvalidGeometry, "ply vertex %d lacks numeric x, y, z", i)
		}
		vertices = append(vertices, r3.Vector{X: x, Y: y, Z: z})
	}
	for i, f := range ply.Elements("face") {
		raw, ok := f["vertex_indices"]
		if !ok {
			raw = f["vertex_index"]
		}
		list, ok := raw.([]interface{})
		if !ok || len(list) < 3 {
			return nil, nil, errors.Wrapf(ErrInvalidGeometry, "ply face %d has no usable vertex list", i)
		}
		idx := make([]int, len(list))
		for j, item := range list {
			v, ok := plyFloat(item)
			if !ok {
				return nil, nil, errors.Wrapf(ErrInvalidGeometry, "ply face %d has a non-numeric index", i)
			}
			idx[j] = int(v)
		}
		for j := 1; j+1 < len(idx); j++ {
			triangles = append(triangles, [3]int{idx[0], idx[j], idx[j+1]})
		}
	}
	return vertices, triangles, nil
}

func plyFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int8:
		return float64(n), true
	case uint8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
