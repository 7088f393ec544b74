package geometry

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Kind identifies the variant of a Shape.
type Kind int

// The supported shape kinds.
const (
	KindSphere Kind = iota
	KindBox
	KindCapsule
	KindCylinder
	KindCone
	KindConvexMesh
	KindTriangleSoup
	KindPlane
	KindHalfspace
)

var kindNames = map[Kind]string{
	KindSphere:       "sphere",
	KindBox:          "box",
	KindCapsule:      "capsule",
	KindCylinder:     "cylinder",
	KindCone:         "cone",
	KindConvexMesh:   "convex_mesh",
	KindTriangleSoup: "triangle_soup",
	KindPlane:        "plane",
	KindHalfspace:    "halfspace",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindSphere, KindBox, KindCapsule, KindCylinder, KindCone,
		KindConvexMesh, KindTriangleSoup, KindPlane, KindHalfspace,
	}
}

// ParseKind returns the kind with the given name.
func ParseKind(s string) (Kind, error) {
	k, ok := lo.Find(Kinds(), func(k Kind) bool { return k.String() == s })
	if !ok {
		return 0, errors.Wrapf(ErrInvalidGeometry, "unknown geometry type %q", s)
	}
	return k, nil
}

// IsBounded returns false for the kinds that extend to infinity.
func (k Kind) IsBounded() bool {
	return k != KindPlane && k != KindHalfspace
}

// IsConvex returns true for the kinds that provide a support mapping.
func (k Kind) IsConvex() bool {
	switch k {
	case KindSphere, KindBox, KindCapsule, KindCylinder, KindCone, KindConvexMesh:
		return true
	case KindTriangleSoup, KindPlane, KindHalfspace:
	}
	return false
}
