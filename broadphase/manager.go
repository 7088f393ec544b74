// Package broadphase finds the pairs of objects whose axis-aligned bounds overlap. Managers accept
// one writer at a time and any number of concurrent readers.
package broadphase

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"go.viam.com/fcl/logging"
	"go.viam.com/fcl/spatialmath"
)

var (
	// ErrProxyExists is returned when inserting a proxy whose ID is already tracked.
	ErrProxyExists = errors.New("proxy already inserted")
	// ErrProxyNotFound is returned when updating or removing a proxy that is not tracked.
	ErrProxyNotFound = errors.New("proxy not found")
)

// Proxy is the broad-phase view of an object: a stable identity and its current world bounds.
type Proxy interface {
	ID() uint64
	AABB() spatialmath.AABB
}

// Pair is a candidate pair of proxies whose bounds overlap. A always has the smaller ID.
type Pair struct {
	A, B Proxy
}

// Manager tracks a set of proxies and reports overlapping pairs.
type Manager interface {
	// Insert starts tracking a proxy with its current bounds.
	Insert(p Proxy) error
	// Remove stops tracking a proxy.
	Remove(p Proxy) error
	// Update refreshes the stored bounds of a tracked proxy from p.AABB().
	Update(p Proxy) error
	// OverlappingPairs returns every pair of tracked proxies whose stored bounds overlap, sorted by
	// ID with no duplicates.
	OverlappingPairs() []Pair
	// Query returns the tracked proxies whose stored bounds overlap box, sorted by ID.
	Query(box spatialmath.AABB) []Proxy
	Len() int
	Clear()
}

// Names of the managers accepted by New.
const (
	DynamicTreeName   = "dynamic_tree"
	SweepAndPruneName = "sweep_and_prune"
	BruteForceName    = "brute_force"
)

// New returns the manager with the given name. The margin only applies to the dynamic tree.
func New(name string, margin float64, logger logging.Logger) (Manager, error) {
	switch name {
	case "", DynamicTreeName:
		return NewDynamicTree(margin, logger), nil
	case SweepAndPruneName:
		return NewSweepAndPrune(logger), nil
	case BruteForceName:
		return NewBruteForce(logger), nil
	}
	return nil, errors.Errorf("unknown broad phase %q", name)
}

// entry is a tracked proxy with the bounds it had when last inserted or updated.
type entry struct {
	proxy Proxy
	tight spatialmath.AABB
	// index into the owning manager's storage, or -1 if the proxy is unbounded
	slot int
}

func (e *entry) bounded() bool {
	return isBounded(e.tight)
}

// isBounded returns false for boxes with infinite or NaN extents, which cannot be sorted or
// measured and are kept aside and tested against everything.
func isBounded(b spatialmath.AABB) bool {
	for _, v := range []float64{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func newPair(a, b Proxy) Pair {
	if b.ID() < a.ID() {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func sortPairs(pairs []Pair) []Pair {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A.ID() != pairs[j].A.ID() {
			return pairs[i].A.ID() < pairs[j].A.ID()
		}
		return pairs[i].B.ID() < pairs[j].B.ID()
	})
	return pairs
}

func sortProxies(proxies []Proxy) []Proxy {
	sort.Slice(proxies, func(i, j int) bool { return proxies[i].ID() < proxies[j].ID() })
	return proxies
}

// unboundedSet holds the entries whose bounds cannot be placed in a spatial structure.
type unboundedSet struct {
	entries []*entry
}

func (u *unboundedSet) add(e *entry) {
	e.slot = -1
	u.entries = append(u.entries, e)
}

func (u *unboundedSet) remove(e *entry) {
	for i, other := range u.entries {
		if other == e {
			u.entries = append(u.entries[:i], u.entries[i+1:]...)
			return
		}
	}
}

// pairs appends every overlap between an unbounded entry and any entry in all.
func (u *unboundedSet) pairs(all map[uint64]*entry, out []Pair) []Pair {
	for _, e := range u.entries {
		for _, other := range all {
			if other == e || (!other.bounded() && other.proxy.ID() < e.proxy.ID()) {
				continue
			}
			if e.tight.Overlaps(other.tight) {
				out = append(out, newPair(e.proxy, other.proxy))
			}
		}
	}
	return out
}

func (u *unboundedSet) query(box spatialmath.AABB, out []Proxy) []Proxy {
	for _, e := range u.entries {
		if e.tight.Overlaps(box) {
			out = append(out, e.proxy)
		}
	}
	return out
}
