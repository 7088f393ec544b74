package broadphase

import (
	"sync"

	"go.viam.com/fcl/logging"
	"go.viam.com/fcl/spatialmath"
)

type endpoint struct {
	e     *entry
	isMin bool
}

func (p endpoint) value(axis int) float64 {
	if p.isMin {
		return spatialmath.Component(p.e.tight.Min, axis)
	}
	return spatialmath.Component(p.e.tight.Max, axis)
}

// SweepAndPrune keeps the interval endpoints of every proxy sorted along each axis. Updates
// re-sort with insertion sort, which is close to linear when objects move coherently.
type SweepAndPrune struct {
	mu      sync.RWMutex
	logger  logging.Logger
	axes    [3][]endpoint
	entries map[uint64]*entry
	unbound unboundedSet
}

// NewSweepAndPrune returns an empty sweep and prune manager.
func NewSweepAndPrune(logger logging.Logger) *SweepAndPrune {
	return &SweepAndPrune{logger: logger, entries: map[uint64]*entry{}}
}

// Insert starts tracking p.
func (s *SweepAndPrune) Insert(p Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[p.ID()]; ok {
		return ErrProxyExists
	}
	e := &entry{proxy: p, tight: p.AABB()}
	s.entries[p.ID()] = e
	s.place(e)
	s.logger.Debugw("broad phase insert", "id", p.ID(), "bounded", e.bounded())
	return nil
}

// Remove stops tracking p.
func (s *SweepAndPrune) Remove(p Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[p.ID()]
	if !ok {
		return ErrProxyNotFound
	}
	s.unplace(e)
	delete(s.entries, p.ID())
	s.logger.Debugw("broad phase remove", "id", p.ID())
	return nil
}

// Update refreshes p's bounds and restores the endpoint order.
func (s *SweepAndPrune) Update(p Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[p.ID()]
	if !ok {
		return ErrProxyNotFound
	}
	tight := p.AABB()
	if e.bounded() != isBounded(tight) {
		s.unplace(e)
		e.proxy, e.tight = p, tight
		s.place(e)
		return nil
	}
	e.proxy, e.tight = p, tight
	if e.bounded() {
		s.sortAxes()
	}
	return nil
}

// OverlappingPairs sweeps the axis along which the proxies are most spread out and confirms each
// candidate on all three axes.
func (s *SweepAndPrune) OverlappingPairs() []Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Pair
	axis := s.sweepAxis()
	var active []*entry
	for _, ep := range s.axes[axis] {
		if !ep.isMin {
			for i, a := range active {
				if a == ep.e {
					active[i] = active[len(active)-1]
					active = active[:len(active)-1]
					break
				}
			}
			continue
		}
		for _, a := range active {
			if a.tight.Overlaps(ep.e.tight) {
				out = append(out, newPair(a.proxy, ep.e.proxy))
			}
		}
		active = append(active, ep.e)
	}
	out = s.unbound.pairs(s.entries, out)
	return sortPairs(out)
}

// Query returns the proxies whose current bounds overlap box.
func (s *SweepAndPrune) Query(box spatialmath.AABB) []Proxy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Proxy
	for _, ep := range s.axes[0] {
		if ep.isMin && ep.e.tight.Overlaps(box) {
			out = append(out, ep.e.proxy)
		}
	}
	return sortProxies(s.unbound.query(box, out))
}

// Len returns the number of tracked proxies.
func (s *SweepAndPrune) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every proxy.
func (s *SweepAndPrune) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.axes = [3][]endpoint{}
	s.entries = map[uint64]*entry{}
	s.unbound = unboundedSet{}
}

func (s *SweepAndPrune) place(e *entry) {
	if !e.bounded() {
		s.unbound.add(e)
		return
	}
	for axis := range s.axes {
		s.axes[axis] = append(s.axes[axis], endpoint{e: e, isMin: true}, endpoint{e: e})
	}
	s.sortAxes()
}

func (s *SweepAndPrune) unplace(e *entry) {
	if !e.bounded() {
		s.unbound.remove(e)
		return
	}
	for axis := range s.axes {
		kept := s.axes[axis][:0]
		for _, ep := range s.axes[axis] {
			if ep.e != e {
				kept = append(kept, ep)
			}
		}
		s.axes[axis] = kept
	}
}

// endpointLess orders by value, with interval starts before ends at equal values so that touching
// intervals are reported as overlapping.
func endpointLess(a, b endpoint, axis int) bool {
	va, vb := a.value(axis), b.value(axis)
	if va != vb {
		return va < vb
	}
	return a.isMin && !b.isMin
}

func (s *SweepAndPrune) sortAxes() {
	for axis := range s.axes {
		eps := s.axes[axis]
		for i := 1; i < len(eps); i++ {
			for j := i; j > 0 && endpointLess(eps[j], eps[j-1], axis); j-- {
				eps[j], eps[j-1] = eps[j-1], eps[j]
			}
		}
	}
}

// sweepAxis picks the axis with the largest variance of interval centers.
func (s *SweepAndPrune) sweepAxis() int {
	best, bestVar := 0, -1.0
	for axis := range s.axes {
		var sum, sumSq float64
		n := 0
		for _, ep := range s.axes[axis] {
			if !ep.isMin {
				continue
			}
			c := spatialmath.Component(ep.e.tight.Center(), axis)
			sum += c
			sumSq += c * c
			n++
		}
		if n == 0 {
			return 0
		}
		mean := sum / float64(n)
		if v := sumSq/float64(n) - mean*mean; v > bestVar {
			best, bestVar = axis, v
		}
	}
	return best
}
