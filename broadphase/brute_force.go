package broadphase

import (
	"sync"

	"go.viam.com/fcl/logging"
	"go.viam.com/fcl/spatialmath"
)

// BruteForce tests every pair of proxies. It is the reference the other managers are checked
// against and is fastest for a handful of objects.
type BruteForce struct {
	mu      sync.RWMutex
	logger  logging.Logger
	order   []*entry
	entries map[uint64]*entry
}

// NewBruteForce returns an empty brute force manager.
func NewBruteForce(logger logging.Logger) *BruteForce {
	return &BruteForce{logger: logger, entries: map[uint64]*entry{}}
}

// Insert starts tracking p.
func (b *BruteForce) Insert(p Proxy) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[p.ID()]; ok {
		return ErrProxyExists
	}
	e := &entry{proxy: p, tight: p.AABB(), slot: len(b.order)}
	b.entries[p.ID()] = e
	b.order = append(b.order, e)
	b.logger.Debugw("broad phase insert", "id", p.ID())
	return nil
}

// Remove stops tracking p.
func (b *BruteForce) Remove(p Proxy) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[p.ID()]
	if !ok {
		return ErrProxyNotFound
	}
	last := b.order[len(b.order)-1]
	b.order[e.slot] = last
	last.slot = e.slot
	b.order = b.order[:len(b.order)-1]
	delete(b.entries, p.ID())
	b.logger.Debugw("broad phase remove", "id", p.ID())
	return nil
}

// Update refreshes p's bounds.
func (b *BruteForce) Update(p Proxy) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[p.ID()]
	if !ok {
		return ErrProxyNotFound
	}
	e.proxy, e.tight = p, p.AABB()
	return nil
}

// OverlappingPairs tests all pairs.
func (b *BruteForce) OverlappingPairs() []Pair {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Pair
	for i, e := range b.order {
		for _, other := range b.order[i+1:] {
			if e.tight.Overlaps(other.tight) {
				out = append(out, newPair(e.proxy, other.proxy))
			}
		}
	}
	return sortPairs(out)
}

// Query returns the proxies whose current bounds overlap box.
func (b *BruteForce) Query(box spatialmath.AABB) []Proxy {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Proxy
	for _, e := range b.order {
		if e.tight.Overlaps(box) {
			out = append(out, e.proxy)
		}
	}
	return sortProxies(out)
}

// Len returns the number of tracked proxies.
func (b *BruteForce) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Clear drops every proxy.
func (b *BruteForce) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = nil
	b.entries = map[uint64]*entry{}
}
