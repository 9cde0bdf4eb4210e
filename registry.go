package coro

import (
	"sync"
	"weak"
)

// ctxRegistry tracks every live ctx the manager has created, using weak
// pointers so that detached, finished ctxs can be garbage collected once no
// host code references them, without the manager itself pinning them
// forever. A ring buffer is scavenged in batches, and compacted once its
// load factor drops too low, instead of scanning the whole map each pass.
type ctxRegistry struct {
	data map[uint64]weak.Pointer[Ctx]
	ring []uint64
	head int

	mu         sync.RWMutex
	scavengeMu sync.Mutex
}

func newCtxRegistry() *ctxRegistry {
	return &ctxRegistry{
		data: make(map[uint64]weak.Pointer[Ctx]),
		ring: make([]uint64, 0, 1024),
	}
}

func (r *ctxRegistry) Register(c *Ctx) {
	wp := weak.Make(c)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[c.id] = wp
	r.ring = append(r.ring, c.id)
}

// Scavenge performs a partial cleanup pass of a batch of the ring buffer,
// removing entries whose ctx has been garbage collected or has finished and
// been detached (i.e. no longer needs manager-side tracking).
func (r *ctxRegistry) Scavenge(batchSize int) {
	r.scavengeMu.Lock()
	defer r.scavengeMu.Unlock()

	if batchSize <= 0 {
		return
	}

	r.mu.RLock()
	ringLen := len(r.ring)
	if ringLen == 0 {
		r.mu.RUnlock()
		return
	}

	start := r.head
	end := min(start+batchSize, ringLen)

	type item struct {
		id  uint64
		idx int
	}
	items := make([]item, 0, end-start)
	for i := start; i < end; i++ {
		if id := r.ring[i]; id != 0 {
			items = append(items, item{id, i})
		}
	}

	wps := make([]weak.Pointer[Ctx], len(items))
	validItems := items[:0]
	for _, it := range items {
		if wp, ok := r.data[it.id]; ok {
			wps[len(validItems)] = wp
			validItems = append(validItems, it)
		}
	}
	wps = wps[:len(validItems)]

	nextHead := end
	if nextHead >= ringLen {
		nextHead = 0
	}
	r.mu.RUnlock()

	cycleCompleted := nextHead == 0

	var itemsToRemove []item
	for i, it := range validItems {
		c := wps[i].Value()
		if c == nil || (c.State() == CtxFinished && c.Detached()) {
			itemsToRemove = append(itemsToRemove, it)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, it := range itemsToRemove {
		delete(r.data, it.id)
		if it.idx < len(r.ring) && r.ring[it.idx] == it.id {
			r.ring[it.idx] = 0
		}
	}
	r.head = nextHead

	if cycleCompleted {
		active := len(r.data)
		capacity := len(r.ring)
		if capacity > 256 && float64(active) < float64(capacity)*0.25 {
			r.compactAndRenew()
		}
	}
}

// compactAndRenew drops null markers from the ring and rebuilds the map so
// Go's runtime can reclaim the old bucket array. Must be called with mu held.
func (r *ctxRegistry) compactAndRenew() {
	newRing := make([]uint64, 0, len(r.data))
	newData := make(map[uint64]weak.Pointer[Ctx], len(r.data))
	for _, id := range r.ring {
		if id == 0 {
			continue
		}
		if wp, ok := r.data[id]; ok {
			newRing = append(newRing, id)
			newData[id] = wp
		}
	}
	r.ring = newRing
	r.data = newData
	r.head = 0
}

// Len reports the number of ctxs currently tracked (including ones pending
// scavenge).
func (r *ctxRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// All returns a snapshot slice of every live, tracked ctx.
func (r *ctxRegistry) All() []*Ctx {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Ctx, 0, len(r.data))
	for _, wp := range r.data {
		if c := wp.Value(); c != nil {
			out = append(out, c)
		}
	}
	return out
}
