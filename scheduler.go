package coro

import (
	"sync"
)

// ctxChunkSize is the number of ctx slots per node in a ctxQueue's linked
// list: large enough for cache locality, small enough to recycle cheaply
// through a sync.Pool.
const ctxChunkSize = 128

// ctxChunk is a fixed-size node in a ctxQueue: readPos/writePos cursors give
// O(1) push/pop without shifting elements.
type ctxChunk struct {
	slots   [ctxChunkSize]*Ctx
	next    *ctxChunk
	readPos int
	pos     int
}

var ctxChunkPool = sync.Pool{
	New: func() any { return &ctxChunk{} },
}

func newCtxChunk() *ctxChunk {
	c := ctxChunkPool.Get().(*ctxChunk)
	c.pos, c.readPos, c.next = 0, 0, nil
	return c
}

func returnCtxChunk(c *ctxChunk) {
	for i := 0; i < c.pos; i++ {
		c.slots[i] = nil
	}
	c.pos, c.readPos, c.next = 0, 0, nil
	ctxChunkPool.Put(c)
}

// ctxQueue is a chunked-linked-list FIFO of *Ctx, one per priority level.
// NOT thread-safe: callers must hold the owning Scheduler's mutex.
type ctxQueue struct {
	head, tail *ctxChunk
	length     int
}

func (q *ctxQueue) PushBack(c *Ctx) {
	if q.tail == nil {
		q.tail = newCtxChunk()
		q.head = q.tail
	}
	if q.tail.pos == ctxChunkSize {
		next := newCtxChunk()
		q.tail.next = next
		q.tail = next
	}
	q.tail.slots[q.tail.pos] = c
	q.tail.pos++
	q.length++
}

func (q *ctxQueue) PopFront() (*Ctx, bool) {
	if q.head == nil || q.head.readPos >= q.head.pos {
		if q.head != nil && q.head == q.tail {
			q.head.pos, q.head.readPos = 0, 0
		}
		return nil, false
	}
	c := q.head.slots[q.head.readPos]
	q.head.slots[q.head.readPos] = nil
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos, q.head.readPos = 0, 0
		} else {
			old := q.head
			q.head = q.head.next
			returnCtxChunk(old)
		}
	}
	return c, true
}

// Front peeks without removing. Choose does not call it: it rotates with
// PopFront/PushBack instead.
func (q *ctxQueue) Front() (*Ctx, bool) {
	if q.head == nil || q.head.readPos >= q.head.pos {
		return nil, false
	}
	return q.head.slots[q.head.readPos], true
}

// Remove deletes the first occurrence of target, preserving relative order
// of the rest. O(n) in queue length — acceptable since removal only happens
// on migration/destruction, not on the scheduling hot path.
func (q *ctxQueue) Remove(target *Ctx) bool {
	items := make([]*Ctx, 0, q.length)
	found := false
	for {
		c, ok := q.PopFront()
		if !ok {
			break
		}
		if !found && c == target {
			found = true
			continue
		}
		items = append(items, c)
	}
	for _, c := range items {
		q.PushBack(c)
	}
	return found
}

func (q *ctxQueue) Len() int { return q.length }

// Scheduler is the O(1), priority-indexed per-environment runnable queue:
// an array of P FIFO queues plus a bitmap of non-empty levels.
type Scheduler struct {
	mu      sync.Mutex
	queues  [NumPriorities]ctxQueue
	bitmap  uint32
	count   int
	current *Ctx
	idle    *Ctx
}

// NewScheduler returns a Scheduler whose choose() falls back to idleCtx when
// nothing else is runnable.
func NewScheduler(idleCtx *Ctx) *Scheduler {
	return &Scheduler{idle: idleCtx}
}

// Add enqueues ctx onto its priority's queue.
func (s *Scheduler) Add(c *Ctx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(c)
}

func (s *Scheduler) addLocked(c *Ctx) {
	p := c.Priority()
	s.queues[p].PushBack(c)
	s.bitmap |= 1 << uint(p)
	s.count++
}

// Remove removes ctx from whichever priority queue currently holds it.
func (s *Scheduler) Remove(c *Ctx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(c)
}

func (s *Scheduler) removeLocked(c *Ctx) bool {
	p := c.Priority()
	if !s.queues[p].Remove(c) {
		return false
	}
	s.count--
	if s.queues[p].Len() == 0 {
		s.bitmap &^= 1 << uint(p)
	}
	return true
}

// Count returns the number of ctxs currently owned by this scheduler
// (enqueued, or current).
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Current returns the ctx presently running on this scheduler's env, if any.
func (s *Scheduler) Current() *Ctx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Scheduler) setCurrent(c *Ctx) {
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
}

// Choose selects the next ctx to run: in the highest-priority queue
// containing a schedulable ctx, the front is moved to the back and, if
// schedulable, returned, so equal-priority ctxs run in arrival order.
// WAITING ctxs remain enrolled but are skipped, and each one skipped is also
// moved to the back of its queue.
// If no schedulable ctx exists anywhere, the env's idle ctx is returned.
func (s *Scheduler) Choose() *Ctx {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := NumPriorities - 1; i >= 0; i-- {
		bit := uint32(1) << uint(i)
		if s.bitmap&bit == 0 {
			continue
		}
		q := &s.queues[i]
		n := q.Len()
		for attempt := 0; attempt < n; attempt++ {
			front, ok := q.PopFront()
			if !ok {
				break
			}
			q.PushBack(front)
			if front.schedulable() {
				return front
			}
			// not schedulable (WAITING): stays enrolled, try the next one.
		}
	}
	return s.idle
}

// ChangePriority moves ctx from oldPriority's queue to the tail of
// newPriority's queue. It does nothing if ctx is not in oldPriority's queue.
// Callers update ctx's own priority field to newPriority as well, since
// Remove locates a ctx by ctx.Priority().
func (s *Scheduler) ChangePriority(c *Ctx, oldPriority, newPriority int) {
	if oldPriority == newPriority {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.queues[oldPriority].Remove(c) {
		return
	}
	if s.queues[oldPriority].Len() == 0 {
		s.bitmap &^= 1 << uint(oldPriority)
	}
	s.queues[newPriority].PushBack(c)
	s.bitmap |= 1 << uint(newPriority)
}

// Wake clears WAITING on ctx and leaves it enrolled (it was never dequeued).
// It does not nudge the env; Env.wakeCtx calls Wake and then Env.Wake.
func (s *Scheduler) Wake(c *Ctx) {
	c.clearFlag(flagWaiting)
}
