package coro

import "sync"

// Mutex is a coroutine-aware mutual-exclusion lock: a single owner plus a
// FIFO wait list. Unlock hands ownership directly to the head waiter (if
// any) rather than releasing it for every parked ctx to race over, avoiding
// the lock-convoy behavior that a release-then-broadcast scheme would
// invite.
type Mutex struct {
	mu      sync.Mutex
	owner   *Ctx
	waiters waiterList
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex { return &Mutex{} }

// Lock blocks the calling ctx until it owns m. Must be called from
// coroutine context.
func (m *Mutex) Lock() {
	caller := requireCoroutine("Mutex.Lock")

	m.mu.Lock()
	if m.owner == nil {
		m.owner = caller
		m.mu.Unlock()
		return
	}
	m.waiters.add(caller)
	caller.setFlag(flagWaiting)
	m.mu.Unlock()

	caller.scheduleSwitch()
	// Unlock has already set m.owner == caller by the time it woke us.
}

// TryLock acquires m without blocking, reporting whether it succeeded.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != nil {
		return false
	}
	m.owner = requireCoroutine("Mutex.TryLock")
	return true
}

// Unlock releases m, which must be owned by the calling ctx, handing
// ownership directly to the longest-waiting blocked ctx if one exists.
func (m *Mutex) Unlock() {
	caller := requireCoroutine("Mutex.Unlock")

	m.mu.Lock()
	if m.owner != caller {
		m.mu.Unlock()
		panic(newPreconditionError(nil, "Mutex.Unlock called by non-owner"))
	}

	next, ok := m.waiters.removeFront()
	if !ok {
		m.owner = nil
		m.mu.Unlock()
		return
	}
	m.owner = next
	m.mu.Unlock()

	wake(next)
}

// morphIn hands ownership of m directly to c if m is free, or else enqueues c
// onto m's own wait list without re-flagging it WAITING (it is already
// flagged from Cond.Wait). This is the condition variable's wait-morphing
// move: a notified waiter transfers straight onto the mutex it must
// re-acquire, instead of waking to race every other waiter for it.
func (m *Mutex) morphIn(c *Ctx) {
	m.mu.Lock()
	if m.owner == nil {
		m.owner = c
		m.mu.Unlock()
		wake(c)
		return
	}
	m.waiters.add(c)
	m.mu.Unlock()
}
