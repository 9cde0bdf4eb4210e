package coro

// Cond is a coroutine-aware condition variable bound to a single Mutex.
// Wait releases L and suspends atomically with respect to Notify (the
// waiter is enrolled on cv.waiters before L is released), and a notified
// waiter is wait-morphed straight onto L's own wait list rather than woken
// to re-race every other Lock caller.
type Cond struct {
	L       *Mutex
	waiters waiterList
}

// NewCond returns a Cond whose Wait/NotifyOne/NotifyAll operate against l.
func NewCond(l *Mutex) *Cond { return &Cond{L: l} }

// Wait releases cv.L (which the caller must currently hold) and suspends the
// calling ctx until a Notify call wait-morphs it onto L's wait list and L is
// in turn handed to it. By the time Wait returns, the caller again owns L.
func (cv *Cond) Wait() {
	caller := requireCoroutine("Cond.Wait")

	cv.waiters.add(caller)
	caller.setFlag(flagWaiting)
	cv.L.Unlock()

	caller.scheduleSwitch()
}

// NotifyOne wakes at most one waiter, transferring it onto cv.L's wait list.
func (cv *Cond) NotifyOne() {
	c, ok := cv.waiters.removeFront()
	if !ok {
		return
	}
	cv.L.morphIn(c)
}

// NotifyAll wakes every current waiter, transferring each onto cv.L's wait
// list in order.
func (cv *Cond) NotifyAll() {
	for _, c := range cv.waiters.removeAll() {
		cv.L.morphIn(c)
	}
}
