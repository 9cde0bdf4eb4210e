package coro

// This file holds the small shared mechanics every coroutine-aware
// synchronization primitive (Mutex, Cond, BinarySemaphore, CountingSemaphore,
// Chan) is built from: registering the calling ctx on a primitive's own
// waiterList, then suspending it via scheduleSwitch, and later waking it by
// clearing WAITING and nudging its env. This is the same park/wake protocol
// Join uses, generalized from a single wait list to many per-primitive ones.

// requireCoroutine fetches the calling ctx or panics with a precondition
// violation, for primitives that only make sense from coroutine context.
func requireCoroutine(op string) *Ctx {
	c := currentCtx()
	if c == nil {
		panic(newPreconditionError(ErrNotCoroutine, "%s must be called from coroutine context", op))
	}
	return c
}

// parkOn registers caller on list, flags it WAITING, and suspends it. The
// caller resumes once some other ctx (or goroutine) has called wake on it.
func parkOn(list *waiterList, caller *Ctx) {
	list.add(caller)
	caller.setFlag(flagWaiting)
	caller.scheduleSwitch()
}

// wake clears c's WAITING flag and nudges its env's schedule loop, so that a
// ctx parked via parkOn becomes runnable again. Safe to call even if c has no
// env yet assigned (e.g. racing Spawn), in which case the flag alone is
// cleared and the next env to adopt c will see it schedulable.
func wake(c *Ctx) {
	if env := c.Env(); env != nil {
		env.wakeCtx(c)
		return
	}
	c.clearFlag(flagWaiting)
}
