// Package coro provides a stackful, cooperatively scheduled coroutine
// runtime: user-space execution contexts ("ctx") that suspend and resume at
// arbitrary points without collapsing their call stack, multiplexed across a
// small set of worker goroutines ("env") by an O(1) priority-indexed
// scheduler.
//
// # Architecture
//
// A [Manager] owns a set of [Env] workers and is the factory for both. Each
// Env drives exactly one [Scheduler] and one idle ctx; its schedule loop
// repeatedly asks the scheduler for the next runnable ctx and switches into
// it. A running ctx suspends by calling an operation that transitively
// invokes its own schedule_switch (Yield, SleepFor/SleepUntil, mutex/condvar
// wait, semaphore acquire, channel push/pop, or Join) — never by being
// preempted.
//
// Since Go offers no portable register-level context switch, each Ctx is
// backed by its own dedicated goroutine and a pair of unbuffered gate
// channels (resumeCh/parkCh): the owning Env's driver goroutine blocks on
// this pair for the ctx's entire turn, which reproduces the single-threaded,
// one-ctx-running-at-a-time contract a literal register swap would give.
//
// # Synchronization
//
// [Mutex], [Cond], [BinarySemaphore], [CountingSemaphore], and [Chan] all
// block the calling coroutine rather than the underlying goroutine: each
// suspends via the same wait-flag-then-schedule_switch protocol the
// scheduler and Join use, so blocked coroutines never tie up an OS thread.
//
// # Usage
//
//	m := coro.NewManager(coro.WithInitialEnvCount(2))
//	defer m.Uninit()
//
//	c, _ := m.Spawn(func(c *coro.Ctx) (any, error) {
//	    coro.ThisCo.Yield()
//	    return 42, nil
//	})
//
//	// Join itself requires coroutine context, so a caller on a plain host
//	// goroutine spawns one to wait on its behalf.
//	m.Spawn(func(caller *coro.Ctx) (any, error) {
//	    v, err := m.Join(c)
//	    fmt.Println(v, err)
//	    return nil, nil
//	})
//
// # Error Types
//
// Blocking calls made outside coroutine context panic with a
// [PreconditionError] wrapping [ErrNotCoroutine]. Sentinel errors
// ([ErrManagerClosed] from Spawn, [ErrChanClosed] from Push, [ErrDetached]
// from Join) are returned, not panicked. Timeouts are reported through bool
// results rather than [ErrTimeout].
package coro
