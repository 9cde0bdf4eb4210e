package coro

import (
	"sync"
	"sync/atomic"
)

// Flag bits for Ctx.flags
const (
	flagWaiting uint32 = 1 << iota
	flagLocked
	flagBind
	flagSharedStack
	flagSwitching
	flagIdle
	flagDetached
	flagNoScheduleThread
)

// StackConfig describes the stack a ctx runs on. The byte region itself is
// not modeled explicitly: a Ctx's execution is backed by a dedicated
// goroutine (which already owns a growable stack), so StackConfig exists for
// API fidelity, diagnostics, and Size()-based accounting.
type StackConfig struct {
	Size int
}

// ctxResult is the type-erased result slot of a ctx, delivering its outcome
// to Join/JoinTimeout callers via a small set of waiters, each handed a
// channel that is closed on settlement.
type ctxResult struct {
	mu      sync.Mutex
	done    bool
	value   any
	err     error
	waiters []chan struct{}
}

func (r *ctxResult) settle(value any, err error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.value = value
	r.err = err
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// subscribe returns (nil, true, value, err) if already settled, otherwise a
// channel that is closed once settle is called.
func (r *ctxResult) subscribe() (ch chan struct{}, settled bool, value any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil, true, r.value, r.err
	}
	ch = make(chan struct{})
	r.waiters = append(r.waiters, ch)
	return ch, false, nil, nil
}

// Ctx is a single schedulable coroutine.
type Ctx struct {
	id     uint64
	name   string
	stack  StackConfig
	entry  func(*Ctx) (any, error)
	events *EventTarget

	manager *Manager

	state ctxState
	flags atomic.Uint32

	mu       sync.Mutex // guards priority, env, and wait-list-membership bookkeeping
	priority int
	env      *Env

	ret ctxResult

	// gate pair backing the context-switch contract with the owning env
	resumeCh chan struct{}
	parkCh   chan struct{}
	started  atomic.Bool

	// schedNext is not used: the scheduler's per-priority queues
	// (scheduler.go) are chunked arrays of *Ctx, not intrusive links.
	schedNext *Ctx
}

// ID returns the ctx's process-unique identifier.
func (c *Ctx) ID() uint64 { return c.id }

// Name returns the ctx's diagnostic name, possibly empty.
func (c *Ctx) Name() string { return c.name }

// State returns the ctx's current lifecycle stage.
func (c *Ctx) State() CtxState { return c.state.Load() }

// Priority returns the ctx's current scheduling priority.
func (c *Ctx) Priority() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priority
}

// Env returns the environment currently hosting this ctx, or nil if unassigned.
func (c *Ctx) Env() *Env {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.env
}

// Events exposes the ctx's lifecycle EventTarget. This package dispatches
// state_changed, priority_changed, env_set and unlocked_destroy on it;
// stack_set and locked_destroy are never dispatched.
func (c *Ctx) Events() *EventTarget { return c.events }

func (c *Ctx) hasFlag(f uint32) bool {
	return c.flags.Load()&f != 0
}

func (c *Ctx) setFlag(f uint32) {
	c.flags.Or(f)
}

func (c *Ctx) clearFlag(f uint32) {
	c.flags.And(^f)
}

// Detached reports whether Detach has been called on this ctx.
func (c *Ctx) Detached() bool { return c.hasFlag(flagDetached) }

// Locked reports whether the ctx currently refuses destruction.
func (c *Ctx) Locked() bool { return c.hasFlag(flagLocked) }

// schedulable reports whether the scheduler may pick this ctx to run.
func (c *Ctx) schedulable() bool {
	return c.State() != CtxFinished && !c.hasFlag(flagWaiting)
}

// movable reports whether the manager's maintenance loop may migrate this
// ctx to a different env.
func (c *Ctx) movable() bool {
	return c.State() != CtxRunning &&
		!c.hasFlag(flagBind) &&
		!c.hasFlag(flagSharedStack) &&
		!c.hasFlag(flagSwitching)
}

// destroyable reports whether the ctx may be destroyed right now.
func (c *Ctx) destroyable() bool {
	return !c.hasFlag(flagLocked)
}

// setState applies the monotone state machine invariant and then dispatches
// "state_changed". The ctx's lock is not held during the dispatch.
func (c *Ctx) setState(next CtxState) {
	prev := c.state.Set(next)
	if prev == next || prev == CtxFinished {
		return
	}
	c.events.DispatchEvent(newEvent("state_changed", [2]CtxState{prev, next}))
}

// SetPriority changes the ctx's scheduling priority, clamping into
// [0, NumPriorities). If the ctx is currently enqueued on a scheduler it is
// moved to the new priority's queue, preserving arrival order at the tail —
// even if the ctx is WAITING.
func (c *Ctx) SetPriority(priority int) {
	priority = clampPriority(priority)

	c.mu.Lock()
	old := c.priority
	if old == priority {
		c.mu.Unlock()
		return
	}
	c.priority = priority
	env := c.env
	c.mu.Unlock()

	if env != nil {
		env.scheduler.ChangePriority(c, old, priority)
	}

	c.events.DispatchEvent(newEvent("priority_changed", [2]int{old, priority}))
}

// startOnce launches the ctx's backing goroutine (run) the first time it is
// switched into; run wires entry, the result slot, and the final state
// transition.
func (c *Ctx) startOnce() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

func (c *Ctx) run() {
	<-c.resumeCh
	c.setState(CtxRunning)

	gid := getGoroutineID()
	bindGoroutine(gid, c)
	defer unbindGoroutine(gid)

	value, err := c.safeExecuteEntry()

	c.setState(CtxFinished)
	c.ret.settle(value, err)
	c.parkCh <- struct{}{}
}

func (c *Ctx) safeExecuteEntry() (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = WrapError("coro: ctx entry panicked", e)
			} else {
				err = WrapError("coro: ctx entry panicked", newPreconditionError(nil, "%v", r))
			}
		}
	}()
	return c.entry(c)
}

// scheduleSwitch is the single suspension primitive of this runtime: it
// parks the calling ctx's goroutine until its env resumes it. Every blocking
// operation in this package (Yield, mutex/condvar/semaphore wait, channel
// push/pop, Join) funnels through this after registering on whatever wait
// list is relevant.
func (c *Ctx) scheduleSwitch() {
	c.setState(CtxSuspended)
	c.parkCh <- struct{}{}
	<-c.resumeCh
	c.setState(CtxRunning)
}
