package coro

import (
	"sync"
	"sync/atomic"
	"time"
)

// goroutineCtx maps a goroutine ID (per getGoroutineID) to the *Ctx pinned
// to it for that goroutine's entire lifetime. It is a package-level map,
// deliberately: this_co is inherently a per-goroutine ambient lookup (the
// coroutine equivalent of a thread-local), not a manager-scoped service. The
// "no ambient globals" rule applies to the manager/env/scheduler/stack
// factories, not to this.
var goroutineCtx sync.Map // uint64 -> *Ctx

func bindGoroutine(id uint64, c *Ctx) { goroutineCtx.Store(id, c) }
func unbindGoroutine(id uint64)       { goroutineCtx.Delete(id) }

// currentCtx returns the Ctx pinned to the calling goroutine, or nil if the
// calling goroutine is not a ctx (e.g. a plain host goroutine, or an env's
// own driver goroutine).
func currentCtx() *Ctx {
	v, ok := goroutineCtx.Load(getGoroutineID())
	if !ok {
		return nil
	}
	return v.(*Ctx)
}

var defaultManager struct {
	mu sync.Mutex
	m  *Manager
}

// Default returns the process-wide default Manager used by the
// package-level Init/Spawn/ThisCo-style helpers, creating it on first use
// with no options.
func Default() *Manager {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.m == nil {
		defaultManager.m = NewManager()
	}
	return defaultManager.m
}

// Init constructs the process-wide default Manager with the given options.
// It is a precondition violation to call Init twice without an intervening
// Uninit.
func Init(opts ...ManagerOption) {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.m != nil {
		panic(newPreconditionError(nil, "coro: Init called twice without Uninit"))
	}
	defaultManager.m = NewManager(opts...)
}

// Uninit tears down the process-wide default Manager.
func Uninit() {
	defaultManager.mu.Lock()
	m := defaultManager.m
	defaultManager.m = nil
	defaultManager.mu.Unlock()
	if m != nil {
		m.Uninit()
	}
}

// Spawn schedules entry on the process-wide default Manager.
func Spawn(entry func(*Ctx) (any, error), opts ...CtxOption) (*Ctx, error) {
	return Default().Spawn(entry, opts...)
}

// Join awaits target's result on the process-wide default Manager.
func Join(target *Ctx) (any, error) {
	return Default().Join(target)
}

// JoinTimeout awaits target's result, or the deadline, on the process-wide
// default Manager.
func JoinTimeout(target *Ctx, timeout time.Duration) (any, error, bool) {
	return Default().JoinTimeout(target, timeout)
}

// ConvertThisThreadToScheduleThread adopts the calling goroutine as an env
// of the process-wide default Manager.
func ConvertThisThreadToScheduleThread() *Env {
	return Default().ConvertThisThreadToScheduleThread()
}

// ThisCo groups in-coroutine introspection and blocking controls.
var ThisCo thisCo

type thisCo struct{}

// ID returns the calling ctx's identifier, or 0 if not called from
// coroutine context.
func (thisCo) ID() uint64 {
	if c := currentCtx(); c != nil {
		return c.id
	}
	return 0
}

// Name returns the calling ctx's diagnostic name.
func (thisCo) Name() string {
	if c := currentCtx(); c != nil {
		return c.name
	}
	return ""
}

// Yield suspends the calling ctx, re-entering the scheduler immediately;
// the scheduler may resume it again as soon as its next turn comes up.
func (thisCo) Yield() {
	c := currentCtx()
	if c == nil {
		panic(newPreconditionError(ErrNotCoroutine, "Yield must be called from coroutine context"))
	}
	c.scheduleSwitch()
}

// SleepFor suspends the calling ctx for at least d, implemented by polling
// (repeated Yield) — there is no timer wheel.
func (thisCo) SleepFor(d time.Duration) {
	ThisCo.SleepUntil(time.Now().Add(d))
}

// SleepUntil suspends the calling ctx until at least t, implemented by
// busy-polling via repeated scheduleSwitch calls — there is no timer wheel.
func (thisCo) SleepUntil(t time.Time) {
	c := currentCtx()
	if c == nil {
		panic(newPreconditionError(ErrNotCoroutine, "SleepUntil must be called from coroutine context"))
	}
	for time.Now().Before(t) {
		c.scheduleSwitch()
	}
}

// waiterList is the FIFO of ctxs parked on one synchronization primitive.
// count mirrors len(waiters) so Len can be read without taking mu.
type waiterList struct {
	mu      sync.Mutex
	waiters []*Ctx
	count   atomic.Int64
}

func (w *waiterList) add(c *Ctx) {
	w.mu.Lock()
	w.waiters = append(w.waiters, c)
	w.mu.Unlock()
	w.count.Add(1)
}

func (w *waiterList) removeFront() (*Ctx, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.waiters) == 0 {
		return nil, false
	}
	c := w.waiters[0]
	w.waiters = w.waiters[1:]
	w.count.Add(-1)
	return c, true
}

func (w *waiterList) removeAll() []*Ctx {
	w.mu.Lock()
	defer w.mu.Unlock()
	all := w.waiters
	w.waiters = nil
	w.count.Store(0)
	return all
}

func (w *waiterList) Len() int {
	return int(w.count.Load())
}
