package coro

import (
	"sync/atomic"
)

// CtxState is a ctx's lifecycle stage.
//
// State Machine:
//
//	Created (0) -> Running (1)   [first switch into entry]
//	Running (1) -> Suspended (2) [schedule_switch from inside entry]
//	Suspended (2) -> Running (1) [chosen again by the scheduler]
//	Running (1) -> Finished (3)  [entry returns or panics]
//
// Finished is absorbing: once reached, SetState is a documented no-op.
type CtxState uint64

const (
	// CtxCreated is the state between ctx construction and its first schedule.
	CtxCreated CtxState = 0
	// CtxRunning is set while the ctx's entry is executing on the env.
	CtxRunning CtxState = 1
	// CtxSuspended is set whenever the ctx has called schedule_switch (directly
	// or transitively) and is parked awaiting its next turn.
	CtxSuspended CtxState = 2
	// CtxFinished is the terminal state; see the type doc for the absorbing rule.
	CtxFinished CtxState = 3
)

func (s CtxState) String() string {
	switch s {
	case CtxCreated:
		return "created"
	case CtxRunning:
		return "running"
	case CtxSuspended:
		return "suspended"
	case CtxFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// EnvState is an environment's lifecycle stage, mirroring CtxState's shape
// but with its own vocabulary.
type EnvState uint64

const (
	// EnvCreated is set between env construction and the first call to Run.
	EnvCreated EnvState = 0
	// EnvBusy is set while the env's schedule loop is actively switching ctxs.
	EnvBusy EnvState = 1
	// EnvIdle is set while the env is parked on its wake condition variable.
	EnvIdle EnvState = 2
	// EnvBlocked names an env whose own goroutine is itself blocked. No code
	// path in this package stores it.
	EnvBlocked EnvState = 3
	// EnvDestroying is set once the manager has begun tearing the env down.
	EnvDestroying EnvState = 4
)

func (s EnvState) String() string {
	switch s {
	case EnvCreated:
		return "created"
	case EnvBusy:
		return "busy"
	case EnvIdle:
		return "idle"
	case EnvBlocked:
		return "blocked"
	case EnvDestroying:
		return "destroying"
	default:
		return "unknown"
	}
}

// fastState is a lock-free uint64 state machine with cache-line padding to
// avoid false sharing between an env's own goroutine and foreign goroutines
// (migration, wake-ups) that read or CAS it concurrently.
type fastState struct { //nolint:govet // betteralign:ignore
	_ [64]byte //nolint:unused
	v atomic.Uint64
	_ [56]byte //nolint:unused
}

func newFastState(initial uint64) *fastState {
	s := &fastState{}
	s.v.Store(initial)
	return s
}

func (s *fastState) Load() uint64 {
	return s.v.Load()
}

func (s *fastState) Store(v uint64) {
	s.v.Store(v)
}

func (s *fastState) TryTransition(from, to uint64) bool {
	return s.v.CompareAndSwap(from, to)
}

// ctxState wraps fastState with the one rule generic CAS can't express on its
// own: once Finished, every subsequent SetState call must be a no-op rather
// than merely "rejected".
type ctxState struct {
	s *fastState
}

func newCtxState() ctxState {
	return ctxState{s: newFastState(uint64(CtxCreated))}
}

func (c ctxState) Load() CtxState {
	return CtxState(c.s.Load())
}

// Set unconditionally stores next, unless the current state is already
// Finished, in which case the call is a no-op. Returns the state actually
// observed as current immediately before the attempted mutation.
func (c ctxState) Set(next CtxState) CtxState {
	for {
		cur := CtxState(c.s.Load())
		if cur == CtxFinished {
			return cur
		}
		if c.s.TryTransition(uint64(cur), uint64(next)) {
			return cur
		}
	}
}

type envState struct {
	s *fastState
}

func newEnvState() envState {
	return envState{s: newFastState(uint64(EnvCreated))}
}

func (e envState) Load() EnvState {
	return EnvState(e.s.Load())
}

func (e envState) Store(next EnvState) {
	e.s.Store(uint64(next))
}

func (e envState) TryTransition(from, to EnvState) bool {
	return e.s.TryTransition(uint64(from), uint64(to))
}
