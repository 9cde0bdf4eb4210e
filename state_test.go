package coro

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCtxStateStartsCreated(t *testing.T) {
	s := newCtxState()
	assert.Equal(t, CtxCreated, s.Load())
}

func TestCtxStateSetReturnsPreviousValue(t *testing.T) {
	s := newCtxState()
	prev := s.Set(CtxRunning)
	assert.Equal(t, CtxCreated, prev)
	assert.Equal(t, CtxRunning, s.Load())

	prev = s.Set(CtxSuspended)
	assert.Equal(t, CtxRunning, prev)
	assert.Equal(t, CtxSuspended, s.Load())
}

func TestCtxStateFinishedIsAbsorbing(t *testing.T) {
	s := newCtxState()
	s.Set(CtxRunning)
	s.Set(CtxFinished)
	assert.Equal(t, CtxFinished, s.Load())

	prev := s.Set(CtxRunning)
	assert.Equal(t, CtxFinished, prev, "Set after Finished must be a no-op and report Finished as the observed state")
	assert.Equal(t, CtxFinished, s.Load())
}

func TestCtxStateStringValues(t *testing.T) {
	assert.Equal(t, "created", CtxCreated.String())
	assert.Equal(t, "running", CtxRunning.String())
	assert.Equal(t, "suspended", CtxSuspended.String())
	assert.Equal(t, "finished", CtxFinished.String())
	assert.Equal(t, "unknown", CtxState(99).String())
}

func TestEnvStateStoreAndTryTransition(t *testing.T) {
	s := newEnvState()
	assert.Equal(t, EnvCreated, s.Load())

	s.Store(EnvBusy)
	assert.Equal(t, EnvBusy, s.Load())

	assert.True(t, s.TryTransition(EnvBusy, EnvIdle))
	assert.Equal(t, EnvIdle, s.Load())

	assert.False(t, s.TryTransition(EnvBusy, EnvDestroying), "transition from a stale expected state must fail")
	assert.Equal(t, EnvIdle, s.Load())
}

func TestEnvStateStringValues(t *testing.T) {
	assert.Equal(t, "created", EnvCreated.String())
	assert.Equal(t, "busy", EnvBusy.String())
	assert.Equal(t, "idle", EnvIdle.String())
	assert.Equal(t, "blocked", EnvBlocked.String())
	assert.Equal(t, "destroying", EnvDestroying.String())
	assert.Equal(t, "unknown", EnvState(99).String())
}

func TestFastStateTryTransitionOnlyFromExpected(t *testing.T) {
	fs := newFastState(1)
	assert.False(t, fs.TryTransition(2, 3))
	assert.Equal(t, uint64(1), fs.Load())

	assert.True(t, fs.TryTransition(1, 3))
	assert.Equal(t, uint64(3), fs.Load())
}
