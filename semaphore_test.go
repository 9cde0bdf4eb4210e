package coro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinarySemaphoreTryAcquireRespectsState(t *testing.T) {
	s := NewBinarySemaphore(true)
	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())
	s.Release()
	assert.True(t, s.TryAcquire())
}

func TestBinarySemaphoreAcquireBlocksUntilRelease(t *testing.T) {
	m := NewManager()
	defer m.Uninit()

	s := NewBinarySemaphore(false)
	acquired := make(chan struct{})

	_, err := m.Spawn(func(c *Ctx) (any, error) {
		s.Acquire()
		close(acquired)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-acquired:
		t.Fatal("acquired before release")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for acquire")
	}
}

func TestCountingSemaphoreRejectsOutOfRangeInitial(t *testing.T) {
	assert.Panics(t, func() { NewCountingSemaphore(5, 3) })
	assert.Panics(t, func() { NewCountingSemaphore(-1, 3) })
}

func TestCountingSemaphoreAcquireDecrementsAndBlocksAtZero(t *testing.T) {
	m := NewManager()
	defer m.Uninit()

	s := NewCountingSemaphore(1, 3)
	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())

	acquired := make(chan struct{})
	_, err := m.Spawn(func(c *Ctx) (any, error) {
		s.Acquire()
		close(acquired)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-acquired:
		t.Fatal("acquired with count at zero")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release(1)

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for acquire after release")
	}
}

func TestCountingSemaphoreReleaseBlocksAtCapacity(t *testing.T) {
	m := NewManager()
	defer m.Uninit()

	s := NewCountingSemaphore(2, 2)
	released := make(chan struct{})

	_, err := m.Spawn(func(c *Ctx) (any, error) {
		s.Release(1)
		close(released)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-released:
		t.Fatal("release at capacity should block")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, s.TryAcquire())

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for release to unblock")
	}
}

func TestCountingSemaphoreTryAcquireUntilDeadline(t *testing.T) {
	m := NewManager()
	defer m.Uninit()

	s := NewCountingSemaphore(0, 1)
	resultCh := make(chan bool, 1)
	_, err := m.Spawn(func(c *Ctx) (any, error) {
		ok := s.TryAcquireUntil(time.Now().Add(30 * time.Millisecond))
		resultCh <- ok
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case ok := <-resultCh:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}
