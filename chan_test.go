package coro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedChanPushPopFIFO(t *testing.T) {
	m := NewManager()
	defer m.Uninit()

	ch := NewChan[int](2)
	done := make(chan struct{})
	var got []int

	_, err := m.Spawn(func(c *Ctx) (any, error) {
		require.NoError(t, ch.Push(1))
		require.NoError(t, ch.Push(2))
		v1, ok1 := ch.Pop()
		v2, ok2 := ch.Pop()
		got = []int{v1, v2}
		assert.True(t, ok1)
		assert.True(t, ok2)
		close(done)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	assert.Equal(t, []int{1, 2}, got)
}

func TestBoundedChanPushBlocksWhenFull(t *testing.T) {
	m := NewManager()
	defer m.Uninit()

	ch := NewChan[int](1)
	pushed := make(chan struct{})

	_, err := m.Spawn(func(c *Ctx) (any, error) {
		require.NoError(t, ch.Push(1))
		require.NoError(t, ch.Push(2))
		close(pushed)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-pushed:
		t.Fatal("second push completed before room was freed")
	case <-time.After(20 * time.Millisecond):
	}

	v, ok := ch.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case <-pushed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for second push")
	}
}

func TestUnboundedChanNeverBlocksPush(t *testing.T) {
	ch := NewChan[int](-1)
	for i := 0; i < 1000; i++ {
		require.NoError(t, ch.Push(i))
	}
	assert.Equal(t, 1000, ch.Len())
}

func TestRendezvousChanMeetsPairwise(t *testing.T) {
	m := NewManager(WithInitialEnvCount(2))
	defer m.Uninit()

	ch := NewChan[string](0)
	popped := make(chan string, 1)

	_, err := m.Spawn(func(c *Ctx) (any, error) {
		v, ok := ch.Pop()
		require.True(t, ok)
		popped <- v
		return nil, nil
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = m.Spawn(func(c *Ctx) (any, error) {
		require.NoError(t, ch.Push("hello"))
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case v := <-popped:
		assert.Equal(t, "hello", v)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rendezvous")
	}
}

func TestChanCloseUnblocksWaitersAndRejectsPush(t *testing.T) {
	m := NewManager()
	defer m.Uninit()

	ch := NewChan[int](0)
	popResult := make(chan bool, 1)

	_, err := m.Spawn(func(c *Ctx) (any, error) {
		_, ok := ch.Pop()
		popResult <- ok
		return nil, nil
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	ch.Close()

	select {
	case ok := <-popResult:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close to unblock pop")
	}

	assert.ErrorIs(t, ch.Push(1), ErrChanClosed)
}

func TestChanRangeStopsOnFalse(t *testing.T) {
	ch := NewChan[int](-1)
	for i := 0; i < 5; i++ {
		require.NoError(t, ch.Push(i))
	}

	var seen []int
	ch.Range(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})
	assert.Equal(t, []int{0, 1, 2}, seen)
}
