package coro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCtx(id uint64, priority int) *Ctx {
	c := &Ctx{
		id:       id,
		priority: priority,
		state:    newCtxState(),
		events:   NewEventTarget(),
	}
	return c
}

func TestSchedulerAddChooseRotatesWithinPriority(t *testing.T) {
	idle := newTestCtx(0, 0)
	idle.setFlag(flagIdle | flagNoScheduleThread)
	s := NewScheduler(idle)

	a := newTestCtx(1, 3)
	b := newTestCtx(2, 3)
	s.Add(a)
	s.Add(b)

	first := s.Choose()
	second := s.Choose()
	third := s.Choose()

	assert.Equal(t, a, first)
	assert.Equal(t, b, second)
	assert.Equal(t, a, third)
}

func TestSchedulerChoosePrefersHighestNonEmptyPriority(t *testing.T) {
	idle := newTestCtx(0, 0)
	s := NewScheduler(idle)

	low := newTestCtx(1, 1)
	high := newTestCtx(2, 7)
	s.Add(low)
	s.Add(high)

	require.Equal(t, high, s.Choose())
}

func TestSchedulerChooseSkipsWaitingCtxs(t *testing.T) {
	idle := newTestCtx(0, 0)
	s := NewScheduler(idle)

	waiting := newTestCtx(1, 5)
	waiting.setFlag(flagWaiting)
	runnable := newTestCtx(2, 5)
	s.Add(waiting)
	s.Add(runnable)

	assert.Equal(t, runnable, s.Choose())
}

func TestSchedulerChooseReturnsIdleWhenNothingSchedulable(t *testing.T) {
	idle := newTestCtx(0, 0)
	s := NewScheduler(idle)

	waiting := newTestCtx(1, 5)
	waiting.setFlag(flagWaiting)
	s.Add(waiting)

	assert.Equal(t, idle, s.Choose())
}

func TestSchedulerRemoveClearsBitmapWhenQueueEmpties(t *testing.T) {
	idle := newTestCtx(0, 0)
	s := NewScheduler(idle)

	c := newTestCtx(1, 2)
	s.Add(c)
	require.Equal(t, 1, s.Count())

	require.True(t, s.Remove(c))
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, idle, s.Choose())
}

func TestSchedulerChangePriorityMovesQueue(t *testing.T) {
	idle := newTestCtx(0, 0)
	s := NewScheduler(idle)

	c := newTestCtx(1, 2)
	s.Add(c)

	s.ChangePriority(c, 2, 6)
	c.priority = 6

	assert.Equal(t, c, s.Choose())
}

func TestCtxQueuePushPopFIFO(t *testing.T) {
	var q ctxQueue
	a, b, c := newTestCtx(1, 0), newTestCtx(2, 0), newTestCtx(3, 0)
	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)
	require.Equal(t, 3, q.Len())

	got, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, a, got)

	got, ok = q.PopFront()
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestCtxQueueSpansMultipleChunks(t *testing.T) {
	var q ctxQueue
	n := ctxChunkSize*2 + 3
	want := make([]*Ctx, n)
	for i := 0; i < n; i++ {
		c := newTestCtx(uint64(i+1), 0)
		want[i] = c
		q.PushBack(c)
	}
	require.Equal(t, n, q.Len())
	for i := 0; i < n; i++ {
		got, ok := q.PopFront()
		require.True(t, ok)
		assert.Equal(t, want[i], got)
	}
	_, ok := q.PopFront()
	assert.False(t, ok)
}

func TestCtxQueueRemoveMiddle(t *testing.T) {
	var q ctxQueue
	a, b, c := newTestCtx(1, 0), newTestCtx(2, 0), newTestCtx(3, 0)
	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	require.True(t, q.Remove(b))
	assert.False(t, q.Remove(b))

	first, _ := q.PopFront()
	second, _ := q.PopFront()
	assert.Equal(t, a, first)
	assert.Equal(t, c, second)
}
