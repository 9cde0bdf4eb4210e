package coro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtxRegistryRegisterAndAll(t *testing.T) {
	r := newCtxRegistry()
	c1 := newTestCtx(1, 0)
	c2 := newTestCtx(2, 0)
	r.Register(c1)
	r.Register(c2)

	require.Equal(t, 2, r.Len())
	all := r.All()
	assert.Len(t, all, 2)
}

func TestCtxRegistryScavengeRemovesFinishedDetached(t *testing.T) {
	r := newCtxRegistry()
	c := newTestCtx(1, 0)
	c.setFlag(flagDetached)
	c.state.Set(CtxFinished)
	r.Register(c)

	r.Scavenge(10)
	assert.Equal(t, 0, r.Len())
}

func TestCtxRegistryScavengeKeepsLiveNonDetached(t *testing.T) {
	r := newCtxRegistry()
	c := newTestCtx(1, 0)
	r.Register(c)

	r.Scavenge(10)
	assert.Equal(t, 1, r.Len())
}

func TestCtxRegistryScavengeBatchesAcrossCalls(t *testing.T) {
	r := newCtxRegistry()
	for i := 0; i < 10; i++ {
		c := newTestCtx(uint64(i+1), 0)
		c.setFlag(flagDetached)
		c.state.Set(CtxFinished)
		r.Register(c)
	}

	r.Scavenge(4)
	assert.Equal(t, 6, r.Len())
	r.Scavenge(4)
	assert.Equal(t, 2, r.Len())
	r.Scavenge(4)
	assert.Equal(t, 0, r.Len())
}
