package coro

import (
	"sync"
	"sync/atomic"
	"time"
)

// Manager owns the set of environments and is the factory for envs and
// ctxs. It runs a background maintenance loop that reclaims
// finished/detached ctxs, destroys idle envs (honoring a minimum count),
// and rebalances workload by migrating movable ctxs.
type Manager struct {
	opts *managerOptions

	mu   sync.RWMutex // favors readers (schedule loops querying workload)
	envs []*Env

	nextEnvID atomic.Uint64
	nextCtxID atomic.Uint64

	registry *ctxRegistry

	closed          atomic.Bool
	maintenanceStop chan struct{}
	maintenanceDone chan struct{}
}

// NewManager constructs a Manager and starts its initial envs and
// maintenance loop. Callers own the returned Manager's lifetime and must
// call Uninit when done.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		opts:            resolveManagerOptions(opts),
		registry:        newCtxRegistry(),
		maintenanceStop: make(chan struct{}),
		maintenanceDone: make(chan struct{}),
	}
	for i := 0; i < m.opts.initialEnvCount; i++ {
		env := m.newEnv()
		go env.run()
	}
	go m.maintain()
	return m
}

func (m *Manager) newEnv() *Env {
	id := m.nextEnvID.Add(1)
	env := newEnv(id, m)
	m.mu.Lock()
	m.envs = append(m.envs, env)
	m.mu.Unlock()
	logf(m.opts.logger, LevelInfo, "manager", id, 0, nil, "env created")
	return env
}

// Uninit tears the manager down: every env is asked to shut down, and the
// maintenance loop is stopped. Ctxs that have not finished are abandoned;
// their goroutines remain parked since there is no forced cancellation.
func (m *Manager) Uninit() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	close(m.maintenanceStop)
	<-m.maintenanceDone

	m.mu.RLock()
	envs := append([]*Env(nil), m.envs...)
	m.mu.RUnlock()

	for _, env := range envs {
		env.Shutdown()
	}
}

// Spawn creates a ctx running entry and schedules it onto the
// lowest-workload env's create_ctx.
func (m *Manager) Spawn(entry func(*Ctx) (any, error), opts ...CtxOption) (*Ctx, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	cfg := resolveCtxOptions(opts)

	c := &Ctx{
		id:      m.nextCtxID.Add(1),
		name:    cfg.name,
		stack:   StackConfig{Size: cfg.stackSize},
		entry:   entry,
		events:  NewEventTarget(),
		manager: m,
		state:   newCtxState(),

		priority: cfg.priority,

		resumeCh: make(chan struct{}),
		parkCh:   make(chan struct{}),
	}
	if cfg.bindEnv {
		c.setFlag(flagBind)
	}
	if cfg.sharedStack {
		c.setFlag(flagSharedStack)
	}
	if cfg.detached {
		c.setFlag(flagDetached)
	}

	env := m.leastLoadedEnv()
	if env == nil {
		env = m.newEnv()
		go env.run()
	}

	env.addCtx(c)
	m.registry.Register(c)

	logf(m.opts.logger, LevelDebug, "ctx", env.id, c.id, nil, "ctx spawned name=%q priority=%d", c.name, c.priority)
	return c, nil
}

// Detach marks c as detached: once finished, the manager reclaims it
// automatically instead of waiting for a Join.
func (c *Ctx) Detach() {
	c.setFlag(flagDetached)
	if c.State() == CtxFinished && c.manager != nil {
		c.manager.reclaim(c)
	}
}

func (m *Manager) leastLoadedEnv() *Env {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Env
	bestLoad := -1
	for _, env := range m.envs {
		if env.State() == EnvDestroying {
			continue
		}
		load := env.Workload()
		if bestLoad == -1 || load < bestLoad {
			best = env
			bestLoad = load
		}
	}
	return best
}

func (m *Manager) reclaim(c *Ctx) {
	_ = c // the registry's own Scavenge pass drops the weak entry; nothing
	// else to do here today, but lifecycle-event listeners can observe
	// "unlocked_destroy" via c.Events() if they need eager notification.
	if !c.Locked() {
		c.events.DispatchEvent(newEvent("unlocked_destroy", nil))
	}
}

// Join blocks the calling ctx (which must be running in coroutine context)
// until target finishes, returning its result.
func (m *Manager) Join(target *Ctx) (any, error) {
	value, err, ok := m.wait(target, 0, false)
	if !ok {
		return nil, ErrDetached
	}
	return value, err
}

// JoinTimeout is Join with a deadline: ok is false if the deadline elapsed
// first.
func (m *Manager) JoinTimeout(target *Ctx, timeout time.Duration) (value any, err error, ok bool) {
	return m.wait(target, timeout, true)
}

func (m *Manager) wait(target *Ctx, timeout time.Duration, hasTimeout bool) (value any, err error, ok bool) {
	caller := currentCtx()
	if caller == nil {
		panic(newPreconditionError(ErrNotCoroutine, "Join/JoinTimeout must be called from coroutine context"))
	}

	ch, settled, value, err := target.ret.subscribe()
	if settled {
		return value, err, true
	}
	if target.Detached() {
		// A detached ctx's result belongs to the manager, not to callers: it
		// is reclaimed on finish rather than held for a Join to consume, so
		// waiting on one that hasn't settled yet would block forever.
		return nil, nil, false
	}

	env := caller.Env()
	caller.setFlag(flagWaiting)

	result := make(chan bool, 1)
	go func() {
		if hasTimeout {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			select {
			case <-ch:
				result <- true
			case <-timer.C:
				result <- false
			}
		} else {
			<-ch
			result <- true
		}
		if env != nil {
			env.wakeCtx(caller)
		} else {
			caller.clearFlag(flagWaiting)
		}
	}()

	caller.scheduleSwitch()

	if !<-result {
		return nil, nil, false
	}
	_, _, value, err = target.ret.subscribe()
	return value, err, true
}

// ConvertThisThreadToScheduleThread adopts the calling goroutine as a new
// env, running its schedule loop inline until the env is shut down (for
// example by Uninit). It blocks for the env's entire lifetime and returns
// the Env only after its schedule loop has exited.
func (m *Manager) ConvertThisThreadToScheduleThread() *Env {
	env := m.newEnv()
	env.run()
	return env
}

// Stats is a point-in-time snapshot of manager-wide occupancy, used for
// diagnostics and tests.
type Stats struct {
	EnvCount int
	CtxCount int
	Workload []int
}

// Stats returns a snapshot of the manager's current envs and registered ctxs.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	workload := make([]int, len(m.envs))
	for i, env := range m.envs {
		workload[i] = env.Workload()
	}
	return Stats{
		EnvCount: len(m.envs),
		CtxCount: m.registry.Len(),
		Workload: workload,
	}
}

// maintain is the manager's background maintenance loop: reclaim finished
// ctxs, destroy idle envs above the configured floor, and migrate at most
// one movable ctx per round from the busiest env to the idlest.
func (m *Manager) maintain() {
	defer close(m.maintenanceDone)

	ticker := time.NewTicker(m.opts.maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.maintenanceStop:
			return
		case <-ticker.C:
			m.registry.Scavenge(256)
			m.destroyIdleEnvs()
			m.migrateOne()
		}
	}
}

func (m *Manager) destroyIdleEnvs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget := len(m.envs) - m.opts.minEnvCount
	if budget <= 0 {
		return
	}

	now := time.Now()
	kept := make([]*Env, 0, len(m.envs))
	for _, env := range m.envs {
		if budget > 0 &&
			env.State() == EnvIdle &&
			env.Workload() == 0 &&
			now.Sub(env.LastSchedule()) > m.opts.envIdleTimeout {
			env.Shutdown()
			budget--
			logf(m.opts.logger, LevelInfo, "manager", env.id, 0, nil, "env destroyed (idle timeout)")
			continue
		}
		kept = append(kept, env)
	}
	m.envs = kept
}

// migrateOne moves at most one movable ctx from the busiest env to the
// idlest, if the workload gap is at least the configured threshold. Lock order
// is manager -> env -> ctx -> primitive wait-list.
func (m *Manager) migrateOne() {
	m.mu.RLock()
	envs := append([]*Env(nil), m.envs...)
	m.mu.RUnlock()

	if len(envs) < 2 {
		return
	}

	var busiest, idlest *Env
	for _, env := range envs {
		if env.State() == EnvDestroying {
			continue
		}
		if busiest == nil || env.Workload() > busiest.Workload() {
			busiest = env
		}
		if idlest == nil || env.Workload() < idlest.Workload() {
			idlest = env
		}
	}
	if busiest == nil || idlest == nil || busiest == idlest {
		return
	}
	if busiest.Workload()-idlest.Workload() < m.opts.migrationThreshold {
		return
	}

	// The movability check and the dequeue must happen under the same
	// busiest.scheduler.mu critical section: releasing it in between would
	// let busiest's own schedule loop Choose (and then switchTo) the same
	// ctx before migrateOne removes it, racing the source env's gate pair
	// against the reassignment below.
	busiest.scheduler.mu.Lock()
	var target *Ctx
	for p := NumPriorities - 1; p >= 0 && target == nil; p-- {
		q := &busiest.scheduler.queues[p]
		n := q.Len()
		for i := 0; i < n; i++ {
			c, ok := q.PopFront()
			if !ok {
				break
			}
			q.PushBack(c)
			if c == busiest.scheduler.current {
				continue
			}
			target = c
			break
		}
	}
	if target == nil {
		busiest.scheduler.mu.Unlock()
		return
	}

	target.mu.Lock()
	movable := target.movable()
	target.mu.Unlock()

	if !movable || target == busiest.scheduler.current {
		busiest.scheduler.mu.Unlock()
		return
	}

	busiest.scheduler.removeLocked(target)
	busiest.scheduler.mu.Unlock()

	target.mu.Lock()
	target.env = idlest
	target.mu.Unlock()

	idlest.scheduler.Add(target)
	target.events.DispatchEvent(newEvent("env_set", idlest))
	idlest.Wake()

	logf(m.opts.logger, LevelDebug, "manager", busiest.id, target.id, nil,
		"migrated ctx to env=%d", idlest.id)
}
