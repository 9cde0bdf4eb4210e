package coro

import (
	"sync"
	"sync/atomic"
	"time"
)

// Env is a worker thread hosting exactly one Scheduler and one idle ctx.
// Its schedule loop is a state-machine-driven for-loop that parks on a
// condition variable when strictly idle and is nudged awake by Wake.
type Env struct {
	id uint64

	manager   *Manager
	scheduler *Scheduler
	idle      *Ctx
	events    *EventTarget
	logger    Logger

	state envState

	wakeMu sync.Mutex
	wakeCV *sync.Cond
	woken  bool

	lastSchedule atomic.Int64 // UnixNano

	sharedStackSlot chan struct{} // size-1 channel; nothing sends on or receives from it, so SHARED_STACK ctxs are not serialized

	bindCount atomic.Int32 // never updated; workload balancing does not read it

	metrics *EnvMetrics // nil unless WithManagerMetrics(true)

	done chan struct{}
}

func newEnv(id uint64, m *Manager) *Env {
	e := &Env{
		id:              id,
		manager:         m,
		events:          NewEventTarget(),
		logger:          m.opts.logger,
		state:           newEnvState(),
		sharedStackSlot: make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	e.wakeCV = sync.NewCond(&e.wakeMu)
	e.idle = &Ctx{
		id:     0,
		name:   "idle",
		events: NewEventTarget(),
		env:    e,
	}
	e.idle.flags.Store(flagIdle | flagNoScheduleThread)
	e.idle.state = newCtxState()
	e.scheduler = NewScheduler(e.idle)
	if m.opts.metricsEnabled {
		e.metrics = newEnvMetrics()
	}
	return e
}

// Metrics returns a snapshot of this env's schedule-switch latency,
// workload, and switch-rate metrics, or nil if metrics were not enabled via
// WithManagerMetrics.
func (e *Env) Metrics() *EnvMetricsSnapshot {
	if e.metrics == nil {
		return nil
	}
	count := e.metrics.SwitchLatency.Sample()
	e.metrics.Workload.mu.RLock()
	workloadCurrent, workloadMax, workloadAvg := e.metrics.Workload.Current, e.metrics.Workload.Max, e.metrics.Workload.Avg
	e.metrics.Workload.mu.RUnlock()
	e.metrics.SwitchLatency.mu.RLock()
	defer e.metrics.SwitchLatency.mu.RUnlock()
	return &EnvMetricsSnapshot{
		SwitchCount:       count,
		P50:               e.metrics.SwitchLatency.P50,
		P90:               e.metrics.SwitchLatency.P90,
		P95:               e.metrics.SwitchLatency.P95,
		P99:               e.metrics.SwitchLatency.P99,
		MaxLatency:        e.metrics.SwitchLatency.Max,
		MeanLatency:       e.metrics.SwitchLatency.Mean,
		WorkloadCurrent:   workloadCurrent,
		WorkloadMax:       workloadMax,
		WorkloadAvg:       workloadAvg,
		SwitchesPerSecond: e.metrics.SwitchesPerSecond(),
	}
}

// ID returns the env's process-unique identifier.
func (e *Env) ID() uint64 { return e.id }

// State returns the env's current lifecycle stage.
func (e *Env) State() EnvState { return e.state.Load() }

// Workload is the numeric proxy used by the manager to balance load across
// envs: the scheduler's ctx count.
func (e *Env) Workload() int { return e.scheduler.Count() }

// LastSchedule returns the last time this env performed a switch.
func (e *Env) LastSchedule() time.Time {
	return time.Unix(0, e.lastSchedule.Load())
}

// Events exposes the env's lifecycle EventTarget.
func (e *Env) Events() *EventTarget { return e.events }

// Wake unparks the env's schedule loop if it is currently idle.
func (e *Env) Wake() {
	e.wakeMu.Lock()
	e.woken = true
	e.wakeCV.Signal()
	e.wakeMu.Unlock()
}

// wakeCtx clears a ctx's WAITING flag (via the scheduler) and wakes the
// owning env if it was parked idle. This is the scheduler-facing "wake"
// operation every sync primitive uses to unblock a parked ctx.
func (e *Env) wakeCtx(c *Ctx) {
	e.scheduler.Wake(c)
	e.Wake()
}

func (e *Env) addCtx(c *Ctx) {
	c.mu.Lock()
	c.env = e
	c.mu.Unlock()
	e.scheduler.Add(c)
	c.events.DispatchEvent(newEvent("env_set", e))
	e.Wake()
}

// run drives the env's schedule loop. It returns once the env transitions to
// EnvDestroying and has no more runnable, non-idle ctxs to drain.
func (e *Env) run() {
	defer close(e.done)

	if e.manager.opts.threadAffinityEnabled {
		setThreadAffinity(e.manager.opts.threadAffinityCPU, e.logger, e.id)
	}

	for {
		if e.State() == EnvDestroying && e.scheduler.Count() == 0 {
			return
		}

		e.reclaimFinished()

		next := e.scheduler.Choose()

		if next == e.idle {
			if e.scheduler.Count() == 0 {
				if e.State() == EnvDestroying {
					return
				}
				e.state.Store(EnvIdle)
				e.parkUntilWoken()
				continue
			}
			// Nothing schedulable right now (e.g. everything WAITING); park
			// briefly rather than busy-spinning, a future wake will retry.
			e.state.Store(EnvIdle)
			e.parkUntilWoken()
			continue
		}

		e.state.Store(EnvBusy)
		e.lastSchedule.Store(time.Now().UnixNano())
		if e.metrics != nil {
			e.metrics.Workload.Update(e.scheduler.Count())
			start := time.Now()
			e.switchTo(next)
			e.metrics.recordSwitch(time.Since(start))
		} else {
			e.switchTo(next)
		}
	}
}

func (e *Env) parkUntilWoken() {
	e.wakeMu.Lock()
	for !e.woken && e.State() != EnvDestroying {
		e.wakeCV.Wait()
	}
	e.woken = false
	e.wakeMu.Unlock()
}

// switchTo performs a context switch onto next via its goroutine gate pair:
// it sets SWITCHING on next, starts its backing goroutine if this is its
// first run, resumes it, and blocks until it suspends or finishes.
func (e *Env) switchTo(next *Ctx) {
	e.scheduler.setCurrent(next)
	next.setFlag(flagSwitching)
	next.startOnce()

	next.resumeCh <- struct{}{}
	<-next.parkCh

	next.clearFlag(flagSwitching)
	e.scheduler.setCurrent(nil)

	switch next.State() {
	case CtxFinished:
		e.scheduler.Remove(next)
		logf(e.logger, LevelDebug, "ctx", e.id, next.id, nil, "ctx finished")
		if next.Detached() {
			e.manager.reclaim(next)
		}
	case CtxSuspended:
		if !next.hasFlag(flagWaiting) {
			// still schedulable; leave enrolled at its rotated position
			// (Choose already moved it to the back of its queue).
		}
	}
}

// reclaimFinished is the schedule loop's reclamation step and does nothing:
// switchTo removes a ctx from the scheduler the moment it observes it
// finish, and hands it to the manager if it is detached, so no finished ctx
// stays enrolled for this step to sweep.
func (e *Env) reclaimFinished() {
	// No-op under normal operation: switchTo already removes finished ctxs
	// immediately. Retained as an explicit step and a hook point for future
	// scheduler implementations that defer removal.
}

// Shutdown marks the env for destruction; its schedule loop exits once all
// non-idle ctxs have drained.
func (e *Env) Shutdown() {
	e.state.Store(EnvDestroying)
	e.Wake()
}

// Done returns a channel closed once the env's schedule loop has exited.
func (e *Env) Done() <-chan struct{} { return e.done }
