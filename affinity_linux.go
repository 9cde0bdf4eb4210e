//go:build linux

package coro

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// WithThreadAffinity pins an env's backing OS thread to cpu via
// unix.SchedSetaffinity, applied the first time the env's schedule loop
// runs. Errors are logged at LevelWarn and otherwise ignored: affinity is a
// scheduling hint, not a correctness requirement.
func WithThreadAffinity(cpu int) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) {
		opts.threadAffinityCPU = cpu
		opts.threadAffinityEnabled = true
	})
}

func setThreadAffinity(cpu int, logger Logger, envID uint64) {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		logf(logger, LevelWarn, "env", envID, 0, err, "SchedSetaffinity failed for cpu %d", cpu)
	}
}
