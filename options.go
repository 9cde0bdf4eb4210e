// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coro

import "time"

// NumPriorities is P, the number of priority levels every scheduler indexes.
// Priorities are clamped into [0, NumPriorities) on assignment.
const NumPriorities = 8

// managerOptions holds resolved configuration for a Manager.
type managerOptions struct {
	logger              Logger
	minEnvCount         int
	initialEnvCount     int
	migrationThreshold  int
	maintenanceInterval time.Duration
	envIdleTimeout      time.Duration
	metricsEnabled      bool

	threadAffinityEnabled bool
	threadAffinityCPU     int
}

// DefaultMigrationThreshold is the default workload-count gap the maintenance
// loop requires before attempting a migration.
const DefaultMigrationThreshold = 4

// DefaultMinEnvCount is the default floor on the number of live envs the
// maintenance loop will not destroy below.
const DefaultMinEnvCount = 1

// DefaultMaintenanceInterval is how often the manager's background
// maintenance loop runs.
const DefaultMaintenanceInterval = 50 * time.Millisecond

// DefaultEnvIdleTimeout is how long an env may sit idle before the
// maintenance loop considers destroying it.
const DefaultEnvIdleTimeout = 5 * time.Second

// ManagerOption configures a Manager at construction time.
type ManagerOption interface {
	applyManager(*managerOptions)
}

type managerOptionFunc func(*managerOptions)

func (f managerOptionFunc) applyManager(opts *managerOptions) { f(opts) }

// WithLogger sets the Logger used for lifecycle and scheduling diagnostics.
// The default is NewNoopLogger().
func WithLogger(logger Logger) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) { opts.logger = logger })
}

// WithMinEnvCount sets the floor below which the maintenance loop will not
// destroy idle envs.
func WithMinEnvCount(n int) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) {
		if n < 1 {
			n = 1
		}
		opts.minEnvCount = n
	})
}

// WithInitialEnvCount sets how many envs Init starts with.
func WithInitialEnvCount(n int) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) {
		if n < 1 {
			n = 1
		}
		opts.initialEnvCount = n
	})
}

// WithMigrationThreshold sets the workload-count gap required before the
// maintenance loop migrates a ctx from the busiest env to the idlest.
func WithMigrationThreshold(n int) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) { opts.migrationThreshold = n })
}

// WithMaintenanceInterval sets the period of the manager's background
// maintenance loop.
func WithMaintenanceInterval(d time.Duration) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) { opts.maintenanceInterval = d })
}

// WithEnvIdleTimeout sets how long an env may be idle before it becomes
// eligible for destruction (subject to WithMinEnvCount).
func WithEnvIdleTimeout(d time.Duration) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) { opts.envIdleTimeout = d })
}

// WithManagerMetrics enables Metrics() collection across envs owned by this manager.
func WithManagerMetrics(enabled bool) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) { opts.metricsEnabled = enabled })
}

func resolveManagerOptions(opts []ManagerOption) *managerOptions {
	cfg := &managerOptions{
		logger:              NewNoopLogger(),
		minEnvCount:         DefaultMinEnvCount,
		initialEnvCount:     DefaultMinEnvCount,
		migrationThreshold:  DefaultMigrationThreshold,
		maintenanceInterval: DefaultMaintenanceInterval,
		envIdleTimeout:      DefaultEnvIdleTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyManager(cfg)
	}
	if cfg.initialEnvCount < cfg.minEnvCount {
		cfg.initialEnvCount = cfg.minEnvCount
	}
	return cfg
}

// ctxOptions holds resolved configuration for a single ctx.
type ctxOptions struct {
	name         string
	stackSize    int
	priority     int
	sharedStack  bool
	bindEnv      bool
	detached     bool
}

// DefaultStackSize is used when WithStackSize is not supplied.
const DefaultStackSize = 64 * 1024

// CtxOption configures a ctx at Spawn time.
type CtxOption interface {
	applyCtx(*ctxOptions)
}

type ctxOptionFunc func(*ctxOptions)

func (f ctxOptionFunc) applyCtx(opts *ctxOptions) { f(opts) }

// WithStackSize sets the diagnostic stack size (bytes) recorded against a ctx.
func WithStackSize(bytes int) CtxOption {
	return ctxOptionFunc(func(opts *ctxOptions) { opts.stackSize = bytes })
}

// WithName sets a diagnostic name for a ctx.
func WithName(name string) CtxOption {
	return ctxOptionFunc(func(opts *ctxOptions) { opts.name = name })
}

// WithPriority sets a ctx's scheduling priority, clamped into [0, NumPriorities).
func WithPriority(priority int) CtxOption {
	return ctxOptionFunc(func(opts *ctxOptions) { opts.priority = clampPriority(priority) })
}

// WithSharedStack sets a ctx's SHARED_STACK flag, disabling migration for the
// life of the ctx. The ctx still runs on its own goroutine, and shared-stack
// ctxs on one env are not serialized against each other.
func WithSharedStack(enabled bool) CtxOption {
	return ctxOptionFunc(func(opts *ctxOptions) { opts.sharedStack = enabled })
}

// WithBindEnv pins a ctx to whichever env it is first assigned to, disabling
// migration for the life of the ctx.
func WithBindEnv(enabled bool) CtxOption {
	return ctxOptionFunc(func(opts *ctxOptions) { opts.bindEnv = enabled })
}

// WithDetached marks a ctx detached at creation, equivalent to calling Detach
// immediately after Spawn.
func WithDetached(enabled bool) CtxOption {
	return ctxOptionFunc(func(opts *ctxOptions) { opts.detached = enabled })
}

func resolveCtxOptions(opts []CtxOption) *ctxOptions {
	cfg := &ctxOptions{
		stackSize: DefaultStackSize,
		priority:  NumPriorities / 2,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyCtx(cfg)
	}
	return cfg
}

func clampPriority(p int) int {
	return clamp(p, 0, NumPriorities-1)
}
