package coro

import "golang.org/x/exp/constraints"

// clamp restricts v to [lo, hi]. Its only caller is clampPriority, for
// priority clamping on assignment; stack sizes are not clamped.
func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
