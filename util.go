package coro

import "runtime"

// getGoroutineID extracts the calling goroutine's numeric ID by parsing the
// header line of runtime.Stack's output, a standard technique for recognizing
// "which goroutine is this" where Go has no first-class identifier for it.
// It backs the ThisCo namespace's lookup of "which Ctx is the calling
// goroutine", since every Ctx is pinned to exactly one goroutine for its
// entire lifetime.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
