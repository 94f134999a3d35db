//go:build !linux

package futex

import (
	"sync/atomic"
	"time"
)

const (
	pollInterval = 50 * time.Microsecond
	pollRounds   = 200
)

// wait polls the word for a bounded time. Returning early is a spurious
// wakeup, which every caller tolerates.
func wait(addr *uint32, val uint32) {
	for range pollRounds {
		if atomic.LoadUint32(addr) != val {
			return
		}
		time.Sleep(pollInterval)
	}
}

func wake(*uint32, int) {}
