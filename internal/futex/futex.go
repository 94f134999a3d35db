// Package futex provides a mutex and a condition variable that live entirely
// inside a 32-bit word of memory, so they keep working when that memory is a
// shared mapping used by several processes at once.
//
// Both types are small value handles around a pointer into the shared word;
// copying a handle is fine, copying the word is not.
package futex

import (
	"math"
	"sync/atomic"
)

const (
	unlocked  uint32 = 0
	locked    uint32 = 1
	contended uint32 = 2
)

// Mutex is a three-state futex lock: 0 unlocked, 1 locked, 2 locked with
// possible waiters.
type Mutex struct {
	state *uint32
}

// NewMutex returns a Mutex operating on word. A zero word is unlocked.
func NewMutex(word *uint32) Mutex {
	return Mutex{state: word}
}

// Lock blocks until the mutex is acquired.
func (m Mutex) Lock() {
	if atomic.CompareAndSwapUint32(m.state, unlocked, locked) {
		return
	}
	for atomic.SwapUint32(m.state, contended) != unlocked {
		wait(m.state, contended)
	}
}

// TryLock acquires the mutex only if it is free.
func (m Mutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(m.state, unlocked, locked)
}

// Unlock releases the mutex and wakes one waiter if there may be any.
func (m Mutex) Unlock() {
	if atomic.SwapUint32(m.state, unlocked) == contended {
		wake(m.state, 1)
	}
}

// Cond is a condition variable over a sequence word, paired with a Mutex.
// Waiters sample the sequence before releasing the mutex and sleep only while
// it still holds that value, so a Signal issued between unlock and sleep is
// never lost.
type Cond struct {
	seq *uint32
	mu  Mutex
}

// NewCond returns a Cond over the sequence word seq, guarded by mu.
func NewCond(seq *uint32, mu Mutex) Cond {
	return Cond{seq: seq, mu: mu}
}

// Wait atomically releases the mutex and suspends until signalled, then
// reacquires the mutex. The caller must hold the mutex and must recheck its
// predicate in a loop; spurious wakeups are allowed.
func (c Cond) Wait() {
	s := atomic.LoadUint32(c.seq)
	c.mu.Unlock()
	wait(c.seq, s)
	c.mu.Lock()
}

// Signal wakes at most one waiter.
func (c Cond) Signal() {
	atomic.AddUint32(c.seq, 1)
	wake(c.seq, 1)
}

// Broadcast wakes every waiter.
func (c Cond) Broadcast() {
	atomic.AddUint32(c.seq, 1)
	wake(c.seq, math.MaxInt32)
}
