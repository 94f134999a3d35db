package arena

import (
	"sync/atomic"

	"github.com/mattjoyce/vgpusim/internal/command"
	"github.com/mattjoyce/vgpusim/internal/futex"
)

// Active reports whether a driver currently owns the slot.
func (t *TenantContext) Active() bool { return atomic.LoadUint32(&t.active) != 0 }

// SetActive marks the slot owned or released. Queue contents are left as
// they are in both directions.
func (t *TenantContext) SetActive(v bool) {
	var w uint32
	if v {
		w = 1
	}
	atomic.StoreUint32(&t.active, w)
}

// ClaimActive marks the slot active only if it is currently inactive.
func (t *TenantContext) ClaimActive() bool {
	return atomic.CompareAndSwapUint32(&t.active, 0, 1)
}

// SetOwner records the identity of the attached driver. Call before
// publishing the slot as active.
func (t *TenantContext) SetOwner(pid uint32, id [16]byte) {
	mu := t.Mutex()
	mu.Lock()
	t.ownerID = id
	atomic.StoreUint32(&t.ownerPID, pid)
	mu.Unlock()
}

// Owner returns the recorded driver identity.
func (t *TenantContext) Owner() (pid uint32, id [16]byte) {
	mu := t.Mutex()
	mu.Lock()
	defer mu.Unlock()
	return atomic.LoadUint32(&t.ownerPID), t.ownerID
}

// Mutex returns the tenant lock.
func (t *TenantContext) Mutex() futex.Mutex { return futex.NewMutex(&t.lock) }

// NotFull is signalled by the consumer after freeing a slot.
func (t *TenantContext) NotFull() futex.Cond { return futex.NewCond(&t.notFull, t.Mutex()) }

// NotEmpty is signalled by the producer after publishing a slot.
func (t *TenantContext) NotEmpty() futex.Cond { return futex.NewCond(&t.notEmpty, t.Mutex()) }

// Head is the consumer index.
func (t *TenantContext) Head() uint32 { return atomic.LoadUint32(&t.head) }

// Tail is the producer index.
func (t *TenantContext) Tail() uint32 { return atomic.LoadUint32(&t.tail) }

// SetHead publishes a new consumer index. Scheduler only, under the lock.
func (t *TenantContext) SetHead(v uint32) { atomic.StoreUint32(&t.head, v%RingSize) }

// SetTail publishes a new producer index. Owning driver only, under the lock.
func (t *TenantContext) SetTail(v uint32) { atomic.StoreUint32(&t.tail, v%RingSize) }

// Slot returns ring slot i mod RingSize.
func (t *TenantContext) Slot(i uint32) *command.Raw { return &t.ring[i%RingSize] }

// Depth is the number of queued commands, read without the lock.
func (t *TenantContext) Depth() int {
	return int((t.Tail() + RingSize - t.Head()) % RingSize)
}

// Staging is the tenant's DMA scratch buffer, DMAPixels long.
func (t *TenantContext) Staging() []uint32 { return t.staging[:] }
