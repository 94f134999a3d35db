// Package channel implements a tenant's bounded command queue inside the
// shared arena: one producer (the owning driver) and one consumer (the
// scheduler), both serialized by the tenant's futex lock.
package channel

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/command"
)

var (
	// ErrBadTenant is returned for an index outside [0, MaxTenants).
	ErrBadTenant = errors.New("tenant index out of range")
	// ErrSlotBusy is returned by Attach when another driver owns the slot.
	ErrSlotBusy = errors.New("tenant slot already active")
)

// Capacity is the number of commands the queue holds when full.
const Capacity = arena.RingSize - 1

// Channel is a handle to one tenant slot.
type Channel struct {
	index int
	t     *arena.TenantContext
}

// Open returns the channel for tenant index of a.
func Open(a *arena.Arena, index int) (*Channel, error) {
	if index < 0 || index >= arena.MaxTenants {
		return nil, fmt.Errorf("%w: %d (have %d slots)", ErrBadTenant, index, arena.MaxTenants)
	}
	return &Channel{index: index, t: a.Tenant(index)}, nil
}

// Index is the tenant slot number.
func (c *Channel) Index() int { return c.index }

// Enqueue appends cmd, blocking while the queue is full. There is no timeout:
// a producer facing a stalled consumer waits indefinitely.
func (c *Channel) Enqueue(cmd command.Command) {
	mu := c.t.Mutex()
	notFull := c.t.NotFull()

	mu.Lock()
	for c.fullLocked() {
		notFull.Wait()
	}
	tail := c.t.Tail()
	*c.t.Slot(tail) = command.Encode(cmd)
	c.t.SetTail(tail + 1)
	mu.Unlock()

	c.t.NotEmpty().Signal()
}

// TryDequeue removes the oldest command if there is one. It never blocks on
// an empty queue.
func (c *Channel) TryDequeue() (command.Command, bool) {
	mu := c.t.Mutex()

	mu.Lock()
	head := c.t.Head()
	if head == c.t.Tail() {
		mu.Unlock()
		return nil, false
	}
	raw := *c.t.Slot(head)
	c.t.SetHead(head + 1)
	mu.Unlock()

	c.t.NotFull().Signal()
	return command.Decode(raw), true
}

// Len returns the queue depth.
func (c *Channel) Len() int {
	mu := c.t.Mutex()
	mu.Lock()
	defer mu.Unlock()
	return c.t.Depth()
}

// Full reports whether Enqueue would block.
func (c *Channel) Full() bool {
	mu := c.t.Mutex()
	mu.Lock()
	defer mu.Unlock()
	return c.fullLocked()
}

// Empty reports whether TryDequeue would find nothing.
func (c *Channel) Empty() bool {
	mu := c.t.Mutex()
	mu.Lock()
	defer mu.Unlock()
	return c.t.Head() == c.t.Tail()
}

func (c *Channel) fullLocked() bool {
	return (c.t.Tail()+1)%arena.RingSize == c.t.Head()
}

// Active reports whether a driver owns the slot.
func (c *Channel) Active() bool { return c.t.Active() }

// Attach claims the slot for the driver identified by pid and id.
func (c *Channel) Attach(pid uint32, id uuid.UUID) error {
	if !c.t.ClaimActive() {
		owner, _ := c.t.Owner()
		return fmt.Errorf("%w: tenant %d (pid %d)", ErrSlotBusy, c.index, owner)
	}
	c.t.SetOwner(pid, id)
	return nil
}

// Detach releases the slot. Queued commands stay where they are and are not
// serviced while the slot is inactive.
func (c *Channel) Detach() {
	c.t.SetOwner(0, uuid.Nil)
	c.t.SetActive(false)
}

// Staging is the tenant's DMA source buffer.
func (c *Channel) Staging() []uint32 { return c.t.Staging() }
