package arena

import (
	"encoding/hex"
	"unsafe"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Status is a point-in-time copy of the header and tenant slots.
type Status struct {
	Path           string         `json:"path,omitempty"`
	Running        bool           `json:"running"`
	FrameCounter   uint32         `json:"frame_counter"`
	Temperature    float32        `json:"temperature"`
	Heartbeat      uint64         `json:"heartbeat"`
	WatchdogResets uint32         `json:"watchdog_resets"`
	LastChecksum   uint32         `json:"last_checksum"`
	Checksums      uint32         `json:"checksums"`
	Tenants        []TenantStatus `json:"tenants"`
}

// TenantStatus describes one slot.
type TenantStatus struct {
	Index   int    `json:"index"`
	Active  bool   `json:"active"`
	PID     uint32 `json:"pid,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
	Depth   int    `json:"depth"`
}

// Snapshot reads every header word and slot summary without stopping the
// device. Fields are individually consistent, not mutually.
func (a *Arena) Snapshot() Status {
	sum, count := a.LastChecksum()
	s := Status{
		Path:           a.path,
		Running:        a.Running(),
		FrameCounter:   a.FrameCounter(),
		Temperature:    a.Temperature(),
		Heartbeat:      a.Heartbeat(),
		WatchdogResets: a.WatchdogResets(),
		LastChecksum:   sum,
		Checksums:      count,
		Tenants:        make([]TenantStatus, 0, MaxTenants),
	}
	for i := range MaxTenants {
		t := a.Tenant(i)
		ts := TenantStatus{Index: i, Active: t.Active(), Depth: t.Depth()}
		if ts.Active {
			pid, id := t.Owner()
			ts.PID = pid
			if id != ([16]byte{}) {
				ts.OwnerID = uuid.UUID(id).String()
			}
		}
		s.Tenants = append(s.Tenants, ts)
	}
	return s
}

// FramebufferDigest returns the hex BLAKE3-256 digest of the framebuffer
// bytes. Equal digests mean equal framebuffer contents.
func (a *Arena) FramebufferDigest() string {
	fb := a.Framebuffer()
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&fb[0])), len(fb)*4)
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
