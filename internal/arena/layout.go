package arena

import (
	"unsafe"

	"github.com/mattjoyce/vgpusim/internal/command"
)

// Layout constants shared by every process that maps the region.
const (
	Magic         uint32 = 0x56475055 // "VGPU"
	LayoutVersion uint32 = 1

	Width      = 640
	Height     = 480
	MaxTenants = 2
	RingSize   = 128
	DMASide    = 64
	DMAPixels  = DMASide * DMASide

	// DefaultPath is where the firmware creates the region on Linux.
	DefaultPath = "/dev/shm/vgpu_ram.bin"
)

// header is the fixed 48-byte prefix of the region. All fields are accessed
// atomically; temperature holds IEEE-754 float32 bits.
type header struct {
	magic          uint32
	version        uint32
	running        uint32
	frameCounter   uint32
	temperature    uint32
	watchdogResets uint32
	heartbeat      uint64
	checksumLast   uint32
	checksumCount  uint32
	_              [8]byte
}

// TenantContext is one tenant slot. The queue words are only touched under
// lock: the owning driver advances tail, the scheduler advances head.
type TenantContext struct {
	active   uint32
	ownerPID uint32
	ownerID  [16]byte
	head     uint32
	tail     uint32
	lock     uint32
	notFull  uint32
	notEmpty uint32
	_        uint32
	ring     [RingSize]command.Raw
	staging  [DMAPixels]uint32
}

type layout struct {
	header
	framebuffer [Width * Height]uint32
	tenants     [MaxTenants]TenantContext
}

// Size is the exact byte size of the backing region.
const Size = int(unsafe.Sizeof(layout{}))
