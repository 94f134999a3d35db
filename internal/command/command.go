// Package command defines the commands a tenant can submit to the device and
// their fixed-size wire form inside the shared ring.
package command

import "fmt"

// Kind is the tag stored in the first word of a ring slot.
type Kind uint32

const (
	KindNop        Kind = 0
	KindClear      Kind = 1
	KindDrawRect   Kind = 2
	KindDMATexture Kind = 3
	KindChecksum   Kind = 4
	KindHang       Kind = 9
	KindExit       Kind = 15
)

func (k Kind) String() string {
	switch k {
	case KindNop:
		return "NOP"
	case KindClear:
		return "CLEAR"
	case KindDrawRect:
		return "DRAW_RECT"
	case KindDMATexture:
		return "DMA_TEXTURE"
	case KindChecksum:
		return "CHECKSUM"
	case KindHang:
		return "HANG"
	case KindExit:
		return "EXIT"
	default:
		return fmt.Sprintf("KIND(%d)", uint32(k))
	}
}

// NumParams is the number of parameter words carried by every ring slot.
const NumParams = 5

// Raw is the wire layout of one ring slot: 24 bytes, no padding.
type Raw struct {
	Kind   uint32
	Params [NumParams]uint32
}

// Command is one of the concrete command types below.
type Command interface {
	Kind() Kind
}

type (
	// Nop does nothing.
	Nop struct{}

	// Clear fills the framebuffer with Color.
	Clear struct {
		Color uint32
	}

	// DrawRect fills the W×H rectangle at (X, Y) with Color, clipped to the
	// framebuffer.
	DrawRect struct {
		X, Y, W, H uint32
		Color      uint32
	}

	// DMATexture copies W×H pixels from the tenant's staging buffer to (X, Y).
	DMATexture struct {
		X, Y, W, H uint32
	}

	// Checksum adds A and B on the accelerator and reports the result.
	Checksum struct {
		A, B uint32
	}

	// Hang never completes. It exists to exercise the watchdog.
	Hang struct{}

	// Exit stops the device after being committed.
	Exit struct{}

	// Unknown carries a tag this build does not recognise.
	Unknown struct {
		Tag    uint32
		Params [NumParams]uint32
	}
)

func (Nop) Kind() Kind        { return KindNop }
func (Clear) Kind() Kind      { return KindClear }
func (DrawRect) Kind() Kind   { return KindDrawRect }
func (DMATexture) Kind() Kind { return KindDMATexture }
func (Checksum) Kind() Kind   { return KindChecksum }
func (Hang) Kind() Kind       { return KindHang }
func (Exit) Kind() Kind       { return KindExit }
func (u Unknown) Kind() Kind  { return Kind(u.Tag) }

// Area returns W*H without 32-bit overflow.
func (d DrawRect) Area() uint64 { return uint64(d.W) * uint64(d.H) }

// Area returns W*H without 32-bit overflow.
func (d DMATexture) Area() uint64 { return uint64(d.W) * uint64(d.H) }

// Encode converts cmd to its ring slot form. A nil command encodes as NOP.
func Encode(cmd Command) Raw {
	switch c := cmd.(type) {
	case Clear:
		return Raw{Kind: uint32(KindClear), Params: [NumParams]uint32{c.Color}}
	case DrawRect:
		return Raw{Kind: uint32(KindDrawRect), Params: [NumParams]uint32{c.X, c.Y, c.W, c.H, c.Color}}
	case DMATexture:
		return Raw{Kind: uint32(KindDMATexture), Params: [NumParams]uint32{c.X, c.Y, c.W, c.H}}
	case Checksum:
		return Raw{Kind: uint32(KindChecksum), Params: [NumParams]uint32{c.A, c.B}}
	case Hang:
		return Raw{Kind: uint32(KindHang)}
	case Exit:
		return Raw{Kind: uint32(KindExit)}
	case Unknown:
		return Raw{Kind: c.Tag, Params: c.Params}
	default:
		return Raw{Kind: uint32(KindNop)}
	}
}

// Decode interprets a ring slot. Tags outside the known set decode to
// Unknown rather than failing.
func Decode(r Raw) Command {
	p := r.Params
	switch Kind(r.Kind) {
	case KindNop:
		return Nop{}
	case KindClear:
		return Clear{Color: p[0]}
	case KindDrawRect:
		return DrawRect{X: p[0], Y: p[1], W: p[2], H: p[3], Color: p[4]}
	case KindDMATexture:
		return DMATexture{X: p[0], Y: p[1], W: p[2], H: p[3]}
	case KindChecksum:
		return Checksum{A: p[0], B: p[1]}
	case KindHang:
		return Hang{}
	case KindExit:
		return Exit{}
	default:
		return Unknown{Tag: r.Kind, Params: p}
	}
}
