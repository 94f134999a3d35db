package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is returned for malformed command text.
var ErrParse = errors.New("parse command")

// Parse reads the text form of a command:
//
//	nop
//	clear <color>
//	draw <x> <y> <w> <h> <color>
//	dma <x> <y> <w> <h>
//	checksum <a> <b>
//	hang
//	exit
//
// Numbers accept any base strconv understands (0x.. for colors).
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrParse)
	}

	name := strings.ToLower(fields[0])
	args, err := parseArgs(fields[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrParse, name, n, len(args))
		}
		return nil
	}

	switch name {
	case "nop":
		if err := want(0); err != nil {
			return nil, err
		}
		return Nop{}, nil
	case "clear":
		if err := want(1); err != nil {
			return nil, err
		}
		return Clear{Color: args[0]}, nil
	case "draw", "draw_rect", "rect":
		if err := want(5); err != nil {
			return nil, err
		}
		return DrawRect{X: args[0], Y: args[1], W: args[2], H: args[3], Color: args[4]}, nil
	case "dma", "dma_texture":
		if err := want(4); err != nil {
			return nil, err
		}
		return DMATexture{X: args[0], Y: args[1], W: args[2], H: args[3]}, nil
	case "checksum", "add":
		if err := want(2); err != nil {
			return nil, err
		}
		return Checksum{A: args[0], B: args[1]}, nil
	case "hang":
		if err := want(0); err != nil {
			return nil, err
		}
		return Hang{}, nil
	case "exit", "quit":
		if err := want(0); err != nil {
			return nil, err
		}
		return Exit{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrParse, fields[0])
	}
}

func parseArgs(fields []string) ([]uint32, error) {
	out := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", f, err)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

// Format renders cmd in the text form accepted by Parse.
func Format(cmd Command) string {
	switch c := cmd.(type) {
	case Nop:
		return "nop"
	case Clear:
		return fmt.Sprintf("clear 0x%08X", c.Color)
	case DrawRect:
		return fmt.Sprintf("draw %d %d %d %d 0x%08X", c.X, c.Y, c.W, c.H, c.Color)
	case DMATexture:
		return fmt.Sprintf("dma %d %d %d %d", c.X, c.Y, c.W, c.H)
	case Checksum:
		return fmt.Sprintf("checksum %d %d", c.A, c.B)
	case Hang:
		return "hang"
	case Exit:
		return "exit"
	case Unknown:
		return fmt.Sprintf("unknown(%d)", c.Tag)
	default:
		return "nop"
	}
}
