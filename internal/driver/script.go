package driver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/command"
)

// RunScript submits one command per line of r and writes telemetry to w after
// each submission. Blank lines and lines starting with '#' are skipped.
//
// Besides the command forms accepted by command.Parse, two directives exist:
//
//	stage COLOR [N]   fill the first N staging pixels (default all) with COLOR
//	sleep DURATION    pause, e.g. "sleep 200ms"
//
// The script stops after submitting exit.
func (c *Client) RunScript(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		handled, err := c.directive(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if handled {
			continue
		}

		cmd, err := command.Parse(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		c.Submit(cmd)
		fmt.Fprintf(w, "[tenant %d] %s -> %s\n", c.Tenant(), command.Format(cmd), c.Telemetry())

		if cmd.Kind() == command.KindExit {
			return nil
		}
	}
	return sc.Err()
}

func (c *Client) directive(line string) (bool, error) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "stage":
		if len(fields) < 2 || len(fields) > 3 {
			return true, fmt.Errorf("%w: usage: stage COLOR [N]", command.ErrParse)
		}
		color, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			return true, fmt.Errorf("%w: stage color %q", command.ErrParse, fields[1])
		}
		n := uint64(arena.DMAPixels)
		if len(fields) == 3 {
			if n, err = strconv.ParseUint(fields[2], 0, 32); err != nil {
				return true, fmt.Errorf("%w: stage count %q", command.ErrParse, fields[2])
			}
		}
		if n > arena.DMAPixels {
			return true, fmt.Errorf("%w: %d pixels, capacity %d", ErrStagingOverflow, n, arena.DMAPixels)
		}
		px := make([]uint32, n)
		for i := range px {
			px[i] = uint32(color)
		}
		return true, c.Stage(px)
	case "sleep":
		if len(fields) != 2 {
			return true, fmt.Errorf("%w: usage: sleep DURATION", command.ErrParse)
		}
		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return true, fmt.Errorf("%w: %v", command.ErrParse, err)
		}
		time.Sleep(d)
		return true, nil
	default:
		return false, nil
	}
}
