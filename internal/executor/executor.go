// Package executor applies commands to the arena framebuffer and reports
// what each one cost in heat and device time.
package executor

import (
	"log/slog"
	"time"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/command"
)

// Heat and nominal device time per command.
const (
	ClearHeat    float32 = 0.5
	DrawBaseHeat float32 = 1.5
	ChecksumHeat float32 = 0.2

	// AreaHeatDivisor turns a rectangle area into extra heat.
	AreaHeatDivisor = 10000

	ClearCost    = 50 * time.Millisecond
	DrawCost     = 150 * time.Millisecond
	ChecksumCost = 10 * time.Millisecond
)

// Result describes the outcome of one command.
type Result struct {
	Heat float32
	Cost time.Duration
	// Exit is set for EXIT; the caller stops after committing the dequeue.
	Exit bool
	// Checksum carries the CHECKSUM result; ChecksumOK reports whether the
	// accelerator agreed with portable addition.
	Checksum   *uint32
	ChecksumOK bool
	// Rejected is non-empty when the command was refused without effect.
	Rejected string
}

// Executor runs commands against one arena.
type Executor struct {
	arena     *arena.Arena
	acc       Accelerator
	costScale float64
	spin      func()
	logger    *slog.Logger
}

type Option func(*Executor)

// WithCostScale multiplies every reported cost. Zero makes commands free,
// which is what tests want.
func WithCostScale(f float64) Option {
	return func(e *Executor) {
		if f >= 0 {
			e.costScale = f
		}
	}
}

// WithSpin replaces the body of HANG. The default never returns.
func WithSpin(fn func()) Option {
	return func(e *Executor) {
		if fn != nil {
			e.spin = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an executor writing into a. A nil accelerator means Portable.
func New(a *arena.Arena, acc Accelerator, opts ...Option) *Executor {
	if acc == nil {
		acc = Portable{}
	}
	e := &Executor{
		arena:     a,
		acc:       acc,
		costScale: 1,
		spin:      hang,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "executor")
	return e
}

// Accelerator returns the accelerator in use.
func (e *Executor) Accelerator() Accelerator { return e.acc }

// Execute applies cmd on behalf of tenant. HANG does not return unless the
// spin function was replaced.
func (e *Executor) Execute(tenant int, cmd command.Command) Result {
	switch c := cmd.(type) {
	case nil, command.Nop:
		return Result{}
	case command.Clear:
		e.clear(c.Color)
		return Result{Heat: ClearHeat, Cost: e.cost(ClearCost)}
	case command.DrawRect:
		e.fill(c.X, c.Y, c.W, c.H, c.Color)
		return Result{Heat: areaHeat(c.Area()), Cost: e.cost(DrawCost)}
	case command.DMATexture:
		if c.Area() > arena.DMAPixels {
			e.logger.Warn("DMA transfer exceeds staging capacity",
				"tenant", tenant, "w", c.W, "h", c.H, "capacity", arena.DMAPixels)
			return Result{Rejected: "dma exceeds staging capacity"}
		}
		e.blit(tenant, c)
		return Result{Heat: areaHeat(c.Area()), Cost: e.cost(DrawCost)}
	case command.Checksum:
		return e.checksum(tenant, c)
	case command.Hang:
		e.logger.Error("executing HANG: scheduler will stop feeding the heartbeat", "tenant", tenant)
		e.spin()
		return Result{}
	case command.Exit:
		return Result{Exit: true}
	default:
		e.logger.Warn("ignoring unknown command", "tenant", tenant, "kind", cmd.Kind().String())
		return Result{}
	}
}

func (e *Executor) checksum(tenant int, c command.Checksum) Result {
	got := e.acc.Add(c.A, c.B)
	want := c.A + c.B
	ok := got == want
	if !ok {
		e.logger.Error("accelerator checksum mismatch",
			"tenant", tenant, "accelerator", e.acc.Name(), "got", got, "want", want)
	} else {
		e.logger.Info("checksum verified", "tenant", tenant, "a", c.A, "b", c.B, "result", got)
	}
	e.arena.RecordChecksum(got)
	return Result{Heat: ChecksumHeat, Cost: e.cost(ChecksumCost), Checksum: &got, ChecksumOK: ok}
}

func (e *Executor) cost(d time.Duration) time.Duration {
	return time.Duration(float64(d) * e.costScale)
}

func areaHeat(area uint64) float32 {
	return DrawBaseHeat + float32(area)/AreaHeatDivisor
}

func (e *Executor) clear(color uint32) {
	fb := e.arena.Framebuffer()
	for i := range fb {
		fb[i] = color
	}
}

// fill writes color into the visible part of the rectangle.
func (e *Executor) fill(x, y, w, h, color uint32) {
	x0, x1 := clip(x, w, arena.Width)
	y0, y1 := clip(y, h, arena.Height)
	fb := e.arena.Framebuffer()
	for row := y0; row < y1; row++ {
		line := fb[row*arena.Width : (row+1)*arena.Width]
		for col := x0; col < x1; col++ {
			line[col] = color
		}
	}
}

// blit copies the staging buffer, read row-major with stride W, to (X, Y).
func (e *Executor) blit(tenant int, c command.DMATexture) {
	src := e.arena.Tenant(tenant).Staging()
	x0, x1 := clip(c.X, c.W, arena.Width)
	y0, y1 := clip(c.Y, c.H, arena.Height)
	fb := e.arena.Framebuffer()
	w := int(c.W)
	for row := y0; row < y1; row++ {
		sy := row - int(c.Y)
		for col := x0; col < x1; col++ {
			sx := col - int(c.X)
			fb[row*arena.Width+col] = src[sy*w+sx]
		}
	}
}

// clip returns the half-open span [lo, hi) of start..start+length that lies
// inside [0, limit).
func clip(start, length uint32, limit int) (int, int) {
	lo := uint64(start)
	hi := lo + uint64(length)
	if lo >= uint64(limit) {
		return 0, 0
	}
	if hi > uint64(limit) {
		hi = uint64(limit)
	}
	return int(lo), int(hi)
}

func hang() {
	for {
		time.Sleep(100 * time.Millisecond)
	}
}
