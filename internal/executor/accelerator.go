package executor

//go:generate mockgen -destination=mocks/mock_accelerator.go -package=mocks github.com/mattjoyce/vgpusim/internal/executor Accelerator

// Accelerator computes the CHECKSUM operation. Implementations must perform
// ordinary wrapping 32-bit addition; how they get there is their business.
type Accelerator interface {
	Add(a, b uint32) uint32
	Name() string
}

// Portable is the default accelerator.
type Portable struct{}

func (Portable) Add(a, b uint32) uint32 { return a + b }

func (Portable) Name() string { return "portable" }
