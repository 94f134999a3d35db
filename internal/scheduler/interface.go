package scheduler

import (
	"github.com/mattjoyce/vgpusim/internal/command"
	"github.com/mattjoyce/vgpusim/internal/executor"
)

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks github.com/mattjoyce/vgpusim/internal/scheduler Executor

// Executor defines the command execution used by the scheduler.
type Executor interface {
	Execute(tenant int, cmd command.Command) executor.Result
}
