package service

import (
	"context"
	"errors"
	"sync/atomic"

	"content_ingester/internal/domain"
)

var ErrRunInProgress = errors.New("run already in progress")

type Runner interface {
	Run(ctx context.Context) (*domain.RunReport, error)
}

// Guard lets at most one run execute at a time. Callers that arrive while
// a run is active get ErrRunInProgress instead of queueing.
type Guard struct {
	runner  Runner
	running atomic.Bool
}

func NewGuard(runner Runner) *Guard {
	return &Guard{runner: runner}
}

func (g *Guard) Run(ctx context.Context) (*domain.RunReport, error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer g.running.Store(false)

	return g.runner.Run(ctx)
}

func (g *Guard) Running() bool {
	return g.running.Load()
}
