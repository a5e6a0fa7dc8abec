package dashboard

import (
	"context"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

type Action func(ctx context.Context) error

// Dispatcher runs dashboard actions off the caller's goroutine so a slow
// request never blocks other interactions.
type Dispatcher struct {
	WorkerPool *ants.Pool
}

func NewDispatcher(poolSize int) (*Dispatcher, error) {
	workerPool, err := ants.NewPool(poolSize, ants.WithPreAlloc(true))
	if err != nil {
		logging.Logger.Error("Failed to create worker pool", zap.Error(err))
		return nil, err
	}

	return &Dispatcher{WorkerPool: workerPool}, nil
}

// Submit schedules action and returns a channel that receives its error once.
func (d *Dispatcher) Submit(ctx context.Context, action Action) <-chan error {
	result := make(chan error, 1)

	err := d.WorkerPool.Submit(func() {
		result <- action(ctx)
	})
	if err != nil {
		logging.Logger.Error("Failed to submit action", zap.Error(err))

		result <- err
	}

	return result
}

func (d *Dispatcher) Running() int {
	return d.WorkerPool.Running()
}

func (d *Dispatcher) Release() {
	d.WorkerPool.Release()
}
