package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-federation/core"
)

// TaskWorker executes a single delivery attempt. *Worker is the production
// implementation; tests substitute stubs.
type TaskWorker interface {
	Deliver(ctx context.Context, task core.DeliveryTask) core.DeliveryOutcome
}

// Pool fans one dispatch pass out over a bounded number of concurrent
// workers. All tasks complete (or time out through their per-task deadline)
// before Deliver returns, so the coordinator aggregates a full pass at a
// time. Outcomes are collected into a slice indexed to the task order; the
// pool itself never writes to storage.
type Pool struct {
	worker TaskWorker
	size   int
}

func NewPool(worker TaskWorker, size int) (*Pool, error) {
	if worker == nil {
		return nil, fmt.Errorf("delivery: task worker is required")
	}
	if size <= 0 {
		size = core.DefaultConfig().Delivery.PoolSize
	}
	return &Pool{worker: worker, size: size}, nil
}

func (p *Pool) Deliver(ctx context.Context, tasks []core.DeliveryTask) []core.DeliveryOutcome {
	if p == nil || p.worker == nil || len(tasks) == 0 {
		return nil
	}

	outcomes := make([]core.DeliveryOutcome, len(tasks))
	semaphore := make(chan struct{}, p.size)
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(index int, task core.DeliveryTask) {
			defer wg.Done()
			defer func() { <-semaphore }()
			outcomes[index] = p.worker.Deliver(ctx, task)
		}(i, task)
	}
	wg.Wait()
	return outcomes
}

var _ core.DeliveryFanout = (*Pool)(nil)
