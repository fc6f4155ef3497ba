package delivery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-federation/core"
)

type countingWorker struct {
	mu      sync.Mutex
	active  int32
	maxSeen int32
	delay   time.Duration
}

func (w *countingWorker) Deliver(_ context.Context, task core.DeliveryTask) core.DeliveryOutcome {
	current := atomic.AddInt32(&w.active, 1)
	w.mu.Lock()
	if current > w.maxSeen {
		w.maxSeen = current
	}
	w.mu.Unlock()
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	atomic.AddInt32(&w.active, -1)
	return core.DeliveryOutcome{ItemID: task.ItemID, URL: task.URL, Success: true}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	worker := &countingWorker{delay: 20 * time.Millisecond}
	pool, err := NewPool(worker, 3)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	tasks := make([]core.DeliveryTask, 12)
	for i := range tasks {
		tasks[i] = core.DeliveryTask{
			ItemID: fmt.Sprintf("item-%d", i),
			URL:    fmt.Sprintf("https://remote-%d.example/inbox", i),
		}
	}

	outcomes := pool.Deliver(context.Background(), tasks)

	if len(outcomes) != len(tasks) {
		t.Fatalf("expected %d outcomes got %d", len(tasks), len(outcomes))
	}
	if worker.maxSeen > 3 {
		t.Fatalf("expected at most 3 concurrent workers, saw %d", worker.maxSeen)
	}
	for i, outcome := range outcomes {
		if outcome.ItemID != tasks[i].ItemID {
			t.Fatalf("outcome %d out of order: got %q want %q", i, outcome.ItemID, tasks[i].ItemID)
		}
		if !outcome.Success {
			t.Fatalf("outcome %d not recorded", i)
		}
	}
}

func TestPoolEmptyTasks(t *testing.T) {
	pool, err := NewPool(&countingWorker{}, 2)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	if outcomes := pool.Deliver(context.Background(), nil); outcomes != nil {
		t.Fatalf("expected nil outcomes for empty task list, got %d", len(outcomes))
	}
}

func TestNewPoolDefaultsSize(t *testing.T) {
	pool, err := NewPool(&countingWorker{}, 0)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	if pool.size != core.DefaultConfig().Delivery.PoolSize {
		t.Fatalf("expected default pool size, got %d", pool.size)
	}
}

func TestNewPoolRequiresWorker(t *testing.T) {
	if _, err := NewPool(nil, 4); err == nil {
		t.Fatal("expected error for missing worker")
	}
}
