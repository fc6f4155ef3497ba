package core

import (
	"context"
	"sync"
	"testing"
)

type capturingMetricsRecorder struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]int
	tags       map[string]map[string]string
}

func newCapturingMetricsRecorder() *capturingMetricsRecorder {
	return &capturingMetricsRecorder{
		counters:   map[string]int64{},
		histograms: map[string]int{},
		tags:       map[string]map[string]string{},
	}
}

func (r *capturingMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += value
	r.tags[name] = tags
}

func (r *capturingMetricsRecorder) ObserveHistogram(_ context.Context, name string, _ float64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[name]++
	r.tags[name] = tags
}

func TestServiceRecordsOperationMetrics(t *testing.T) {
	recorder := newCapturingMetricsRecorder()
	fixture := newServiceFixture(t)

	statuses := fixture.statuses
	directory := fixture.directory
	service, err := NewService(Config{},
		WithStatusStore(statuses),
		WithActorDirectory(directory),
		WithEventStore(fixture.events),
		WithItemStore(fixture.items),
		WithDeliveryFanout(fixture.fanout),
		WithMetricsRecorder(recorder),
	)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	if _, err := service.DeliverStatus(context.Background(), DeliverRequest{
		StatusID: "status-1",
		UserID:   "user-1",
		Type:     ActivityTypeCreate,
	}); err != nil {
		t.Fatalf("DeliverStatus returned error: %v", err)
	}

	if recorder.counters["federation.delivery.start.total"] != 1 {
		t.Fatalf("expected delivery.start counter, got %v", recorder.counters)
	}
	if recorder.histograms["federation.delivery.start.duration_ms"] != 1 {
		t.Fatalf("expected delivery.start duration observation")
	}
	tags := recorder.tags["federation.delivery.start.total"]
	if tags["status"] != "success" || tags["status_id"] != "status-1" {
		t.Fatalf("unexpected metric tags %v", tags)
	}

	if _, err := service.ListDeliveryEvents(context.Background(), ListDeliveryEventsRequest{
		StatusID: "status-1",
		Viewer:   Viewer{UserID: "user-2"},
	}); err == nil {
		t.Fatalf("expected forbidden error")
	}
	if tags := recorder.tags["federation.delivery.events.list.total"]; tags["status"] != "failure" {
		t.Fatalf("failed operations must be tagged as failures, got %v", tags)
	}
}
