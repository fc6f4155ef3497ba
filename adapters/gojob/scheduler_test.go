package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-federation/core"
)

type stubCoreEnqueuer struct {
	messages []*core.JobExecutionMessage
	err      error
}

func (s *stubCoreEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type stubDispatcher struct {
	eventIDs []string
	event    core.DeliveryEvent
	err      error
}

func (s *stubDispatcher) DispatchPass(_ context.Context, eventID string) (core.DeliveryEvent, error) {
	s.eventIDs = append(s.eventIDs, eventID)
	if s.err != nil {
		return core.DeliveryEvent{}, s.err
	}
	return s.event, nil
}

func TestQueueRetryScheduler_EnqueuesDispatchMessage(t *testing.T) {
	enqueuer := &stubCoreEnqueuer{}
	scheduler, err := NewQueueRetryScheduler(enqueuer)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	runAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := scheduler.ScheduleDispatch(context.Background(), "evt_1", runAt); err != nil {
		t.Fatalf("schedule dispatch: %v", err)
	}

	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != core.DeliveryDispatchJobID {
		t.Fatalf("unexpected job id %q", msg.JobID)
	}
	if msg.Parameters[paramEventID] != "evt_1" {
		t.Fatalf("expected event id parameter, got %#v", msg.Parameters)
	}
	if msg.Parameters[paramNotBefore] != runAt.Format(time.RFC3339Nano) {
		t.Fatalf("expected not_before parameter, got %#v", msg.Parameters[paramNotBefore])
	}
	if msg.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key")
	}
}

func TestQueueRetryScheduler_RequiresEventID(t *testing.T) {
	scheduler, err := NewQueueRetryScheduler(&stubCoreEnqueuer{})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := scheduler.ScheduleDispatch(context.Background(), "  ", time.Now()); err == nil {
		t.Fatalf("expected error for empty event id")
	}
}

func TestDispatchJobHandler_RunsPass(t *testing.T) {
	dispatcher := &stubDispatcher{event: core.DeliveryEvent{ID: "evt_1", Result: core.DeliveryResultSuccess}}
	handler, err := NewDispatchJobHandler(dispatcher, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	err = handler.Handle(context.Background(), &core.JobExecutionMessage{
		JobID:      core.DeliveryDispatchJobID,
		Parameters: map[string]any{paramEventID: "evt_1"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(dispatcher.eventIDs) != 1 || dispatcher.eventIDs[0] != "evt_1" {
		t.Fatalf("expected dispatch for evt_1, got %#v", dispatcher.eventIDs)
	}
}

func TestDispatchJobHandler_WaitsForNotBefore(t *testing.T) {
	dispatcher := &stubDispatcher{event: core.DeliveryEvent{ID: "evt_1"}}
	handler, err := NewDispatchJobHandler(dispatcher, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }
	var slept time.Duration
	handler.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	err = handler.Handle(context.Background(), &core.JobExecutionMessage{
		JobID: core.DeliveryDispatchJobID,
		Parameters: map[string]any{
			paramEventID:   "evt_1",
			paramNotBefore: now.Add(4 * time.Second).Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if slept != 4*time.Second {
		t.Fatalf("expected 4s wait before dispatch, got %s", slept)
	}
	if len(dispatcher.eventIDs) != 1 {
		t.Fatalf("expected dispatch after wait")
	}
}

func TestDispatchJobHandler_RejectsMalformedMessages(t *testing.T) {
	handler, err := NewDispatchJobHandler(&stubDispatcher{}, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	if err := handler.Handle(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil message")
	}
	if err := handler.Handle(context.Background(), &core.JobExecutionMessage{
		JobID: "federation.other",
	}); err == nil {
		t.Fatalf("expected error for unexpected job id")
	}
	if err := handler.Handle(context.Background(), &core.JobExecutionMessage{
		JobID: core.DeliveryDispatchJobID,
	}); err == nil {
		t.Fatalf("expected error for missing event id")
	}
}

func TestDispatchJobHandler_PropagatesDispatchErrors(t *testing.T) {
	dispatcher := &stubDispatcher{err: errors.New("store offline")}
	handler, err := NewDispatchJobHandler(dispatcher, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	err = handler.Handle(context.Background(), &core.JobExecutionMessage{
		JobID:      core.DeliveryDispatchJobID,
		Parameters: map[string]any{paramEventID: "evt_1"},
	})
	if err == nil {
		t.Fatalf("expected dispatch error to surface for queue retry")
	}
}
