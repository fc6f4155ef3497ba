package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-federation/core"
)

// QueueRetryScheduler defers dispatch passes through a durable queue instead
// of in-process timers, so scheduled retries survive restarts. One message per
// event and pass: the idempotency key includes the run time, letting a retry
// created by a later pass coexist with an abandoned earlier schedule.
type QueueRetryScheduler struct {
	enqueuer core.JobEnqueuer
}

func NewQueueRetryScheduler(enqueuer core.JobEnqueuer) (*QueueRetryScheduler, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	return &QueueRetryScheduler{enqueuer: enqueuer}, nil
}

func (s *QueueRetryScheduler) ScheduleDispatch(ctx context.Context, eventID string, runAt time.Time) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: queue retry scheduler is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("gojob: event id is required")
	}
	runAt = runAt.UTC()
	return s.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID: core.DeliveryDispatchJobID,
		Parameters: map[string]any{
			paramEventID:   eventID,
			paramNotBefore: runAt.Format(time.RFC3339Nano),
		},
		IdempotencyKey: fmt.Sprintf("%s::%s::%d", core.DeliveryDispatchJobID, eventID, runAt.UnixNano()),
	})
}

// DispatchJobHandler consumes dispatch messages on the queue worker side and
// re-enters the coordinator. Passes that land before not_before sleep the
// remainder; terminal events make the pass a no-op so duplicate messages are
// harmless.
type DispatchJobHandler struct {
	dispatcher core.Dispatcher
	logger     core.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewDispatchJobHandler(dispatcher core.Dispatcher, logger core.Logger) (*DispatchJobHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("gojob: dispatcher is required")
	}
	return &DispatchJobHandler{
		dispatcher: dispatcher,
		logger:     logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
		sleep: sleepContext,
	}, nil
}

func (h *DispatchJobHandler) Handle(ctx context.Context, msg *core.JobExecutionMessage) error {
	if h == nil || h.dispatcher == nil {
		return fmt.Errorf("gojob: dispatch job handler is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != core.DeliveryDispatchJobID {
		return fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}

	eventID, _ := msg.Parameters[paramEventID].(string)
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("gojob: dispatch message missing event id")
	}

	if raw, ok := msg.Parameters[paramNotBefore].(string); ok && strings.TrimSpace(raw) != "" {
		notBefore, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("gojob: malformed not_before %q: %w", raw, err)
		}
		if wait := notBefore.Sub(h.now()); wait > 0 {
			if err := h.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	event, err := h.dispatcher.DispatchPass(ctx, eventID)
	if err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.Debug("dispatch pass executed",
			"event_id", event.ID,
			"result", string(event.Result),
			"attempts", event.Attempts,
		)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ core.RetryScheduler = (*QueueRetryScheduler)(nil)
