package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DispatchCoordinatorConfig struct {
	PoolSize       int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	ItemTimeout    time.Duration
}

func DefaultDispatchCoordinatorConfig() DispatchCoordinatorConfig {
	defaults := DefaultConfig().Delivery
	return DispatchCoordinatorConfig{
		PoolSize:       defaults.PoolSize,
		MaxAttempts:    defaults.MaxAttempts,
		InitialBackoff: defaults.InitialBackoff,
		MaxBackoff:     defaults.MaxBackoff,
		ItemTimeout:    defaults.ItemTimeout,
	}
}

type DispatchCoordinatorDeps struct {
	Statuses  StatusStore
	Directory ActorDirectory
	Events    EventStore
	Items     ItemStore
	Fanout    DeliveryFanout
	Scheduler RetryScheduler
}

// DispatchCoordinator owns the delivery event lifecycle: it creates one
// event per status mutation, resolves recipients, fans each dispatch pass
// out over the delivery pool, aggregates item outcomes into the event
// result, and defers bounded retry passes through the scheduler.
//
// Passes for one event never overlap: each pass schedules at most one
// successor, and DispatchPass is a no-op for events already in a terminal
// result. Events for different statuses dispatch fully in parallel.
type DispatchCoordinator struct {
	statuses  StatusStore
	directory ActorDirectory
	resolver  *RecipientResolver
	events    EventStore
	items     ItemStore
	fanout    DeliveryFanout
	scheduler RetryScheduler
	config    DispatchCoordinatorConfig
	now       func() time.Time
}

func NewDispatchCoordinator(deps DispatchCoordinatorDeps, config DispatchCoordinatorConfig) (*DispatchCoordinator, error) {
	if deps.Statuses == nil {
		return nil, fmt.Errorf("core: status store is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("core: actor directory is required")
	}
	if deps.Events == nil || deps.Items == nil {
		return nil, fmt.Errorf("core: event and item stores are required")
	}
	if deps.Fanout == nil {
		return nil, fmt.Errorf("core: delivery fanout is required")
	}
	resolver, err := NewRecipientResolver(deps.Directory)
	if err != nil {
		return nil, err
	}
	defaults := DefaultDispatchCoordinatorConfig()
	if config.PoolSize <= 0 {
		config.PoolSize = defaults.PoolSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.ItemTimeout <= 0 {
		config.ItemTimeout = defaults.ItemTimeout
	}
	return &DispatchCoordinator{
		statuses:  deps.Statuses,
		directory: deps.Directory,
		resolver:  resolver,
		events:    deps.Events,
		items:     deps.Items,
		fanout:    deps.Fanout,
		scheduler: deps.Scheduler,
		config:    config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// StartDelivery creates the delivery event for one status mutation and runs
// its first dispatch pass.
//
// A still-open event for the same status is a conflict: the caller must wait
// for the prior event to reach a terminal result and re-submit, which keeps
// deliveries to the same recipients ordered. Event-level failures (missing
// keys, resolution errors) are recorded on the event with attempts = 1 and
// zero items; they are not retried until the next mutation.
func (c *DispatchCoordinator) StartDelivery(ctx context.Context, req DeliverRequest) (DeliveryEvent, error) {
	if c == nil || c.events == nil {
		return DeliveryEvent{}, fmt.Errorf("core: dispatch coordinator is not configured")
	}
	statusID := strings.TrimSpace(req.StatusID)
	userID := strings.TrimSpace(req.UserID)
	if statusID == "" || userID == "" {
		return DeliveryEvent{}, fmt.Errorf("core: status id and user id are required")
	}
	if err := req.Type.Validate(); err != nil {
		return DeliveryEvent{}, err
	}

	if open, found, err := c.events.GetOpenByStatus(ctx, statusID); err != nil {
		return DeliveryEvent{}, err
	} else if found {
		return DeliveryEvent{}, fmt.Errorf("%w: status %q event %q", ErrOpenEventExists, statusID, open.ID)
	}

	status, err := c.statuses.GetStatus(ctx, statusID)
	if err != nil {
		return DeliveryEvent{}, err
	}
	if status.AuthorUserID != userID {
		return DeliveryEvent{}, fmt.Errorf("core: forbidden: user %q does not own status %q", userID, statusID)
	}

	now := c.now()
	event := DeliveryEvent{
		ID:        uuid.NewString(),
		StatusID:  statusID,
		UserID:    userID,
		Type:      req.Type,
		Result:    DeliveryResultPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	event, err = c.events.Create(ctx, event)
	if err != nil {
		return DeliveryEvent{}, err
	}

	keys, keysErr := c.actorKeys(ctx, status)
	if keysErr != nil {
		return c.failEvent(ctx, event, keysErr)
	}

	body, buildErr := BuildActivity(req.Type, status)
	if buildErr != nil {
		return c.failEvent(ctx, event, buildErr)
	}

	urls, resolveErr := c.resolver.Resolve(ctx, status, req.Type)
	if resolveErr != nil {
		return c.failEvent(ctx, event, resolveErr)
	}
	if len(urls) == 0 {
		return c.completeEmpty(ctx, event)
	}

	items, err := c.items.CreateBatch(ctx, event.ID, urls, c.now())
	if err != nil {
		return DeliveryEvent{}, err
	}
	return c.runPass(ctx, event, keys, body, items)
}

// DispatchPass runs one retry pass over the items of an event that have not
// yet succeeded. It is the re-entry point for deferred retries and is
// idempotent for events already in a terminal result.
func (c *DispatchCoordinator) DispatchPass(ctx context.Context, eventID string) (DeliveryEvent, error) {
	if c == nil || c.events == nil {
		return DeliveryEvent{}, fmt.Errorf("core: dispatch coordinator is not configured")
	}
	event, err := c.events.Get(ctx, strings.TrimSpace(eventID))
	if err != nil {
		return DeliveryEvent{}, err
	}
	if event.Result.Terminal() {
		return event, nil
	}

	status, err := c.statuses.GetStatus(ctx, event.StatusID)
	if err != nil {
		return c.failEvent(ctx, event, err)
	}
	keys, keysErr := c.actorKeys(ctx, status)
	if keysErr != nil {
		return c.failEvent(ctx, event, keysErr)
	}
	body, buildErr := BuildActivity(event.Type, status)
	if buildErr != nil {
		return c.failEvent(ctx, event, buildErr)
	}

	retryable, err := c.items.ListRetryable(ctx, event.ID)
	if err != nil {
		return DeliveryEvent{}, err
	}
	if len(retryable) == 0 {
		return c.finishPass(ctx, event, c.now())
	}
	return c.runPass(ctx, event, keys, body, retryable)
}

// runPass executes one fan-out pass over the given working set. Already
// succeeded items are never part of the working set, so later passes leave
// them untouched. Item writes happen on this goroutine only, after the pool
// has returned every outcome.
func (c *DispatchCoordinator) runPass(
	ctx context.Context,
	event DeliveryEvent,
	keys ActorKeys,
	body []byte,
	working []DeliveryItem,
) (DeliveryEvent, error) {
	startAt := c.now()
	event.Attempts++
	event.Result = DeliveryResultPending
	event.StartAt = &startAt
	event.EndAt = nil
	event.UpdatedAt = startAt
	event, err := c.events.Update(ctx, event)
	if err != nil {
		return DeliveryEvent{}, err
	}

	itemIDs := make([]string, 0, len(working))
	tasks := make([]DeliveryTask, 0, len(working))
	for _, item := range working {
		itemIDs = append(itemIDs, item.ID)
		tasks = append(tasks, DeliveryTask{
			EventID: event.ID,
			ItemID:  item.ID,
			URL:     item.URL,
			Body:    body,
			Keys:    keys,
			Timeout: c.config.ItemTimeout,
		})
	}
	if err := c.items.MarkPassStart(ctx, itemIDs, startAt); err != nil {
		return DeliveryEvent{}, err
	}

	outcomes := c.fanout.Deliver(ctx, tasks)

	endAt := c.now()
	for _, outcome := range outcomes {
		if err := c.items.RecordOutcome(ctx, outcome, endAt); err != nil {
			return DeliveryEvent{}, err
		}
	}
	return c.finishPass(ctx, event, endAt)
}

func (c *DispatchCoordinator) finishPass(ctx context.Context, event DeliveryEvent, endAt time.Time) (DeliveryEvent, error) {
	all, err := c.items.ListAll(ctx, event.ID)
	if err != nil {
		return DeliveryEvent{}, err
	}
	event.Result = AggregateResult(all, event.Attempts, c.config.MaxAttempts)
	event.EndAt = &endAt
	event.UpdatedAt = endAt
	event, err = c.events.Update(ctx, event)
	if err != nil {
		return DeliveryEvent{}, err
	}

	if event.Result == DeliveryResultPending && c.scheduler != nil {
		runAt := endAt.Add(c.nextBackoffDelay(event.Attempts))
		if err := c.scheduler.ScheduleDispatch(ctx, event.ID, runAt); err != nil {
			return event, fmt.Errorf("core: schedule retry pass for event %q: %w", event.ID, err)
		}
	}
	return event, nil
}

// failEvent records an event-level failure: configuration or resolution
// defects that no per-item retry can fix. The pass is consumed and the event
// freezes until the next status mutation starts a fresh one.
func (c *DispatchCoordinator) failEvent(ctx context.Context, event DeliveryEvent, cause error) (DeliveryEvent, error) {
	now := c.now()
	if event.Attempts == 0 {
		event.Attempts = 1
	}
	event.Result = DeliveryResultFailure
	event.ErrorMessage = cause.Error()
	if event.StartAt == nil {
		event.StartAt = &now
	}
	event.EndAt = &now
	event.UpdatedAt = now
	return c.events.Update(ctx, event)
}

func (c *DispatchCoordinator) completeEmpty(ctx context.Context, event DeliveryEvent) (DeliveryEvent, error) {
	now := c.now()
	event.Attempts = 1
	event.Result = DeliveryResultSuccess
	event.StartAt = &now
	event.EndAt = &now
	event.UpdatedAt = now
	return c.events.Update(ctx, event)
}

func (c *DispatchCoordinator) actorKeys(ctx context.Context, status Status) (ActorKeys, error) {
	keys, err := c.directory.GetActorKeys(ctx, status.AuthorActorID)
	if err != nil {
		return ActorKeys{}, err
	}
	if err := keys.Validate(); err != nil {
		return ActorKeys{}, err
	}
	return keys, nil
}

func (c *DispatchCoordinator) nextBackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(c.config.InitialBackoff)
	multiplier := math.Pow(2, float64(attempt-1))
	next := time.Duration(base * multiplier)
	if next < 0 {
		return c.config.MaxBackoff
	}
	if next > c.config.MaxBackoff {
		return c.config.MaxBackoff
	}
	return next
}

var _ Dispatcher = (*DispatchCoordinator)(nil)
