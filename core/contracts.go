package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// StatusStore supplies status content and visibility. It is owned by the
// status/REST layer; the delivery engine only reads from it.
type StatusStore interface {
	GetStatus(ctx context.Context, id string) (Status, error)
}

// ActorDirectory resolves local actor key material and remote recipient
// inboxes. Directory failures are event-fatal: the coordinator records them
// and waits for the next mutation rather than retrying internally.
type ActorDirectory interface {
	GetActorKeys(ctx context.Context, actorID string) (ActorKeys, error)
	ResolveFollowerInboxes(ctx context.Context, actorID string) ([]Inbox, error)
	ResolveMentionedInboxes(ctx context.Context, mentions []string) ([]Inbox, error)
}

// EventStore persists delivery events. GetOpenByStatus backs the
// one-open-event-per-status invariant and must be O(log n) via the
// (status_id, user_id) index.
type EventStore interface {
	Create(ctx context.Context, event DeliveryEvent) (DeliveryEvent, error)
	Get(ctx context.Context, id string) (DeliveryEvent, error)
	GetOpenByStatus(ctx context.Context, statusID string) (DeliveryEvent, bool, error)
	Update(ctx context.Context, event DeliveryEvent) (DeliveryEvent, error)
	ListByStatus(ctx context.Context, statusID string, page int, perPage int) (DeliveryEventPage, error)
}

// ItemStore persists per-destination delivery items.
type ItemStore interface {
	CreateBatch(ctx context.Context, eventID string, urls []string, now time.Time) ([]DeliveryItem, error)
	ListByEvent(ctx context.Context, eventID string, onlyErrors bool, page int, perPage int) (DeliveryItemPage, error)
	ListRetryable(ctx context.Context, eventID string) ([]DeliveryItem, error)
	ListAll(ctx context.Context, eventID string) ([]DeliveryItem, error)
	MarkPassStart(ctx context.Context, itemIDs []string, startAt time.Time) error
	RecordOutcome(ctx context.Context, outcome DeliveryOutcome, endAt time.Time) error
}

// RequestSigner attaches Date, Digest, and Signature headers to an outgoing
// activity request using the acting actor's key material. Implementations
// must re-sign on every call: retries need a fresh Date.
type RequestSigner interface {
	Sign(ctx context.Context, req *http.Request, keys ActorKeys) error
}

// DeliveryFanout executes one dispatch pass worth of tasks and returns one
// outcome per task. Implementations bound concurrency; they perform exactly
// one attempt per task and never touch storage.
type DeliveryFanout interface {
	Deliver(ctx context.Context, tasks []DeliveryTask) []DeliveryOutcome
}

// RetryScheduler defers the next dispatch pass for an event without
// occupying a worker while the backoff elapses.
type RetryScheduler interface {
	ScheduleDispatch(ctx context.Context, eventID string, runAt time.Time) error
}

// Dispatcher is the surface the retry scheduler re-enters with.
type Dispatcher interface {
	DispatchPass(ctx context.Context, eventID string) (DeliveryEvent, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type CommandMessage interface {
	Type() string
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}

// DeliveryDispatchJobID names the queue job that performs a deferred dispatch
// pass. The gojob adapter maps it onto go-job execution messages.
const DeliveryDispatchJobID = "federation.delivery.dispatch"

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
