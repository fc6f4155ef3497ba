package federation

import "github.com/goliatone/go-federation/core"

type Config = core.Config

type DeliveryConfig = core.DeliveryConfig

type Option = core.Option

type Service = core.Service

type StatusStore = core.StatusStore
type ActorDirectory = core.ActorDirectory
type EventStore = core.EventStore
type ItemStore = core.ItemStore
type RequestSigner = core.RequestSigner
type DeliveryFanout = core.DeliveryFanout
type RetryScheduler = core.RetryScheduler
type Dispatcher = core.Dispatcher

type DeliveryEvent = core.DeliveryEvent
type DeliveryItem = core.DeliveryItem
type DeliveryResult = core.DeliveryResult
type ActivityType = core.ActivityType
type Visibility = core.Visibility
type Status = core.Status
type Inbox = core.Inbox
type ActorKeys = core.ActorKeys
type Viewer = core.Viewer

type DeliverRequest = core.DeliverRequest
type RetryDeliveryRequest = core.RetryDeliveryRequest
type ListDeliveryEventsRequest = core.ListDeliveryEventsRequest
type ListDeliveryItemsRequest = core.ListDeliveryItemsRequest
type DeliveryEventPage = core.DeliveryEventPage
type DeliveryItemPage = core.DeliveryItemPage

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithStatusStore     = core.WithStatusStore
	WithActorDirectory  = core.WithActorDirectory
	WithEventStore      = core.WithEventStore
	WithItemStore       = core.WithItemStore
	WithSigner          = core.WithSigner
	WithDeliveryFanout  = core.WithDeliveryFanout
	WithRetryScheduler  = core.WithRetryScheduler
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
