package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the delivery engine facade: it wires the dispatch coordinator,
// the read surface used by the API/moderation layer, and the ambient
// logging/metrics/error mapping around both.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	statusStore     StatusStore
	directory       ActorDirectory
	eventStore      EventStore
	itemStore       ItemStore
	signer          RequestSigner
	fanout          DeliveryFanout
	retryScheduler  RetryScheduler
	coordinator     *DispatchCoordinator
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("federation", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("federation"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.signer == nil {
		builder.signer = &HTTPSignatureSigner{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig = finalConfig.withDefaults()

	service := &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		statusStore:     builder.statusStore,
		directory:       builder.directory,
		eventStore:      builder.eventStore,
		itemStore:       builder.itemStore,
		signer:          builder.signer,
		fanout:          builder.fanout,
		retryScheduler:  builder.retryScheduler,
	}

	if builder.statusStore != nil &&
		builder.directory != nil &&
		builder.eventStore != nil &&
		builder.itemStore != nil &&
		builder.fanout != nil {
		coordinator, buildErr := NewDispatchCoordinator(DispatchCoordinatorDeps{
			Statuses:  builder.statusStore,
			Directory: builder.directory,
			Events:    builder.eventStore,
			Items:     builder.itemStore,
			Fanout:    builder.fanout,
			Scheduler: builder.retryScheduler,
		}, DispatchCoordinatorConfig{
			PoolSize:       finalConfig.Delivery.PoolSize,
			MaxAttempts:    finalConfig.Delivery.MaxAttempts,
			InitialBackoff: finalConfig.Delivery.InitialBackoff,
			MaxBackoff:     finalConfig.Delivery.MaxBackoff,
			ItemTimeout:    finalConfig.Delivery.ItemTimeout,
		})
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		service.coordinator = coordinator
	}

	return service, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Signer() RequestSigner {
	if s == nil {
		return nil
	}
	return s.signer
}

// DeliverStatus starts the delivery event for one status mutation and runs
// its first dispatch pass. Event-level failures (missing keys, resolution
// errors) are recorded on the returned event rather than surfaced as call
// errors; conflicts with a still-open event for the same status are.
func (s *Service) DeliverStatus(ctx context.Context, req DeliverRequest) (DeliveryEvent, error) {
	startedAt := time.Now()
	event, err := s.deliverStatus(ctx, req)
	s.observeOperation(ctx, startedAt, "delivery.start", err, map[string]any{
		"status_id":     req.StatusID,
		"user_id":       req.UserID,
		"activity_type": string(req.Type),
		"event_id":      event.ID,
		"result":        string(event.Result),
		"attempts":      event.Attempts,
	})
	if err != nil {
		return DeliveryEvent{}, s.mapError(err)
	}
	return event, nil
}

func (s *Service) deliverStatus(ctx context.Context, req DeliverRequest) (DeliveryEvent, error) {
	if s == nil || s.coordinator == nil {
		return DeliveryEvent{}, fmt.Errorf("core: delivery service is not fully configured")
	}
	return s.coordinator.StartDelivery(ctx, req)
}

// DispatchPass re-enters a pending event for its next retry pass. It is
// invoked by the retry scheduler, not by API callers.
func (s *Service) DispatchPass(ctx context.Context, eventID string) (DeliveryEvent, error) {
	startedAt := time.Now()
	event, err := s.dispatchPass(ctx, eventID)
	s.observeOperation(ctx, startedAt, "delivery.pass", err, map[string]any{
		"event_id": eventID,
		"result":   string(event.Result),
		"attempts": event.Attempts,
	})
	if err != nil {
		return DeliveryEvent{}, s.mapError(err)
	}
	return event, nil
}

func (s *Service) dispatchPass(ctx context.Context, eventID string) (DeliveryEvent, error) {
	if s == nil || s.coordinator == nil {
		return DeliveryEvent{}, fmt.Errorf("core: delivery service is not fully configured")
	}
	return s.coordinator.DispatchPass(ctx, eventID)
}

// RetryDeliveryEvent starts a fresh delivery event for a frozen one. The
// original event stays in the audit trail; the new event re-resolves
// recipients and runs under the normal attempt budget. Only the status owner
// or staff may trigger it, and only for terminal, non-success events.
func (s *Service) RetryDeliveryEvent(ctx context.Context, req RetryDeliveryRequest) (DeliveryEvent, error) {
	startedAt := time.Now()
	event, err := s.retryDeliveryEvent(ctx, req)
	s.observeOperation(ctx, startedAt, "delivery.retry", err, map[string]any{
		"event_id": req.EventID,
		"user_id":  req.Viewer.UserID,
	})
	if err != nil {
		return DeliveryEvent{}, s.mapError(err)
	}
	return event, nil
}

func (s *Service) retryDeliveryEvent(ctx context.Context, req RetryDeliveryRequest) (DeliveryEvent, error) {
	if s == nil || s.coordinator == nil || s.eventStore == nil {
		return DeliveryEvent{}, fmt.Errorf("core: delivery service is not fully configured")
	}
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return DeliveryEvent{}, fmt.Errorf("core: event id is required")
	}
	prior, err := s.eventStore.Get(ctx, eventID)
	if err != nil {
		return DeliveryEvent{}, err
	}
	if err := s.authorizeEvent(prior, req.Viewer); err != nil {
		return DeliveryEvent{}, err
	}
	if !prior.Result.Terminal() {
		return DeliveryEvent{}, fmt.Errorf("%w: status %q event %q", ErrOpenEventExists, prior.StatusID, prior.ID)
	}
	if prior.Result == DeliveryResultSuccess {
		return DeliveryEvent{}, fmt.Errorf("core: invalid retry: event %q already succeeded", prior.ID)
	}
	return s.coordinator.StartDelivery(ctx, DeliverRequest{
		StatusID: prior.StatusID,
		UserID:   prior.UserID,
		Type:     prior.Type,
	})
}

// ListDeliveryEvents returns the delivery history of a status, newest first.
// Visible to the status owner and to moderators/administrators only.
func (s *Service) ListDeliveryEvents(ctx context.Context, req ListDeliveryEventsRequest) (DeliveryEventPage, error) {
	startedAt := time.Now()
	page, err := s.listDeliveryEvents(ctx, req)
	s.observeOperation(ctx, startedAt, "delivery.events.list", err, map[string]any{
		"status_id": req.StatusID,
		"user_id":   req.Viewer.UserID,
	})
	if err != nil {
		return DeliveryEventPage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) listDeliveryEvents(ctx context.Context, req ListDeliveryEventsRequest) (DeliveryEventPage, error) {
	if s == nil || s.eventStore == nil || s.statusStore == nil {
		return DeliveryEventPage{}, fmt.Errorf("core: delivery service is not fully configured")
	}
	statusID := strings.TrimSpace(req.StatusID)
	if statusID == "" {
		return DeliveryEventPage{}, fmt.Errorf("core: status id is required")
	}
	status, err := s.statusStore.GetStatus(ctx, statusID)
	if err != nil {
		return DeliveryEventPage{}, err
	}
	if status.AuthorUserID != req.Viewer.UserID && !req.Viewer.IsStaff() {
		return DeliveryEventPage{}, fmt.Errorf("core: forbidden: viewer may not inspect deliveries for status %q", statusID)
	}
	page, perPage := s.normalizePage(req.Page, req.PerPage)
	return s.eventStore.ListByStatus(ctx, statusID, page, perPage)
}

// ListDeliveryItems returns per-destination outcomes for one event, with an
// optional only-errors filter. Authorization runs against the owning event.
func (s *Service) ListDeliveryItems(ctx context.Context, req ListDeliveryItemsRequest) (DeliveryItemPage, error) {
	startedAt := time.Now()
	page, err := s.listDeliveryItems(ctx, req)
	s.observeOperation(ctx, startedAt, "delivery.items.list", err, map[string]any{
		"event_id": req.EventID,
		"user_id":  req.Viewer.UserID,
	})
	if err != nil {
		return DeliveryItemPage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) listDeliveryItems(ctx context.Context, req ListDeliveryItemsRequest) (DeliveryItemPage, error) {
	if s == nil || s.eventStore == nil || s.itemStore == nil {
		return DeliveryItemPage{}, fmt.Errorf("core: delivery service is not fully configured")
	}
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return DeliveryItemPage{}, fmt.Errorf("core: event id is required")
	}
	event, err := s.eventStore.Get(ctx, eventID)
	if err != nil {
		return DeliveryItemPage{}, err
	}
	if err := s.authorizeEvent(event, req.Viewer); err != nil {
		return DeliveryItemPage{}, err
	}
	page, perPage := s.normalizePage(req.Page, req.PerPage)
	return s.itemStore.ListByEvent(ctx, eventID, req.OnlyErrors, page, perPage)
}

func (s *Service) authorizeEvent(event DeliveryEvent, viewer Viewer) error {
	if event.UserID == viewer.UserID && strings.TrimSpace(viewer.UserID) != "" {
		return nil
	}
	if viewer.IsStaff() {
		return nil
	}
	return fmt.Errorf("core: forbidden: viewer may not inspect delivery event %q", event.ID)
}

func (s *Service) normalizePage(page int, perPage int) (int, int) {
	if page < 0 {
		page = 0
	}
	if perPage <= 0 {
		perPage = s.config.Delivery.PageSize
	}
	if perPage <= 0 {
		perPage = DefaultConfig().Delivery.PageSize
	}
	return page, perPage
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	mapper := defaultErrorMapper
	if s != nil && s.errorMapper != nil {
		mapper = s.errorMapper
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		mapper = defaultErrorMapper
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return goerrors.New(err.Error(), goerrors.CategoryInternal)
}
