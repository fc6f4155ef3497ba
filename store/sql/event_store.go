package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-federation/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EventStore persists delivery events. The partial unique index on
// (status_id) WHERE result = 'pending' is the authority for the single
// open event rule; Create surfaces its violation as core.ErrOpenEventExists.
type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryEventRecord]
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryEventRecord](db, deliveryEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery event repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo}, nil
}

func (s *EventStore) Create(ctx context.Context, event core.DeliveryEvent) (core.DeliveryEvent, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryEvent{}, fmt.Errorf("sqlstore: delivery event store is not configured")
	}
	if strings.TrimSpace(event.StatusID) == "" {
		return core.DeliveryEvent{}, fmt.Errorf("sqlstore: delivery event status id is required")
	}
	if strings.TrimSpace(event.UserID) == "" {
		return core.DeliveryEvent{}, fmt.Errorf("sqlstore: delivery event user id is required")
	}
	if err := event.Type.Validate(); err != nil {
		return core.DeliveryEvent{}, err
	}

	record := deliveryEventToRecord(event)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.Result == "" {
		record.Result = string(core.DeliveryResultPending)
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.DeliveryEvent{}, fmt.Errorf(
				"%w: status %q",
				core.ErrOpenEventExists,
				event.StatusID,
			)
		}
		return core.DeliveryEvent{}, err
	}
	return deliveryEventToDomain(record), nil
}

func (s *EventStore) Get(ctx context.Context, id string) (core.DeliveryEvent, error) {
	if s == nil || s.db == nil {
		return core.DeliveryEvent{}, fmt.Errorf("sqlstore: delivery event store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.DeliveryEvent{}, fmt.Errorf("sqlstore: delivery event id is required")
	}
	record := &deliveryEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.DeliveryEvent{}, fmt.Errorf("%w: %q", core.ErrEventNotFound, id)
		}
		return core.DeliveryEvent{}, err
	}
	return deliveryEventToDomain(record), nil
}

func (s *EventStore) GetOpenByStatus(ctx context.Context, statusID string) (core.DeliveryEvent, bool, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryEvent{}, false, fmt.Errorf("sqlstore: delivery event store is not configured")
	}
	statusID = strings.TrimSpace(statusID)
	if statusID == "" {
		return core.DeliveryEvent{}, false, fmt.Errorf("sqlstore: status id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status_id", "=", statusID),
		repository.SelectBy("result", "=", string(core.DeliveryResultPending)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.DeliveryEvent{}, false, err
	}
	if len(records) == 0 {
		return core.DeliveryEvent{}, false, nil
	}
	return deliveryEventToDomain(records[0]), true, nil
}

func (s *EventStore) Update(ctx context.Context, event core.DeliveryEvent) (core.DeliveryEvent, error) {
	if s == nil || s.db == nil {
		return core.DeliveryEvent{}, fmt.Errorf("sqlstore: delivery event store is not configured")
	}
	id := strings.TrimSpace(event.ID)
	if id == "" {
		return core.DeliveryEvent{}, fmt.Errorf("sqlstore: delivery event id is required")
	}
	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*deliveryEventRecord)(nil)).
		Set("result = ?", string(event.Result)).
		Set("error_message = ?", event.ErrorMessage).
		Set("attempts = ?", event.Attempts).
		Set("start_at = ?", cloneTimePointer(event.StartAt)).
		Set("end_at = ?", cloneTimePointer(event.EndAt)).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return core.DeliveryEvent{}, err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		return core.DeliveryEvent{}, fmt.Errorf("%w: %q", core.ErrEventNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *EventStore) ListByStatus(
	ctx context.Context,
	statusID string,
	page int,
	perPage int,
) (core.DeliveryEventPage, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryEventPage{}, fmt.Errorf("sqlstore: delivery event store is not configured")
	}
	statusID = strings.TrimSpace(statusID)
	if statusID == "" {
		return core.DeliveryEventPage{}, fmt.Errorf("sqlstore: status id is required")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	offset := (page - 1) * perPage

	records, total, err := s.repo.List(ctx,
		repository.SelectBy("status_id", "=", statusID),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	)
	if err != nil {
		return core.DeliveryEventPage{}, err
	}

	events := make([]core.DeliveryEvent, 0, len(records))
	for _, record := range records {
		events = append(events, deliveryEventToDomain(record))
	}
	return core.DeliveryEventPage{
		Events:  events,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

func deliveryEventToRecord(event core.DeliveryEvent) *deliveryEventRecord {
	return &deliveryEventRecord{
		ID:           strings.TrimSpace(event.ID),
		StatusID:     strings.TrimSpace(event.StatusID),
		UserID:       strings.TrimSpace(event.UserID),
		ActivityType: string(event.Type),
		Result:       string(event.Result),
		ErrorMessage: event.ErrorMessage,
		Attempts:     event.Attempts,
		StartAt:      cloneTimePointer(event.StartAt),
		EndAt:        cloneTimePointer(event.EndAt),
		CreatedAt:    event.CreatedAt,
		UpdatedAt:    event.UpdatedAt,
	}
}

func deliveryEventToDomain(record *deliveryEventRecord) core.DeliveryEvent {
	if record == nil {
		return core.DeliveryEvent{}
	}
	return core.DeliveryEvent{
		ID:           record.ID,
		StatusID:     record.StatusID,
		UserID:       record.UserID,
		Type:         core.ActivityType(record.ActivityType),
		Result:       core.DeliveryResult(record.Result),
		ErrorMessage: record.ErrorMessage,
		Attempts:     record.Attempts,
		StartAt:      cloneTimePointer(record.StartAt),
		EndAt:        cloneTimePointer(record.EndAt),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
