package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-federation/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ItemStore persists per-destination delivery items. The unique index on
// (event_id, url) backs the one-item-per-destination rule; CreateBatch
// surfaces its violation so a resolver dedup bug cannot silently double a
// destination.
type ItemStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryItemRecord]
}

func NewItemStore(db *bun.DB) (*ItemStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryItemRecord](db, deliveryItemHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery item repository wiring: %w", err)
		}
	}
	return &ItemStore{db: db, repo: repo}, nil
}

func (s *ItemStore) CreateBatch(
	ctx context.Context,
	eventID string,
	urls []string,
	now time.Time,
) ([]core.DeliveryItem, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery item store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("sqlstore: event id is required")
	}
	if len(urls) == 0 {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()

	records := make([]*deliveryItemRecord, 0, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			return nil, fmt.Errorf("sqlstore: delivery item url is required")
		}
		records = append(records, &deliveryItemRecord{
			ID:        uuid.NewString(),
			EventID:   eventID,
			URL:       url,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if _, err := s.db.NewInsert().Model(&records).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sqlstore: duplicate delivery item url for event %q: %w", eventID, err)
		}
		return nil, err
	}

	items := make([]core.DeliveryItem, 0, len(records))
	for _, record := range records {
		items = append(items, deliveryItemToDomain(record))
	}
	return items, nil
}

func (s *ItemStore) ListByEvent(
	ctx context.Context,
	eventID string,
	onlyErrors bool,
	page int,
	perPage int,
) (core.DeliveryItemPage, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryItemPage{}, fmt.Errorf("sqlstore: delivery item store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return core.DeliveryItemPage{}, fmt.Errorf("sqlstore: event id is required")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.SelectBy("event_id", "=", eventID),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(perPage, offset),
	}
	if onlyErrors {
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_success = ?", false)
		}))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.DeliveryItemPage{}, err
	}

	items := make([]core.DeliveryItem, 0, len(records))
	for _, record := range records {
		items = append(items, deliveryItemToDomain(record))
	}
	return core.DeliveryItemPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

// ListRetryable returns the items the next pass must re-attempt: everything
// that has not succeeded yet, in creation order.
func (s *ItemStore) ListRetryable(ctx context.Context, eventID string) ([]core.DeliveryItem, error) {
	return s.listForEvent(ctx, eventID, true)
}

func (s *ItemStore) ListAll(ctx context.Context, eventID string) ([]core.DeliveryItem, error) {
	return s.listForEvent(ctx, eventID, false)
}

func (s *ItemStore) listForEvent(
	ctx context.Context,
	eventID string,
	retryableOnly bool,
) ([]core.DeliveryItem, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: delivery item store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("sqlstore: event id is required")
	}

	selectors := []repository.SelectCriteria{
		repository.SelectBy("event_id", "=", eventID),
		repository.OrderBy("created_at ASC"),
	}
	if retryableOnly {
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("(?TableAlias.is_success IS NULL OR ?TableAlias.is_success = ?)", false)
		}))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	items := make([]core.DeliveryItem, 0, len(records))
	for _, record := range records {
		items = append(items, deliveryItemToDomain(record))
	}
	return items, nil
}

// MarkPassStart flips the listed items back to in-flight: outcome cleared,
// start stamped. Prior failure text is kept until the new outcome lands.
func (s *ItemStore) MarkPassStart(ctx context.Context, itemIDs []string, startAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery item store is not configured")
	}
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if startAt.IsZero() {
		startAt = time.Now().UTC()
	}
	_, err := s.db.NewUpdate().
		Model((*deliveryItemRecord)(nil)).
		Set("is_success = NULL").
		Set("start_at = ?", startAt.UTC()).
		Set("end_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

func (s *ItemStore) RecordOutcome(ctx context.Context, outcome core.DeliveryOutcome, endAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery item store is not configured")
	}
	itemID := strings.TrimSpace(outcome.ItemID)
	if itemID == "" {
		return fmt.Errorf("sqlstore: outcome item id is required")
	}
	if endAt.IsZero() {
		endAt = time.Now().UTC()
	}
	errorMessage := ""
	if !outcome.Success {
		errorMessage = strings.TrimSpace(outcome.ErrorText)
	}
	_, err := s.db.NewUpdate().
		Model((*deliveryItemRecord)(nil)).
		Set("is_success = ?", outcome.Success).
		Set("error_message = ?", errorMessage).
		Set("end_at = ?", endAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", itemID).
		Exec(ctx)
	return err
}

func deliveryItemToDomain(record *deliveryItemRecord) core.DeliveryItem {
	if record == nil {
		return core.DeliveryItem{}
	}
	item := core.DeliveryItem{
		ID:           record.ID,
		EventID:      record.EventID,
		URL:          record.URL,
		ErrorMessage: record.ErrorMessage,
		StartAt:      cloneTimePointer(record.StartAt),
		EndAt:        cloneTimePointer(record.EndAt),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
	if record.IsSuccess != nil {
		value := *record.IsSuccess
		item.IsSuccess = &value
	}
	return item
}
