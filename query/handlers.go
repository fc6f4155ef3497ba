package query

import (
	"context"

	"github.com/goliatone/go-federation/core"
)

// DeliveryEventReader is the read surface for delivery audit data. The
// federation service implements it with viewer authorization applied.
type DeliveryEventReader interface {
	ListDeliveryEvents(ctx context.Context, req core.ListDeliveryEventsRequest) (core.DeliveryEventPage, error)
}

type DeliveryItemReader interface {
	ListDeliveryItems(ctx context.Context, req core.ListDeliveryItemsRequest) (core.DeliveryItemPage, error)
}

type ListDeliveryEventsQuery struct {
	reader DeliveryEventReader
}

func NewListDeliveryEventsQuery(reader DeliveryEventReader) *ListDeliveryEventsQuery {
	return &ListDeliveryEventsQuery{reader: reader}
}

func (q *ListDeliveryEventsQuery) Query(
	ctx context.Context,
	msg ListDeliveryEventsMessage,
) (core.DeliveryEventPage, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryEventPage{}, queryDependencyError("query: delivery event reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.DeliveryEventPage{}, queryWrapValidation(err, "query: list delivery events")
	}
	return q.reader.ListDeliveryEvents(ctx, msg.Request)
}

type ListDeliveryItemsQuery struct {
	reader DeliveryItemReader
}

func NewListDeliveryItemsQuery(reader DeliveryItemReader) *ListDeliveryItemsQuery {
	return &ListDeliveryItemsQuery{reader: reader}
}

func (q *ListDeliveryItemsQuery) Query(
	ctx context.Context,
	msg ListDeliveryItemsMessage,
) (core.DeliveryItemPage, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryItemPage{}, queryDependencyError("query: delivery item reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.DeliveryItemPage{}, queryWrapValidation(err, "query: list delivery items")
	}
	return q.reader.ListDeliveryItems(ctx, msg.Request)
}
