package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-federation/core"
)

const (
	TypeListDeliveryEvents = "federation.query.delivery_events.list"
	TypeListDeliveryItems  = "federation.query.delivery_items.list"
)

type ListDeliveryEventsMessage struct {
	Request core.ListDeliveryEventsRequest
}

func (ListDeliveryEventsMessage) Type() string { return TypeListDeliveryEvents }

func (m ListDeliveryEventsMessage) Validate() error {
	if strings.TrimSpace(m.Request.StatusID) == "" {
		return fmt.Errorf("query: status id is required")
	}
	if m.Request.Page < 0 {
		return fmt.Errorf("query: page must be >= 0")
	}
	if m.Request.PerPage < 0 {
		return fmt.Errorf("query: per_page must be >= 0")
	}
	return nil
}

type ListDeliveryItemsMessage struct {
	Request core.ListDeliveryItemsRequest
}

func (ListDeliveryItemsMessage) Type() string { return TypeListDeliveryItems }

func (m ListDeliveryItemsMessage) Validate() error {
	if strings.TrimSpace(m.Request.EventID) == "" {
		return fmt.Errorf("query: event id is required")
	}
	if m.Request.Page < 0 {
		return fmt.Errorf("query: page must be >= 0")
	}
	if m.Request.PerPage < 0 {
		return fmt.Errorf("query: per_page must be >= 0")
	}
	return nil
}
