package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-federation/core"
)

var (
	_ gocmd.Querier[ListDeliveryEventsMessage, core.DeliveryEventPage] = (*ListDeliveryEventsQuery)(nil)
	_ gocmd.Querier[ListDeliveryItemsMessage, core.DeliveryItemPage]   = (*ListDeliveryItemsQuery)(nil)
)
