package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[DeliverStatusMessage]       = (*DeliverStatusCommand)(nil)
	_ gocmd.Commander[RetryDeliveryMessage]       = (*RetryDeliveryCommand)(nil)
	_ gocmd.Commander[DispatchPassMessage]        = (*DispatchPassCommand)(nil)
	_ gocmd.Commander[InvalidateFollowersMessage] = (*InvalidateFollowersCommand)(nil)
)
