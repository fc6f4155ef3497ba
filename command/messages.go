package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-federation/core"
)

const (
	TypeDeliverStatus      = "federation.command.status.deliver"
	TypeRetryDelivery      = "federation.command.delivery.retry"
	TypeDispatchPass       = "federation.command.delivery.dispatch_pass"
	TypeInvalidateInboxSet = "federation.command.directory.invalidate_followers"
)

type DeliverStatusMessage struct {
	Request core.DeliverRequest
}

func (DeliverStatusMessage) Type() string { return TypeDeliverStatus }

func (m DeliverStatusMessage) Validate() error {
	if strings.TrimSpace(m.Request.StatusID) == "" {
		return fmt.Errorf("command: status id is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return m.Request.Type.Validate()
}

type RetryDeliveryMessage struct {
	Request core.RetryDeliveryRequest
}

func (RetryDeliveryMessage) Type() string { return TypeRetryDelivery }

func (m RetryDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.Request.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	if strings.TrimSpace(m.Request.Viewer.UserID) == "" {
		return fmt.Errorf("command: viewer user id is required")
	}
	return nil
}

type DispatchPassMessage struct {
	EventID string
}

func (DispatchPassMessage) Type() string { return TypeDispatchPass }

func (m DispatchPassMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	return nil
}

type InvalidateFollowersMessage struct {
	ActorID string
}

func (InvalidateFollowersMessage) Type() string { return TypeInvalidateInboxSet }

func (m InvalidateFollowersMessage) Validate() error {
	if strings.TrimSpace(m.ActorID) == "" {
		return fmt.Errorf("command: actor id is required")
	}
	return nil
}
