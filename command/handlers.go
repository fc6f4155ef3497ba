package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-federation/core"
)

// MutatingService is the write surface the command handlers delegate to. The
// federation service implements it.
type MutatingService interface {
	DeliverStatus(ctx context.Context, req core.DeliverRequest) (core.DeliveryEvent, error)
	RetryDeliveryEvent(ctx context.Context, req core.RetryDeliveryRequest) (core.DeliveryEvent, error)
	DispatchPass(ctx context.Context, eventID string) (core.DeliveryEvent, error)
}

// FollowerCacheInvalidator drops a cached follower inbox set; implemented by
// the cached actor directory in store/sql.
type FollowerCacheInvalidator interface {
	InvalidateFollowers(ctx context.Context, actorID string) error
}

type DeliverStatusCommand struct {
	service MutatingService
}

func NewDeliverStatusCommand(service MutatingService) *DeliverStatusCommand {
	return &DeliverStatusCommand{service: service}
}

func (c *DeliverStatusCommand) Execute(ctx context.Context, msg DeliverStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: deliver status")
	}
	out, err := c.service.DeliverStatus(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RetryDeliveryCommand struct {
	service MutatingService
}

func NewRetryDeliveryCommand(service MutatingService) *RetryDeliveryCommand {
	return &RetryDeliveryCommand{service: service}
}

func (c *RetryDeliveryCommand) Execute(ctx context.Context, msg RetryDeliveryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: retry delivery")
	}
	out, err := c.service.RetryDeliveryEvent(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchPassCommand struct {
	service MutatingService
}

func NewDispatchPassCommand(service MutatingService) *DispatchPassCommand {
	return &DispatchPassCommand{service: service}
}

func (c *DispatchPassCommand) Execute(ctx context.Context, msg DispatchPassMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: dispatch pass")
	}
	out, err := c.service.DispatchPass(ctx, msg.EventID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type InvalidateFollowersCommand struct {
	invalidator FollowerCacheInvalidator
}

func NewInvalidateFollowersCommand(invalidator FollowerCacheInvalidator) *InvalidateFollowersCommand {
	return &InvalidateFollowersCommand{invalidator: invalidator}
}

func (c *InvalidateFollowersCommand) Execute(ctx context.Context, msg InvalidateFollowersMessage) error {
	if c == nil || c.invalidator == nil {
		return commandDependencyError("command: follower cache invalidator is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalidate followers")
	}
	return c.invalidator.InvalidateFollowers(ctx, msg.ActorID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
