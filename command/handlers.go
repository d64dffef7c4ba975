package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/cavendo/go-dispatch/core"
)

type MutatingService interface {
	CreateRoute(ctx context.Context, req core.CreateRouteRequest) (core.Route, error)
	UpdateRoute(ctx context.Context, req core.UpdateRouteRequest) (core.Route, error)
	DeleteRoute(ctx context.Context, id string) error
	TestRoute(ctx context.Context, req core.TestRouteRequest) (core.TestRouteResult, error)
	DispatchEvent(ctx context.Context, event core.Event) (core.DispatchReceipt, error)
	DispatchAgentEvent(ctx context.Context, event core.Event) (core.DispatchReceipt, error)
	SweepDueRetries(ctx context.Context) (core.SweepStats, error)
	CreateAgentWebhook(ctx context.Context, req core.CreateAgentWebhookRequest) (core.AgentWebhook, error)
	UpdateAgentWebhook(ctx context.Context, req core.UpdateAgentWebhookRequest) (core.AgentWebhook, error)
	DeleteAgentWebhook(ctx context.Context, id string) error
}

type CreateRouteCommand struct {
	service MutatingService
}

func NewCreateRouteCommand(service MutatingService) *CreateRouteCommand {
	return &CreateRouteCommand{service: service}
}

func (c *CreateRouteCommand) Execute(ctx context.Context, msg CreateRouteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: route service is required")
	}
	out, err := c.service.CreateRoute(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateRouteCommand struct {
	service MutatingService
}

func NewUpdateRouteCommand(service MutatingService) *UpdateRouteCommand {
	return &UpdateRouteCommand{service: service}
}

func (c *UpdateRouteCommand) Execute(ctx context.Context, msg UpdateRouteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: route service is required")
	}
	out, err := c.service.UpdateRoute(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteRouteCommand struct {
	service MutatingService
}

func NewDeleteRouteCommand(service MutatingService) *DeleteRouteCommand {
	return &DeleteRouteCommand{service: service}
}

func (c *DeleteRouteCommand) Execute(ctx context.Context, msg DeleteRouteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: route service is required")
	}
	return c.service.DeleteRoute(ctx, msg.RouteID)
}

type TestRouteCommand struct {
	service MutatingService
}

func NewTestRouteCommand(service MutatingService) *TestRouteCommand {
	return &TestRouteCommand{service: service}
}

func (c *TestRouteCommand) Execute(ctx context.Context, msg TestRouteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: route test service is required")
	}
	out, err := c.service.TestRoute(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchEventCommand struct {
	service MutatingService
}

func NewDispatchEventCommand(service MutatingService) *DispatchEventCommand {
	return &DispatchEventCommand{service: service}
}

func (c *DispatchEventCommand) Execute(ctx context.Context, msg DispatchEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.DispatchEvent(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchAgentEventCommand struct {
	service MutatingService
}

func NewDispatchAgentEventCommand(service MutatingService) *DispatchAgentEventCommand {
	return &DispatchAgentEventCommand{service: service}
}

func (c *DispatchAgentEventCommand) Execute(ctx context.Context, msg DispatchAgentEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: agent dispatch service is required")
	}
	out, err := c.service.DispatchAgentEvent(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SweepDueRetriesCommand struct {
	service MutatingService
}

func NewSweepDueRetriesCommand(service MutatingService) *SweepDueRetriesCommand {
	return &SweepDueRetriesCommand{service: service}
}

func (c *SweepDueRetriesCommand) Execute(ctx context.Context, msg SweepDueRetriesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: retry sweep service is required")
	}
	out, err := c.service.SweepDueRetries(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateAgentWebhookCommand struct {
	service MutatingService
}

func NewCreateAgentWebhookCommand(service MutatingService) *CreateAgentWebhookCommand {
	return &CreateAgentWebhookCommand{service: service}
}

func (c *CreateAgentWebhookCommand) Execute(ctx context.Context, msg CreateAgentWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: agent webhook service is required")
	}
	out, err := c.service.CreateAgentWebhook(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateAgentWebhookCommand struct {
	service MutatingService
}

func NewUpdateAgentWebhookCommand(service MutatingService) *UpdateAgentWebhookCommand {
	return &UpdateAgentWebhookCommand{service: service}
}

func (c *UpdateAgentWebhookCommand) Execute(ctx context.Context, msg UpdateAgentWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: agent webhook service is required")
	}
	out, err := c.service.UpdateAgentWebhook(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteAgentWebhookCommand struct {
	service MutatingService
}

func NewDeleteAgentWebhookCommand(service MutatingService) *DeleteAgentWebhookCommand {
	return &DeleteAgentWebhookCommand{service: service}
}

func (c *DeleteAgentWebhookCommand) Execute(ctx context.Context, msg DeleteAgentWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: agent webhook service is required")
	}
	return c.service.DeleteAgentWebhook(ctx, msg.WebhookID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
