package command

import (
	"fmt"
	"strings"

	"github.com/cavendo/go-dispatch/core"
)

const (
	TypeCreateRoute        = "dispatch.command.route.create"
	TypeUpdateRoute        = "dispatch.command.route.update"
	TypeDeleteRoute        = "dispatch.command.route.delete"
	TypeTestRoute          = "dispatch.command.route.test"
	TypeDispatchEvent      = "dispatch.command.event.dispatch"
	TypeDispatchAgentEvent = "dispatch.command.event.dispatch_agent"
	TypeSweepDueRetries    = "dispatch.command.retry.sweep"
	TypeCreateAgentWebhook = "dispatch.command.agent_webhook.create"
	TypeUpdateAgentWebhook = "dispatch.command.agent_webhook.update"
	TypeDeleteAgentWebhook = "dispatch.command.agent_webhook.delete"
)

type CreateRouteMessage struct {
	Request core.CreateRouteRequest
}

func (CreateRouteMessage) Type() string { return TypeCreateRoute }

func (m CreateRouteMessage) Validate() error {
	if strings.TrimSpace(m.Request.TriggerEvent) == "" {
		return fmt.Errorf("command: trigger event is required")
	}
	if strings.TrimSpace(string(m.Request.Destination)) == "" {
		return fmt.Errorf("command: destination is required")
	}
	return nil
}

type UpdateRouteMessage struct {
	Request core.UpdateRouteRequest
}

func (UpdateRouteMessage) Type() string { return TypeUpdateRoute }

func (m UpdateRouteMessage) Validate() error {
	if strings.TrimSpace(m.Request.ID) == "" {
		return fmt.Errorf("command: route id is required")
	}
	return nil
}

type DeleteRouteMessage struct {
	RouteID string
}

func (DeleteRouteMessage) Type() string { return TypeDeleteRoute }

func (m DeleteRouteMessage) Validate() error {
	if strings.TrimSpace(m.RouteID) == "" {
		return fmt.Errorf("command: route id is required")
	}
	return nil
}

type TestRouteMessage struct {
	Request core.TestRouteRequest
}

func (TestRouteMessage) Type() string { return TypeTestRoute }

func (m TestRouteMessage) Validate() error {
	if strings.TrimSpace(m.Request.RouteID) == "" {
		return fmt.Errorf("command: route id is required")
	}
	return nil
}

type DispatchEventMessage struct {
	Event core.Event
}

func (DispatchEventMessage) Type() string { return TypeDispatchEvent }

func (m DispatchEventMessage) Validate() error {
	if strings.TrimSpace(m.Event.Type) == "" {
		return fmt.Errorf("command: event type is required")
	}
	return nil
}

type DispatchAgentEventMessage struct {
	Event core.Event
}

func (DispatchAgentEventMessage) Type() string { return TypeDispatchAgentEvent }

func (m DispatchAgentEventMessage) Validate() error {
	if strings.TrimSpace(m.Event.Type) == "" {
		return fmt.Errorf("command: event type is required")
	}
	if strings.TrimSpace(m.Event.AgentID) == "" {
		return fmt.Errorf("command: agent id is required")
	}
	return nil
}

type SweepDueRetriesMessage struct{}

func (SweepDueRetriesMessage) Type() string { return TypeSweepDueRetries }

func (SweepDueRetriesMessage) Validate() error { return nil }

type CreateAgentWebhookMessage struct {
	Request core.CreateAgentWebhookRequest
}

func (CreateAgentWebhookMessage) Type() string { return TypeCreateAgentWebhook }

func (m CreateAgentWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Request.AgentID) == "" {
		return fmt.Errorf("command: agent id is required")
	}
	if strings.TrimSpace(m.Request.URL) == "" {
		return fmt.Errorf("command: webhook url is required")
	}
	return nil
}

type UpdateAgentWebhookMessage struct {
	Request core.UpdateAgentWebhookRequest
}

func (UpdateAgentWebhookMessage) Type() string { return TypeUpdateAgentWebhook }

func (m UpdateAgentWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Request.ID) == "" {
		return fmt.Errorf("command: webhook id is required")
	}
	return nil
}

type DeleteAgentWebhookMessage struct {
	WebhookID string
}

func (DeleteAgentWebhookMessage) Type() string { return TypeDeleteAgentWebhook }

func (m DeleteAgentWebhookMessage) Validate() error {
	if strings.TrimSpace(m.WebhookID) == "" {
		return fmt.Errorf("command: webhook id is required")
	}
	return nil
}
