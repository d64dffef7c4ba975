package query

import (
	"fmt"
	"strings"

	"github.com/cavendo/go-dispatch/core"
)

const (
	TypeGetRoute          = "dispatch.query.route.get"
	TypeListRoutes        = "dispatch.query.route.list"
	TypeGetDelivery       = "dispatch.query.delivery.get"
	TypeListDeliveries    = "dispatch.query.delivery.list"
	TypeListAgentWebhooks = "dispatch.query.agent_webhook.list"
	TypeEncryptionHealth  = "dispatch.query.encryption.health"
)

type GetRouteMessage struct {
	RouteID string
}

func (GetRouteMessage) Type() string { return TypeGetRoute }

func (m GetRouteMessage) Validate() error {
	if strings.TrimSpace(m.RouteID) == "" {
		return fmt.Errorf("query: route id is required")
	}
	return nil
}

type ListRoutesMessage struct {
	Filter core.RouteFilter
}

func (ListRoutesMessage) Type() string { return TypeListRoutes }

func (m ListRoutesMessage) Validate() error {
	if m.Filter.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	if m.Filter.Offset < 0 {
		return fmt.Errorf("query: offset must be >= 0")
	}
	return nil
}

type GetDeliveryMessage struct {
	DeliveryID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("query: delivery id is required")
	}
	return nil
}

type ListDeliveriesMessage struct {
	Filter core.DeliveryFilter
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if m.Filter.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	if m.Filter.Offset < 0 {
		return fmt.Errorf("query: offset must be >= 0")
	}
	return nil
}

type ListAgentWebhooksMessage struct {
	AgentID string
}

func (ListAgentWebhooksMessage) Type() string { return TypeListAgentWebhooks }

func (m ListAgentWebhooksMessage) Validate() error {
	if strings.TrimSpace(m.AgentID) == "" {
		return fmt.Errorf("query: agent id is required")
	}
	return nil
}

type EncryptionHealthMessage struct{}

func (EncryptionHealthMessage) Type() string { return TypeEncryptionHealth }

func (EncryptionHealthMessage) Validate() error { return nil }
