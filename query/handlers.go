package query

import (
	"context"

	"github.com/cavendo/go-dispatch/core"
)

type RouteReader interface {
	GetRoute(ctx context.Context, id string) (core.Route, error)
	ListRoutes(ctx context.Context, filter core.RouteFilter) ([]core.Route, error)
}

type DeliveryReader interface {
	GetDelivery(ctx context.Context, id string) (core.DeliveryAttempt, error)
	ListDeliveries(ctx context.Context, filter core.DeliveryFilter) ([]core.DeliveryAttempt, error)
}

type AgentWebhookReader interface {
	ListAgentWebhooks(ctx context.Context, agentID string) ([]core.AgentWebhook, error)
}

type EncryptionHealthReader interface {
	EncryptionHealthCheck(ctx context.Context) (core.EncryptionHealthReport, error)
}

type GetRouteQuery struct {
	reader RouteReader
}

func NewGetRouteQuery(reader RouteReader) *GetRouteQuery {
	return &GetRouteQuery{reader: reader}
}

func (q *GetRouteQuery) Query(ctx context.Context, msg GetRouteMessage) (core.Route, error) {
	if q == nil || q.reader == nil {
		return core.Route{}, queryDependencyError("query: route reader is required")
	}
	return q.reader.GetRoute(ctx, msg.RouteID)
}

type ListRoutesQuery struct {
	reader RouteReader
}

func NewListRoutesQuery(reader RouteReader) *ListRoutesQuery {
	return &ListRoutesQuery{reader: reader}
}

func (q *ListRoutesQuery) Query(ctx context.Context, msg ListRoutesMessage) ([]core.Route, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: route reader is required")
	}
	return q.reader.ListRoutes(ctx, msg.Filter)
}

type GetDeliveryQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryQuery(reader DeliveryReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (core.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryAttempt{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.GetDelivery(ctx, msg.DeliveryID)
}

type ListDeliveriesQuery struct {
	reader DeliveryReader
}

func NewListDeliveriesQuery(reader DeliveryReader) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{reader: reader}
}

func (q *ListDeliveriesQuery) Query(
	ctx context.Context,
	msg ListDeliveriesMessage,
) ([]core.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListDeliveries(ctx, msg.Filter)
}

type ListAgentWebhooksQuery struct {
	reader AgentWebhookReader
}

func NewListAgentWebhooksQuery(reader AgentWebhookReader) *ListAgentWebhooksQuery {
	return &ListAgentWebhooksQuery{reader: reader}
}

func (q *ListAgentWebhooksQuery) Query(
	ctx context.Context,
	msg ListAgentWebhooksMessage,
) ([]core.AgentWebhook, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: agent webhook reader is required")
	}
	return q.reader.ListAgentWebhooks(ctx, msg.AgentID)
}

type EncryptionHealthQuery struct {
	reader EncryptionHealthReader
}

func NewEncryptionHealthQuery(reader EncryptionHealthReader) *EncryptionHealthQuery {
	return &EncryptionHealthQuery{reader: reader}
}

func (q *EncryptionHealthQuery) Query(
	ctx context.Context,
	msg EncryptionHealthMessage,
) (core.EncryptionHealthReport, error) {
	if q == nil || q.reader == nil {
		return core.EncryptionHealthReport{}, queryDependencyError("query: encryption health reader is required")
	}
	return q.reader.EncryptionHealthCheck(ctx)
}
