package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/cavendo/go-dispatch/core"
)

func TestGetRouteQuery_DelegatesToReader(t *testing.T) {
	reader := stubRouteReader{
		getRouteFn: func(_ context.Context, id string) (core.Route, error) {
			if id != "rt_1" {
				t.Fatalf("unexpected route id: %q", id)
			}
			return core.Route{ID: "rt_1", TriggerEvent: "task.updated"}, nil
		},
	}

	route, err := NewGetRouteQuery(reader).Query(context.Background(), GetRouteMessage{RouteID: "rt_1"})
	if err != nil {
		t.Fatalf("get route: %v", err)
	}
	if route.ID != "rt_1" || route.TriggerEvent != "task.updated" {
		t.Fatalf("unexpected route: %#v", route)
	}
}

func TestListRoutesQuery_PassesFilterThrough(t *testing.T) {
	reader := stubRouteReader{
		listRoutesFn: func(_ context.Context, filter core.RouteFilter) ([]core.Route, error) {
			if filter.ProjectID != "p1" || !filter.EnabledOnly || filter.Limit != 10 {
				t.Fatalf("unexpected filter: %#v", filter)
			}
			return []core.Route{{ID: "rt_1"}, {ID: "rt_2"}}, nil
		},
	}

	routes, err := NewListRoutesQuery(reader).Query(context.Background(), ListRoutesMessage{Filter: core.RouteFilter{
		ProjectID:   "p1",
		EnabledOnly: true,
		Limit:       10,
	}})
	if err != nil {
		t.Fatalf("list routes: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
}

func TestDeliveryQueries_DelegateToReader(t *testing.T) {
	t.Run("get delivery", func(t *testing.T) {
		reader := stubDeliveryReader{
			getDeliveryFn: func(_ context.Context, id string) (core.DeliveryAttempt, error) {
				if id != "d1" {
					t.Fatalf("unexpected delivery id: %q", id)
				}
				return core.DeliveryAttempt{ID: "d1", Status: core.DeliveryStatusDelivered}, nil
			},
		}
		attempt, err := NewGetDeliveryQuery(reader).Query(context.Background(), GetDeliveryMessage{DeliveryID: "d1"})
		if err != nil {
			t.Fatalf("get delivery: %v", err)
		}
		if attempt.Status != core.DeliveryStatusDelivered {
			t.Fatalf("unexpected attempt: %#v", attempt)
		}
	})

	t.Run("list deliveries", func(t *testing.T) {
		reader := stubDeliveryReader{
			listDeliveriesFn: func(_ context.Context, filter core.DeliveryFilter) ([]core.DeliveryAttempt, error) {
				if filter.RouteID != "rt_1" || filter.Status != core.DeliveryStatusFailed {
					t.Fatalf("unexpected filter: %#v", filter)
				}
				return []core.DeliveryAttempt{{ID: "d1"}}, nil
			},
		}
		attempts, err := NewListDeliveriesQuery(reader).Query(context.Background(), ListDeliveriesMessage{Filter: core.DeliveryFilter{
			RouteID: "rt_1",
			Status:  core.DeliveryStatusFailed,
		}})
		if err != nil {
			t.Fatalf("list deliveries: %v", err)
		}
		if len(attempts) != 1 || attempts[0].ID != "d1" {
			t.Fatalf("unexpected attempts: %#v", attempts)
		}
	})
}

func TestListAgentWebhooksQuery_DelegatesToReader(t *testing.T) {
	reader := stubAgentWebhookReader{
		listFn: func(_ context.Context, agentID string) ([]core.AgentWebhook, error) {
			if agentID != "agent-1" {
				t.Fatalf("unexpected agent id: %q", agentID)
			}
			return []core.AgentWebhook{{ID: "wh_1", AgentID: "agent-1"}}, nil
		},
	}

	hooks, err := NewListAgentWebhooksQuery(reader).Query(context.Background(), ListAgentWebhooksMessage{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("list agent webhooks: %v", err)
	}
	if len(hooks) != 1 || hooks[0].ID != "wh_1" {
		t.Fatalf("unexpected webhooks: %#v", hooks)
	}
}

func TestEncryptionHealthQuery_DelegatesToReader(t *testing.T) {
	reader := stubEncryptionHealthReader{
		checkFn: func(_ context.Context) (core.EncryptionHealthReport, error) {
			return core.EncryptionHealthReport{Scanned: 5, Failed: 1, CurrentVersion: 2}, nil
		},
	}

	report, err := NewEncryptionHealthQuery(reader).Query(context.Background(), EncryptionHealthMessage{})
	if err != nil {
		t.Fatalf("encryption health: %v", err)
	}
	if report.Scanned != 5 || report.Failed != 1 || report.CurrentVersion != 2 {
		t.Fatalf("unexpected report: %#v", report)
	}
}

func TestQueries_ReaderErrorsPassThrough(t *testing.T) {
	reader := stubRouteReader{
		getRouteFn: func(_ context.Context, _ string) (core.Route, error) {
			return core.Route{}, fmt.Errorf("store offline")
		},
	}
	_, err := NewGetRouteQuery(reader).Query(context.Background(), GetRouteMessage{RouteID: "rt_1"})
	if err == nil || err.Error() != "store offline" {
		t.Fatalf("expected reader error to pass through, got %v", err)
	}
}

func TestQueryMessages_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "get route valid", msg: GetRouteMessage{RouteID: "rt_1"}, wantErr: false},
		{name: "get route missing id", msg: GetRouteMessage{}, wantErr: true},
		{name: "list routes valid", msg: ListRoutesMessage{Filter: core.RouteFilter{Limit: 25}}, wantErr: false},
		{name: "list routes negative limit", msg: ListRoutesMessage{Filter: core.RouteFilter{Limit: -1}}, wantErr: true},
		{name: "list routes negative offset", msg: ListRoutesMessage{Filter: core.RouteFilter{Offset: -1}}, wantErr: true},
		{name: "get delivery missing id", msg: GetDeliveryMessage{}, wantErr: true},
		{name: "list deliveries negative limit", msg: ListDeliveriesMessage{Filter: core.DeliveryFilter{Limit: -5}}, wantErr: true},
		{name: "list agent webhooks missing agent", msg: ListAgentWebhooksMessage{}, wantErr: true},
		{name: "encryption health always valid", msg: EncryptionHealthMessage{}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubRouteReader struct {
	getRouteFn   func(ctx context.Context, id string) (core.Route, error)
	listRoutesFn func(ctx context.Context, filter core.RouteFilter) ([]core.Route, error)
}

func (s stubRouteReader) GetRoute(ctx context.Context, id string) (core.Route, error) {
	if s.getRouteFn == nil {
		return core.Route{}, fmt.Errorf("get route not configured")
	}
	return s.getRouteFn(ctx, id)
}

func (s stubRouteReader) ListRoutes(ctx context.Context, filter core.RouteFilter) ([]core.Route, error) {
	if s.listRoutesFn == nil {
		return nil, fmt.Errorf("list routes not configured")
	}
	return s.listRoutesFn(ctx, filter)
}

type stubDeliveryReader struct {
	getDeliveryFn    func(ctx context.Context, id string) (core.DeliveryAttempt, error)
	listDeliveriesFn func(ctx context.Context, filter core.DeliveryFilter) ([]core.DeliveryAttempt, error)
}

func (s stubDeliveryReader) GetDelivery(ctx context.Context, id string) (core.DeliveryAttempt, error) {
	if s.getDeliveryFn == nil {
		return core.DeliveryAttempt{}, fmt.Errorf("get delivery not configured")
	}
	return s.getDeliveryFn(ctx, id)
}

func (s stubDeliveryReader) ListDeliveries(ctx context.Context, filter core.DeliveryFilter) ([]core.DeliveryAttempt, error) {
	if s.listDeliveriesFn == nil {
		return nil, fmt.Errorf("list deliveries not configured")
	}
	return s.listDeliveriesFn(ctx, filter)
}

type stubAgentWebhookReader struct {
	listFn func(ctx context.Context, agentID string) ([]core.AgentWebhook, error)
}

func (s stubAgentWebhookReader) ListAgentWebhooks(ctx context.Context, agentID string) ([]core.AgentWebhook, error) {
	if s.listFn == nil {
		return nil, fmt.Errorf("list agent webhooks not configured")
	}
	return s.listFn(ctx, agentID)
}

type stubEncryptionHealthReader struct {
	checkFn func(ctx context.Context) (core.EncryptionHealthReport, error)
}

func (s stubEncryptionHealthReader) EncryptionHealthCheck(ctx context.Context) (core.EncryptionHealthReport, error) {
	if s.checkFn == nil {
		return core.EncryptionHealthReport{}, fmt.Errorf("encryption health not configured")
	}
	return s.checkFn(ctx)
}
