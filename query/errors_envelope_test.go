package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/cavendo/go-dispatch/core"
)

func TestGetRouteQuery_NilReceiverReturnsRichError(t *testing.T) {
	var q *GetRouteQuery
	_, err := q.Query(context.Background(), GetRouteMessage{RouteID: "rt_1"})
	if err == nil {
		t.Fatalf("expected query dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.DispatchErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.DispatchErrorInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 code, got %d", rich.Code)
	}
}

func TestQueries_NilReaderReturnsRichError(t *testing.T) {
	queries := map[string]func() error{
		"list routes": func() error {
			_, err := NewListRoutesQuery(nil).Query(context.Background(), ListRoutesMessage{})
			return err
		},
		"get delivery": func() error {
			_, err := NewGetDeliveryQuery(nil).Query(context.Background(), GetDeliveryMessage{DeliveryID: "d1"})
			return err
		},
		"list deliveries": func() error {
			_, err := NewListDeliveriesQuery(nil).Query(context.Background(), ListDeliveriesMessage{})
			return err
		},
		"list agent webhooks": func() error {
			_, err := NewListAgentWebhooksQuery(nil).Query(context.Background(), ListAgentWebhooksMessage{AgentID: "agent-1"})
			return err
		},
		"encryption health": func() error {
			_, err := NewEncryptionHealthQuery(nil).Query(context.Background(), EncryptionHealthMessage{})
			return err
		},
	}

	for name, run := range queries {
		t.Run(name, func(t *testing.T) {
			err := run()
			if err == nil {
				t.Fatalf("expected query dependency error")
			}
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.Category != goerrors.CategoryInternal {
				t.Fatalf("expected internal category, got %q", rich.Category)
			}
		})
	}
}
