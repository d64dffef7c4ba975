package gocommand

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	"github.com/cavendo/go-dispatch/command"
	"github.com/cavendo/go-dispatch/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *gocmd.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver gocmd.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd gocmd.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry gocmd.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// DispatchService is the surface the full command and query wiring needs.
type DispatchService interface {
	command.MutatingService
	query.RouteReader
	query.DeliveryReader
	query.AgentWebhookReader
	query.EncryptionHealthReader
}

// RegisterDispatchHandlers subscribes every dispatch command and query
// handler against the shared dispatcher and registers them with the
// registry. Returned subscriptions are already active.
func RegisterDispatchHandlers(
	adapter *RegistryAdapter,
	service DispatchService,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: dispatch service is required")
	}

	var subscriptions []commanddispatcher.Subscription
	register := func(subscription commanddispatcher.Subscription, handler any) error {
		if err := adapter.RegisterCommand(handler); err != nil {
			subscription.Unsubscribe()
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}
	fail := func(err error) ([]commanddispatcher.Subscription, error) {
		for _, subscription := range subscriptions {
			subscription.Unsubscribe()
		}
		return nil, err
	}

	commands := []func() (commanddispatcher.Subscription, any){
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewCreateRouteCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewUpdateRouteCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewDeleteRouteCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewTestRouteCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewDispatchEventCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewDispatchAgentEventCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewSweepDueRetriesCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewCreateAgentWebhookCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewUpdateAgentWebhookCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := command.NewDeleteAgentWebhookCommand(service)
			return SubscribeCommand(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := query.NewGetRouteQuery(service)
			return SubscribeQuery(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := query.NewListRoutesQuery(service)
			return SubscribeQuery(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := query.NewGetDeliveryQuery(service)
			return SubscribeQuery(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := query.NewListDeliveriesQuery(service)
			return SubscribeQuery(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := query.NewListAgentWebhooksQuery(service)
			return SubscribeQuery(handler, runnerOpts...), handler
		},
		func() (commanddispatcher.Subscription, any) {
			handler := query.NewEncryptionHealthQuery(service)
			return SubscribeQuery(handler, runnerOpts...), handler
		},
	}

	for _, build := range commands {
		subscription, handler := build()
		if err := register(subscription, handler); err != nil {
			return fail(err)
		}
	}
	return subscriptions, nil
}
