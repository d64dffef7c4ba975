package dispatch

import (
	"github.com/cavendo/go-dispatch/core"
	"github.com/cavendo/go-dispatch/destinations"
	"github.com/cavendo/go-dispatch/netguard"
	"github.com/cavendo/go-dispatch/ratelimit"
	"github.com/cavendo/go-dispatch/render"
	"github.com/cavendo/go-dispatch/security"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type RouteStore = core.RouteStore
type DeliveryStore = core.DeliveryStore
type AgentWebhookStore = core.AgentWebhookStore
type AgentWebhookDeliveryStore = core.AgentWebhookDeliveryStore
type DestinationRegistry = core.DestinationRegistry
type URLValidator = core.URLValidator
type PayloadSigner = core.PayloadSigner
type Keyring = core.Keyring
type LoopGuard = core.LoopGuard

type RouteFilter = core.RouteFilter
type DeliveryFilter = core.DeliveryFilter

type Event = core.Event
type Route = core.Route
type DeliveryAttempt = core.DeliveryAttempt
type AgentWebhook = core.AgentWebhook
type DispatchReceipt = core.DispatchReceipt
type SweepStats = core.SweepStats

type CreateRouteRequest = core.CreateRouteRequest
type UpdateRouteRequest = core.UpdateRouteRequest
type TestRouteRequest = core.TestRouteRequest
type TestRouteResult = core.TestRouteResult
type CreateAgentWebhookRequest = core.CreateAgentWebhookRequest
type UpdateAgentWebhookRequest = core.UpdateAgentWebhookRequest

var (
	WithLogger                    = core.WithLogger
	WithLoggerProvider            = core.WithLoggerProvider
	WithMetricsRecorder           = core.WithMetricsRecorder
	WithErrorFactory              = core.WithErrorFactory
	WithErrorMapper               = core.WithErrorMapper
	WithConfigProvider            = core.WithConfigProvider
	WithOptionsResolver           = core.WithOptionsResolver
	WithPersistenceClient         = core.WithPersistenceClient
	WithRepositoryFactory         = core.WithRepositoryFactory
	WithRouteStore                = core.WithRouteStore
	WithDeliveryStore             = core.WithDeliveryStore
	WithAgentWebhookStore         = core.WithAgentWebhookStore
	WithAgentWebhookDeliveryStore = core.WithAgentWebhookDeliveryStore
	WithEncryptedValueSource      = core.WithEncryptedValueSource
	WithDestinationRegistry       = core.WithDestinationRegistry
	WithURLValidator              = core.WithURLValidator
	WithPayloadSigner             = core.WithPayloadSigner
	WithKeyring                   = core.WithKeyring
	WithFieldMapper               = core.WithFieldMapper
	WithTemplateRenderer          = core.WithTemplateRenderer
	WithLoopGuard                 = core.WithLoopGuard
	WithEnricher                  = core.WithEnricher
	WithComponentWiring           = core.WithComponentWiring
)

// Providers supplies the external backends the default component wiring
// needs. A nil provider leaves the matching destination unregistered, so a
// webhook-only deployment passes the zero value.
type Providers struct {
	Email   core.EmailProvider
	Storage core.StorageProvider
	Chat    core.ChatProvider
}

// componentWiring builds the standard component set from the resolved
// configuration: netguard URL validation, HMAC signing, the render engine,
// the destination registry and the loop guard. Components supplied through
// options are used as-is, including inside the registry.
func componentWiring(providers Providers) core.ComponentWiring {
	return func(cfg core.Config, supplied core.Components) (core.Components, error) {
		validator := supplied.URLValidator
		if validator == nil {
			validator = netguard.NewValidator(cfg.AllowLocalDestinations, cfg.CustomEndpoints.Allow, cfg.CustomEndpoints.Allowlist)
		}
		signer := supplied.Signer
		if signer == nil {
			signer = security.NewHMACSigner(cfg.SignatureHeader, cfg.TimestampHeader)
		}

		engine := render.NewEngine()

		registry := supplied.DestinationRegistry
		if registry == nil {
			reg := destinations.NewRegistry()
			if err := reg.Register(destinations.NewWebhookDestination(validator, signer, cfg.WebhookTimeout, cfg.MaxResponseBody)); err != nil {
				return core.Components{}, err
			}
			if providers.Email != nil {
				if err := reg.Register(destinations.NewEmailDestination(providers.Email, engine)); err != nil {
					return core.Components{}, err
				}
			}
			if providers.Storage != nil {
				if err := reg.Register(destinations.NewStorageDestination(providers.Storage, cfg.StorageKeyPrefix)); err != nil {
					return core.Components{}, err
				}
			}
			if providers.Chat != nil {
				if err := reg.Register(destinations.NewSlackDestination(providers.Chat, validator)); err != nil {
					return core.Components{}, err
				}
			}
			registry = reg
		}

		wired := core.Components{
			DestinationRegistry: registry,
			URLValidator:        validator,
			Signer:              signer,
			FieldMapper:         supplied.FieldMapper,
			TemplateRenderer:    supplied.TemplateRenderer,
			LoopGuard:           supplied.LoopGuard,
		}
		if wired.FieldMapper == nil {
			wired.FieldMapper = render.NewMapper()
		}
		if wired.TemplateRenderer == nil {
			wired.TemplateRenderer = engine
		}
		if wired.LoopGuard == nil {
			wired.LoopGuard = ratelimit.NewWindowGuard(cfg.LoopGuard)
		}
		return wired, nil
	}
}

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds a Service with the default component wiring and no external
// providers, so only the webhook destination is registered.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	return SetupWithProviders(cfg, Providers{}, opts...)
}

// SetupWithProviders builds a Service with the default component wiring,
// registering a destination for each non-nil provider. Components supplied
// through options win over the wired defaults.
func SetupWithProviders(cfg Config, providers Providers, opts ...Option) (*Service, error) {
	wired := append([]Option{WithComponentWiring(componentWiring(providers))}, opts...)
	return core.NewService(cfg, wired...)
}
