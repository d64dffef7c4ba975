package core

import (
	"context"
	"fmt"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// Components are the config-driven collaborators a wiring hook builds once
// the layered configuration is resolved. NewService only fills the slots
// the caller left empty, so explicit options always win.
type Components struct {
	DestinationRegistry DestinationRegistry
	URLValidator        URLValidator
	Signer              PayloadSigner
	FieldMapper         FieldMapper
	TemplateRenderer    TemplateRenderer
	LoopGuard           LoopGuard
}

// ComponentWiring builds components from the resolved configuration. The
// supplied set carries what the caller already injected, letting the hook
// reuse those pieces instead of building its own.
type ComponentWiring func(cfg Config, supplied Components) (Components, error)

func WithComponentWiring(wiring ComponentWiring) Option {
	return func(b *serviceBuilder) {
		b.componentWiring = wiring
	}
}

type serviceBuilder struct {
	runtimeConfig       Config
	logger              Logger
	loggerProvider      LoggerProvider
	metricsRecorder     MetricsRecorder
	errorFactory        ErrorFactory
	errorMapper         ErrorMapper
	configProvider      ConfigProvider
	optionsResolver     OptionsResolver
	persistenceClient   any
	repositoryFactory   any
	routeStore          RouteStore
	deliveryStore       DeliveryStore
	agentWebhookStore   AgentWebhookStore
	agentDeliveryStore  AgentWebhookDeliveryStore
	encryptedSource     EncryptedValueSource
	destinationRegistry DestinationRegistry
	urlValidator        URLValidator
	signer              PayloadSigner
	keyring             Keyring
	fieldMapper         FieldMapper
	templateRenderer    TemplateRenderer
	loopGuard           LoopGuard
	enricher            Enricher
	componentWiring     ComponentWiring
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithRouteStore(store RouteStore) Option {
	return func(b *serviceBuilder) {
		b.routeStore = store
	}
}

func WithDeliveryStore(store DeliveryStore) Option {
	return func(b *serviceBuilder) {
		b.deliveryStore = store
	}
}

func WithAgentWebhookStore(store AgentWebhookStore) Option {
	return func(b *serviceBuilder) {
		b.agentWebhookStore = store
	}
}

func WithAgentWebhookDeliveryStore(store AgentWebhookDeliveryStore) Option {
	return func(b *serviceBuilder) {
		b.agentDeliveryStore = store
	}
}

func WithEncryptedValueSource(source EncryptedValueSource) Option {
	return func(b *serviceBuilder) {
		b.encryptedSource = source
	}
}

func WithDestinationRegistry(registry DestinationRegistry) Option {
	return func(b *serviceBuilder) {
		b.destinationRegistry = registry
	}
}

func WithURLValidator(validator URLValidator) Option {
	return func(b *serviceBuilder) {
		b.urlValidator = validator
	}
}

// WithPayloadSigner overrides the signature scheme the component wiring
// hands to the webhook destination.
func WithPayloadSigner(signer PayloadSigner) Option {
	return func(b *serviceBuilder) {
		b.signer = signer
	}
}

func WithKeyring(keyring Keyring) Option {
	return func(b *serviceBuilder) {
		b.keyring = keyring
	}
}

func WithFieldMapper(mapper FieldMapper) Option {
	return func(b *serviceBuilder) {
		b.fieldMapper = mapper
	}
}

func WithTemplateRenderer(renderer TemplateRenderer) Option {
	return func(b *serviceBuilder) {
		b.templateRenderer = renderer
	}
}

func WithLoopGuard(guard LoopGuard) Option {
	return func(b *serviceBuilder) {
		b.loopGuard = guard
	}
}

func WithEnricher(enricher Enricher) Option {
	return func(b *serviceBuilder) {
		b.enricher = enricher
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("dispatch", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return dispatchErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || cfg.WebhookTimeout > 0 {
		layer["webhook_timeout"] = cfg.WebhookTimeout
	}
	if includeZero || cfg.MaxResponseBody > 0 {
		layer["max_response_body"] = cfg.MaxResponseBody
	}
	if includeZero || cfg.SweepInterval > 0 {
		layer["sweep_interval"] = cfg.SweepInterval
	}
	if includeZero || cfg.SweepBatchSize > 0 {
		layer["sweep_batch_size"] = cfg.SweepBatchSize
	}
	if includeZero || cfg.AllowLocalDestinations {
		layer["allow_local_destinations"] = cfg.AllowLocalDestinations
	}
	if includeZero || cfg.CustomEndpoints.Allow || len(cfg.CustomEndpoints.Allowlist) > 0 {
		layer["custom_endpoints"] = map[string]any{
			"allow":     cfg.CustomEndpoints.Allow,
			"allowlist": append([]string(nil), cfg.CustomEndpoints.Allowlist...),
		}
	}
	if includeZero || cfg.LoopGuard.Threshold > 0 || cfg.LoopGuard.Window > 0 {
		layer["loop_guard"] = map[string]any{
			"threshold":   cfg.LoopGuard.Threshold,
			"window":      cfg.LoopGuard.Window,
			"max_entries": cfg.LoopGuard.MaxEntries,
		}
	}
	if includeZero || cfg.HealthCheckMaxFailures > 0 {
		layer["health_check_max_failures"] = cfg.HealthCheckMaxFailures
	}
	if includeZero || cfg.StorageKeyPrefix != "" {
		layer["storage_key_prefix"] = cfg.StorageKeyPrefix
	}
	if includeZero || cfg.SignatureHeader != "" {
		layer["signature_header"] = cfg.SignatureHeader
	}
	if includeZero || cfg.TimestampHeader != "" {
		layer["timestamp_header"] = cfg.TimestampHeader
	}
	return layer
}
