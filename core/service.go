package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the dispatch engine. Every operation is context-aware, logs
// through the configured logger and reports counters per operation.
type Service struct {
	config              Config
	logger              Logger
	loggerProvider      LoggerProvider
	metricsRecorder     MetricsRecorder
	errorFactory        ErrorFactory
	errorMapper         ErrorMapper
	persistenceClient   any
	repositoryFactory   any
	configProvider      ConfigProvider
	optionsResolver     OptionsResolver
	routeStore          RouteStore
	deliveryStore       DeliveryStore
	agentWebhookStore   AgentWebhookStore
	agentDeliveryStore  AgentWebhookDeliveryStore
	encryptedSource     EncryptedValueSource
	destinationRegistry DestinationRegistry
	urlValidator        URLValidator
	keyring             Keyring
	fieldMapper         FieldMapper
	templateRenderer    TemplateRenderer
	loopGuard           LoopGuard
	enricher            Enricher
	clock               func() time.Time
}

// ServiceDependencies exposes the wired collaborators for composition by
// downstream packages.
type ServiceDependencies struct {
	Logger              Logger
	LoggerProvider      LoggerProvider
	MetricsRecorder     MetricsRecorder
	ErrorFactory        ErrorFactory
	ErrorMapper         ErrorMapper
	PersistenceClient   any
	RepositoryFactory   any
	ConfigProvider      ConfigProvider
	OptionsResolver     OptionsResolver
	RouteStore          RouteStore
	DeliveryStore       DeliveryStore
	AgentWebhookStore   AgentWebhookStore
	AgentDeliveryStore  AgentWebhookDeliveryStore
	EncryptedSource     EncryptedValueSource
	DestinationRegistry DestinationRegistry
	URLValidator        URLValidator
	Keyring             Keyring
	FieldMapper         FieldMapper
	TemplateRenderer    TemplateRenderer
	LoopGuard           LoopGuard
	Enricher            Enricher
}

// RepositoryStoreFactory builds the persistence stores from a database
// client. The sql store factory satisfies this.
type RepositoryStoreFactory interface {
	BuildStores(client any) (StoreProvider, error)
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("dispatch", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("dispatch"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.componentWiring != nil {
		supplied := Components{
			DestinationRegistry: builder.destinationRegistry,
			URLValidator:        builder.urlValidator,
			Signer:              builder.signer,
			FieldMapper:         builder.fieldMapper,
			TemplateRenderer:    builder.templateRenderer,
			LoopGuard:           builder.loopGuard,
		}
		wired, wireErr := builder.componentWiring(finalConfig, supplied)
		if wireErr != nil {
			return nil, mapBuildError(builder.errorMapper, wireErr)
		}
		if builder.destinationRegistry == nil {
			builder.destinationRegistry = wired.DestinationRegistry
		}
		if builder.urlValidator == nil {
			builder.urlValidator = wired.URLValidator
		}
		if builder.fieldMapper == nil {
			builder.fieldMapper = wired.FieldMapper
		}
		if builder.templateRenderer == nil {
			builder.templateRenderer = wired.TemplateRenderer
		}
		if builder.loopGuard == nil {
			builder.loopGuard = wired.LoopGuard
		}
	}

	if builder.routeStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				builder.routeStore = storeProvider.RouteStore()
				if builder.deliveryStore == nil {
					builder.deliveryStore = storeProvider.DeliveryStore()
				}
				if builder.agentWebhookStore == nil {
					builder.agentWebhookStore = storeProvider.AgentWebhookStore()
				}
				if builder.agentDeliveryStore == nil {
					builder.agentDeliveryStore = storeProvider.AgentWebhookDeliveryStore()
				}
				if builder.encryptedSource == nil {
					builder.encryptedSource = storeProvider.EncryptedValueSource()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.routeStore = storeProvider.RouteStore()
			if builder.deliveryStore == nil {
				builder.deliveryStore = storeProvider.DeliveryStore()
			}
			if builder.agentWebhookStore == nil {
				builder.agentWebhookStore = storeProvider.AgentWebhookStore()
			}
			if builder.agentDeliveryStore == nil {
				builder.agentDeliveryStore = storeProvider.AgentWebhookDeliveryStore()
			}
			if builder.encryptedSource == nil {
				builder.encryptedSource = storeProvider.EncryptedValueSource()
			}
		}
	}

	return &Service{
		config:              finalConfig,
		logger:              logger,
		loggerProvider:      provider,
		metricsRecorder:     builder.metricsRecorder,
		errorFactory:        builder.errorFactory,
		errorMapper:         builder.errorMapper,
		persistenceClient:   builder.persistenceClient,
		repositoryFactory:   builder.repositoryFactory,
		configProvider:      builder.configProvider,
		optionsResolver:     builder.optionsResolver,
		routeStore:          builder.routeStore,
		deliveryStore:       builder.deliveryStore,
		agentWebhookStore:   builder.agentWebhookStore,
		agentDeliveryStore:  builder.agentDeliveryStore,
		encryptedSource:     builder.encryptedSource,
		destinationRegistry: builder.destinationRegistry,
		urlValidator:        builder.urlValidator,
		keyring:             builder.keyring,
		fieldMapper:         builder.fieldMapper,
		templateRenderer:    builder.templateRenderer,
		loopGuard:           builder.loopGuard,
		enricher:            builder.enricher,
		clock:               func() time.Time { return time.Now().UTC() },
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:              s.logger,
		LoggerProvider:      s.loggerProvider,
		MetricsRecorder:     s.metricsRecorder,
		ErrorFactory:        s.errorFactory,
		ErrorMapper:         s.errorMapper,
		PersistenceClient:   s.persistenceClient,
		RepositoryFactory:   s.repositoryFactory,
		ConfigProvider:      s.configProvider,
		OptionsResolver:     s.optionsResolver,
		RouteStore:          s.routeStore,
		DeliveryStore:       s.deliveryStore,
		AgentWebhookStore:   s.agentWebhookStore,
		AgentDeliveryStore:  s.agentDeliveryStore,
		EncryptedSource:     s.encryptedSource,
		DestinationRegistry: s.destinationRegistry,
		URLValidator:        s.urlValidator,
		Keyring:             s.keyring,
		FieldMapper:         s.fieldMapper,
		TemplateRenderer:    s.templateRenderer,
		LoopGuard:           s.loopGuard,
		Enricher:            s.enricher,
	}
}
