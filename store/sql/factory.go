package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/cavendo/go-dispatch/core"
)

type RepositoryFactory struct {
	db *bun.DB

	routeStore           *RouteStore
	deliveryStore        *DeliveryStore
	agentWebhookStore    *AgentWebhookStore
	agentDeliveryStore   *AgentWebhookDeliveryStore
	encryptedValueSource *EncryptedValueSource
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.routeStore != nil && f.deliveryStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) RouteStore() core.RouteStore {
	if f == nil || f.routeStore == nil {
		return nil
	}
	return f.routeStore
}

func (f *RepositoryFactory) DeliveryStore() core.DeliveryStore {
	if f == nil || f.deliveryStore == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) AgentWebhookStore() core.AgentWebhookStore {
	if f == nil || f.agentWebhookStore == nil {
		return nil
	}
	return f.agentWebhookStore
}

func (f *RepositoryFactory) AgentWebhookDeliveryStore() core.AgentWebhookDeliveryStore {
	if f == nil || f.agentDeliveryStore == nil {
		return nil
	}
	return f.agentDeliveryStore
}

func (f *RepositoryFactory) EncryptedValueSource() core.EncryptedValueSource {
	if f == nil || f.encryptedValueSource == nil {
		return nil
	}
	return f.encryptedValueSource
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	routeStore, err := NewRouteStore(f.db)
	if err != nil {
		return err
	}
	f.routeStore = routeStore

	deliveryStore, err := NewDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore

	agentWebhookStore, err := NewAgentWebhookStore(f.db)
	if err != nil {
		return err
	}
	f.agentWebhookStore = agentWebhookStore

	agentDeliveryStore, err := NewAgentWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.agentDeliveryStore = agentDeliveryStore

	encryptedValueSource, err := NewEncryptedValueSource(f.db)
	if err != nil {
		return err
	}
	f.encryptedValueSource = encryptedValueSource

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
var _ core.StoreProvider = (*RepositoryFactory)(nil)
