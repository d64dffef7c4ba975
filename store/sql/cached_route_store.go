package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/cavendo/go-dispatch/core"
)

const routeCacheKeyPrefix = "go-dispatch::routes::v1"

// CachedRouteStore layers a read cache over the route store. Dispatch is
// read-heavy on the candidate lookup, every event hits it, while route
// mutations are rare. Mutations write through and invalidate, candidate and
// single-route reads come out of the cache.
type CachedRouteStore struct {
	base  core.RouteStore
	cache repositorycache.CacheService
}

func NewCachedRouteStore(base core.RouteStore, cacheService repositorycache.CacheService) (*CachedRouteStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base route store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: route cache service is required")
	}
	return &CachedRouteStore{base: base, cache: cacheService}, nil
}

// RouteCacheKey is the deterministic key for one route:
// go-dispatch::routes::v1::route::<id> with the segment URL-path escaped.
func RouteCacheKey(id string) string {
	return strings.Join([]string{routeCacheKeyPrefix, "route", url.PathEscape(strings.TrimSpace(id))}, "::")
}

// CandidateCacheKey is the deterministic key for a candidate lookup:
// go-dispatch::routes::v1::candidates::<event_type>. The key is scoped by
// event only, the project filter runs in memory, so one mutation
// invalidates one key no matter how many projects subscribe.
func CandidateCacheKey(eventType string) string {
	return strings.Join([]string{
		routeCacheKeyPrefix,
		"candidates",
		url.PathEscape(strings.TrimSpace(eventType)),
	}, "::")
}

func (s *CachedRouteStore) Create(ctx context.Context, route core.Route) (core.Route, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Route{}, fmt.Errorf("sqlstore: cached route store is not configured")
	}
	created, err := s.base.Create(ctx, route)
	if err != nil {
		return core.Route{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.Route{}, err
	}
	return created, nil
}

func (s *CachedRouteStore) Update(ctx context.Context, route core.Route) (core.Route, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Route{}, fmt.Errorf("sqlstore: cached route store is not configured")
	}
	previous, err := s.base.Get(ctx, route.ID)
	if err != nil {
		return core.Route{}, err
	}
	updated, err := s.base.Update(ctx, route)
	if err != nil {
		return core.Route{}, err
	}
	// A changed trigger event invalidates both the old and new candidate
	// sets.
	if err := s.invalidate(ctx, previous); err != nil {
		return core.Route{}, err
	}
	if err := s.invalidate(ctx, updated); err != nil {
		return core.Route{}, err
	}
	return updated, nil
}

func (s *CachedRouteStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached route store is not configured")
	}
	route, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, route)
}

func (s *CachedRouteStore) Get(ctx context.Context, id string) (core.Route, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Route{}, fmt.Errorf("sqlstore: cached route store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, RouteCacheKey(id), func(ctx context.Context) (core.Route, error) {
		return s.base.Get(ctx, id)
	})
}

// List always goes to the base store, listings are admin traffic and the
// filter space is too wide to key usefully.
func (s *CachedRouteStore) List(ctx context.Context, filter core.RouteFilter) ([]core.Route, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached route store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedRouteStore) FindCandidates(ctx context.Context, eventType string, projectID string) ([]core.Route, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached route store is not configured")
	}
	all, err := repositorycache.GetOrFetch(ctx, s.cache, CandidateCacheKey(eventType), func(ctx context.Context) ([]core.Route, error) {
		return s.base.List(ctx, core.RouteFilter{TriggerEvent: eventType, EnabledOnly: true})
	})
	if err != nil {
		return nil, err
	}
	candidates := make([]core.Route, 0, len(all))
	for _, route := range all {
		if route.Scope == core.RouteScopeGlobal {
			candidates = append(candidates, route)
			continue
		}
		if projectID != "" && route.ProjectID == projectID {
			candidates = append(candidates, route)
		}
	}
	return candidates, nil
}

func (s *CachedRouteStore) invalidate(ctx context.Context, route core.Route) error {
	if err := s.cache.Delete(ctx, RouteCacheKey(route.ID)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, CandidateCacheKey(route.TriggerEvent))
}

var _ core.RouteStore = (*CachedRouteStore)(nil)
