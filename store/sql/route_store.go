package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/cavendo/go-dispatch/core"
)

type RouteStore struct {
	db   *bun.DB
	repo repository.Repository[*routeRecord]
	now  func() time.Time
}

func NewRouteStore(db *bun.DB) (*RouteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*routeRecord](db, routeHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid route repository wiring: %w", err)
		}
	}
	return &RouteStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RouteStore) Create(ctx context.Context, route core.Route) (core.Route, error) {
	if s == nil || s.repo == nil {
		return core.Route{}, fmt.Errorf("sqlstore: route store is not configured")
	}
	now := s.now()
	route.CreatedAt = now
	route.UpdatedAt = now
	record := routeToRecord(route)
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Route{}, err
	}
	return recordToRoute(created), nil
}

func (s *RouteStore) Update(ctx context.Context, route core.Route) (core.Route, error) {
	if s == nil || s.db == nil {
		return core.Route{}, fmt.Errorf("sqlstore: route store is not configured")
	}
	if strings.TrimSpace(route.ID) == "" {
		return core.Route{}, fmt.Errorf("sqlstore: route id is required")
	}
	route.UpdatedAt = s.now()
	record := routeToRecord(route)
	result, err := s.db.NewUpdate().
		Model(record).
		WherePK().
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return core.Route{}, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return core.Route{}, fmt.Errorf("sqlstore: route %s not found", route.ID)
	}
	return s.Get(ctx, route.ID)
}

func (s *RouteStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: route store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: route id is required")
	}
	result, err := s.db.NewDelete().
		Model((*routeRecord)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("sqlstore: route %s not found", id)
	}
	return nil
}

func (s *RouteStore) Get(ctx context.Context, id string) (core.Route, error) {
	if s == nil || s.db == nil {
		return core.Route{}, fmt.Errorf("sqlstore: route store is not configured")
	}
	record := &routeRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Route{}, fmt.Errorf("sqlstore: route %s not found", id)
		}
		return core.Route{}, err
	}
	return recordToRoute(record), nil
}

func (s *RouteStore) List(ctx context.Context, filter core.RouteFilter) ([]core.Route, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: route store is not configured")
	}
	var records []routeRecord
	query := s.db.NewSelect().Model(&records)
	if filter.ProjectID != "" {
		query = query.Where("?TableAlias.project_id = ?", filter.ProjectID)
	}
	if filter.Scope != "" {
		query = query.Where("?TableAlias.scope = ?", string(filter.Scope))
	}
	if filter.TriggerEvent != "" {
		query = query.Where("?TableAlias.trigger_event = ?", filter.TriggerEvent)
	}
	if filter.EnabledOnly {
		query = query.Where("?TableAlias.enabled = ?", true)
	}
	query = query.Order("created_at ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	routes := make([]core.Route, 0, len(records))
	for i := range records {
		routes = append(routes, recordToRoute(&records[i]))
	}
	return routes, nil
}

// FindCandidates returns enabled routes subscribed to the event type. With
// a project ID the result covers that project plus global routes, without
// one it covers global routes only.
func (s *RouteStore) FindCandidates(ctx context.Context, eventType string, projectID string) ([]core.Route, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: route store is not configured")
	}
	var records []routeRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.trigger_event = ?", eventType).
		Where("?TableAlias.enabled = ?", true)
	if strings.TrimSpace(projectID) == "" {
		query = query.Where("?TableAlias.scope = ?", string(core.RouteScopeGlobal))
	} else {
		query = query.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.scope = ?", string(core.RouteScopeGlobal)).
				WhereOr("?TableAlias.project_id = ?", projectID)
		})
	}
	if err := query.Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	routes := make([]core.Route, 0, len(records))
	for i := range records {
		routes = append(routes, recordToRoute(&records[i]))
	}
	return routes, nil
}

var _ core.RouteStore = (*RouteStore)(nil)
