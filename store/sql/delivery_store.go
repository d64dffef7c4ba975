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

type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryAttemptRecord]
	now  func() time.Time
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryAttemptRecord](db, deliveryAttemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *DeliveryStore) Create(ctx context.Context, attempt core.DeliveryAttempt) (core.DeliveryAttempt, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryAttempt{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	now := s.now()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	if attempt.Status == "" {
		attempt.Status = core.DeliveryStatusPending
	}
	record := attemptToRecord(attempt)
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.DeliveryAttempt{}, err
	}
	return recordToAttempt(created), nil
}

func (s *DeliveryStore) Get(ctx context.Context, id string) (core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return core.DeliveryAttempt{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := &deliveryAttemptRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.DeliveryAttempt{}, fmt.Errorf("sqlstore: delivery %s not found", id)
		}
		return core.DeliveryAttempt{}, err
	}
	return recordToAttempt(record), nil
}

func (s *DeliveryStore) List(ctx context.Context, filter core.DeliveryFilter) ([]core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	var records []deliveryAttemptRecord
	query := s.db.NewSelect().Model(&records)
	if filter.RouteID != "" {
		query = query.Where("?TableAlias.route_id = ?", filter.RouteID)
	}
	if filter.ProjectID != "" {
		query = query.Where("?TableAlias.project_id = ?", filter.ProjectID)
	}
	if filter.Status != "" {
		query = query.Where("?TableAlias.status = ?", string(filter.Status))
	}
	if filter.EventType != "" {
		query = query.Where("?TableAlias.event_type = ?", filter.EventType)
	}
	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	attempts := make([]core.DeliveryAttempt, 0, len(records))
	for i := range records {
		attempts = append(attempts, recordToAttempt(&records[i]))
	}
	return attempts, nil
}

func (s *DeliveryStore) MarkDelivered(ctx context.Context, id string, attemptNumber int, responseCode int, responseBody string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*deliveryAttemptRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusDelivered)).
		Set("attempt_number = ?", attemptNumber).
		Set("response_code = ?", responseCode).
		Set("response_body = ?", responseBody).
		Set("last_error = ?", "").
		Set("next_retry_at = NULL").
		Set("delivered_at = ?", at.UTC()).
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *DeliveryStore) MarkRetrying(ctx context.Context, id string, attemptNumber int, responseCode int, lastError string, nextRetryAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*deliveryAttemptRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusRetrying)).
		Set("attempt_number = ?", attemptNumber).
		Set("response_code = ?", responseCode).
		Set("last_error = ?", strings.TrimSpace(lastError)).
		Set("next_retry_at = ?", nextRetryAt.UTC()).
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *DeliveryStore) MarkFailed(ctx context.Context, id string, attemptNumber int, responseCode int, lastError string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*deliveryAttemptRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusFailed)).
		Set("attempt_number = ?", attemptNumber).
		Set("response_code = ?", responseCode).
		Set("last_error = ?", strings.TrimSpace(lastError)).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

// ClaimDueRetries selects due retrying records and clears next_retry_at in
// the same statement. The cleared timestamp is the only double-pickup
// guard: a concurrent sweep filtering on next_retry_at cannot see a record
// claimed here.
func (s *DeliveryStore) ClaimDueRetries(ctx context.Context, limit int, now time.Time) ([]core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	var records []deliveryAttemptRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM delivery_attempts
	WHERE status = ?
	  AND next_retry_at IS NOT NULL
	  AND next_retry_at <= ?
	ORDER BY next_retry_at ASC
	LIMIT ?
)
UPDATE delivery_attempts
SET next_retry_at = NULL, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	route_id,
	project_id,
	event_type,
	status,
	attempt_number,
	payload,
	response_code,
	response_body,
	last_error,
	next_retry_at,
	delivered_at,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.DeliveryStatusRetrying),
			now.UTC(),
			limit,
			now.UTC(),
			string(core.DeliveryStatusRetrying),
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}
	attempts := make([]core.DeliveryAttempt, 0, len(records))
	for i := range records {
		attempts = append(attempts, recordToAttempt(&records[i]))
	}
	return attempts, nil
}

var _ core.DeliveryStore = (*DeliveryStore)(nil)
