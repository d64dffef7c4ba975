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

type AgentWebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*agentWebhookDeliveryRecord]
	now  func() time.Time
}

func NewAgentWebhookDeliveryStore(db *bun.DB) (*AgentWebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*agentWebhookDeliveryRecord](db, agentWebhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid agent delivery repository wiring: %w", err)
		}
	}
	return &AgentWebhookDeliveryStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AgentWebhookDeliveryStore) Create(ctx context.Context, delivery core.AgentWebhookDelivery) (core.AgentWebhookDelivery, error) {
	if s == nil || s.repo == nil {
		return core.AgentWebhookDelivery{}, fmt.Errorf("sqlstore: agent delivery store is not configured")
	}
	now := s.now()
	delivery.CreatedAt = now
	delivery.UpdatedAt = now
	if delivery.Status == "" {
		delivery.Status = core.DeliveryStatusPending
	}
	record := agentDeliveryToRecord(delivery)
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.AgentWebhookDelivery{}, err
	}
	return recordToAgentDelivery(created), nil
}

func (s *AgentWebhookDeliveryStore) Get(ctx context.Context, id string) (core.AgentWebhookDelivery, error) {
	if s == nil || s.db == nil {
		return core.AgentWebhookDelivery{}, fmt.Errorf("sqlstore: agent delivery store is not configured")
	}
	record := &agentWebhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.AgentWebhookDelivery{}, fmt.Errorf("sqlstore: agent delivery %s not found", id)
		}
		return core.AgentWebhookDelivery{}, err
	}
	return recordToAgentDelivery(record), nil
}

func (s *AgentWebhookDeliveryStore) ListByWebhook(ctx context.Context, webhookID string, limit int) ([]core.AgentWebhookDelivery, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: agent delivery store is not configured")
	}
	var records []agentWebhookDeliveryRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.webhook_id = ?", strings.TrimSpace(webhookID)).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	deliveries := make([]core.AgentWebhookDelivery, 0, len(records))
	for i := range records {
		deliveries = append(deliveries, recordToAgentDelivery(&records[i]))
	}
	return deliveries, nil
}

func (s *AgentWebhookDeliveryStore) MarkDelivered(ctx context.Context, id string, attemptNumber int, responseCode int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: agent delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*agentWebhookDeliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusDelivered)).
		Set("attempt_number = ?", attemptNumber).
		Set("response_code = ?", responseCode).
		Set("last_error = ?", "").
		Set("next_retry_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *AgentWebhookDeliveryStore) MarkRetrying(ctx context.Context, id string, attemptNumber int, lastError string, nextRetryAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: agent delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*agentWebhookDeliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusRetrying)).
		Set("attempt_number = ?", attemptNumber).
		Set("last_error = ?", strings.TrimSpace(lastError)).
		Set("next_retry_at = ?", nextRetryAt.UTC()).
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *AgentWebhookDeliveryStore) MarkFailed(ctx context.Context, id string, attemptNumber int, lastError string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: agent delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*agentWebhookDeliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusFailed)).
		Set("attempt_number = ?", attemptNumber).
		Set("last_error = ?", strings.TrimSpace(lastError)).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *AgentWebhookDeliveryStore) ClaimDueRetries(ctx context.Context, limit int, now time.Time) ([]core.AgentWebhookDelivery, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: agent delivery store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	var records []agentWebhookDeliveryRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM agent_webhook_deliveries
	WHERE status = ?
	  AND next_retry_at IS NOT NULL
	  AND next_retry_at <= ?
	ORDER BY next_retry_at ASC
	LIMIT ?
)
UPDATE agent_webhook_deliveries
SET next_retry_at = NULL, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	webhook_id,
	agent_id,
	event_type,
	status,
	attempt_number,
	response_code,
	last_error,
	next_retry_at,
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
	deliveries := make([]core.AgentWebhookDelivery, 0, len(records))
	for i := range records {
		deliveries = append(deliveries, recordToAgentDelivery(&records[i]))
	}
	return deliveries, nil
}

var _ core.AgentWebhookDeliveryStore = (*AgentWebhookDeliveryStore)(nil)
