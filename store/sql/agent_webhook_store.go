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

type AgentWebhookStore struct {
	db   *bun.DB
	repo repository.Repository[*agentWebhookRecord]
	now  func() time.Time
}

func NewAgentWebhookStore(db *bun.DB) (*AgentWebhookStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*agentWebhookRecord](db, agentWebhookHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid agent webhook repository wiring: %w", err)
		}
	}
	return &AgentWebhookStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AgentWebhookStore) Create(ctx context.Context, webhook core.AgentWebhook) (core.AgentWebhook, error) {
	if s == nil || s.repo == nil {
		return core.AgentWebhook{}, fmt.Errorf("sqlstore: agent webhook store is not configured")
	}
	now := s.now()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now
	record := webhookToRecord(webhook)
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.AgentWebhook{}, fmt.Errorf("sqlstore: agent %s already has a webhook for %s", webhook.AgentID, webhook.URL)
		}
		return core.AgentWebhook{}, err
	}
	return recordToWebhook(created), nil
}

func (s *AgentWebhookStore) Update(ctx context.Context, webhook core.AgentWebhook) (core.AgentWebhook, error) {
	if s == nil || s.db == nil {
		return core.AgentWebhook{}, fmt.Errorf("sqlstore: agent webhook store is not configured")
	}
	if strings.TrimSpace(webhook.ID) == "" {
		return core.AgentWebhook{}, fmt.Errorf("sqlstore: webhook id is required")
	}
	webhook.UpdatedAt = s.now()
	record := webhookToRecord(webhook)
	result, err := s.db.NewUpdate().
		Model(record).
		WherePK().
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return core.AgentWebhook{}, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return core.AgentWebhook{}, fmt.Errorf("sqlstore: webhook %s not found", webhook.ID)
	}
	return s.Get(ctx, webhook.ID)
}

func (s *AgentWebhookStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: agent webhook store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: webhook id is required")
	}
	result, err := s.db.NewDelete().
		Model((*agentWebhookRecord)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("sqlstore: webhook %s not found", id)
	}
	return nil
}

func (s *AgentWebhookStore) Get(ctx context.Context, id string) (core.AgentWebhook, error) {
	if s == nil || s.db == nil {
		return core.AgentWebhook{}, fmt.Errorf("sqlstore: agent webhook store is not configured")
	}
	record := &agentWebhookRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.AgentWebhook{}, fmt.Errorf("sqlstore: webhook %s not found", id)
		}
		return core.AgentWebhook{}, err
	}
	return recordToWebhook(record), nil
}

func (s *AgentWebhookStore) ListByAgent(ctx context.Context, agentID string) ([]core.AgentWebhook, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: agent webhook store is not configured")
	}
	var records []agentWebhookRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.agent_id = ?", strings.TrimSpace(agentID)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	webhooks := make([]core.AgentWebhook, 0, len(records))
	for i := range records {
		webhooks = append(webhooks, recordToWebhook(&records[i]))
	}
	return webhooks, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

var _ core.AgentWebhookStore = (*AgentWebhookStore)(nil)
