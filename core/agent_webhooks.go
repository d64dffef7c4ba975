package core

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// CreateAgentWebhook registers an inline webhook target for an agent. The
// URL is validated against the outbound guard before anything is stored and
// the signing secret is encrypted under the current keyring version.
func (s *Service) CreateAgentWebhook(ctx context.Context, req CreateAgentWebhookRequest) (AgentWebhook, error) {
	startedAt := s.clock()
	fields := map[string]any{"agent_id": req.AgentID}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "create_agent_webhook", err, fields) }()

	if s.agentWebhookStore == nil {
		err = errNotConfigured("agent webhook store")
		return AgentWebhook{}, s.mapError(err)
	}
	if strings.TrimSpace(req.AgentID) == "" {
		err = goerrors.NewValidation("agent id is required",
			goerrors.FieldError{Field: "agent_id", Message: "must not be empty"})
		return AgentWebhook{}, s.mapError(err)
	}
	if strings.TrimSpace(req.URL) == "" {
		err = goerrors.NewValidation("webhook url is required",
			goerrors.FieldError{Field: "url", Message: "must not be empty"})
		return AgentWebhook{}, s.mapError(err)
	}
	if validateErr := s.validateOutboundURL(ctx, req.URL); validateErr != nil {
		err = validateErr
		return AgentWebhook{}, s.mapError(validateErr)
	}

	webhook := AgentWebhook{
		ID:      uuid.NewString(),
		AgentID: req.AgentID,
		URL:     strings.TrimSpace(req.URL),
		Events:  append([]string(nil), req.Events...),
		Enabled: true,
	}
	if req.Enabled != nil {
		webhook.Enabled = *req.Enabled
	}
	if secret := strings.TrimSpace(req.Secret); secret != "" {
		encrypted, encErr := s.encryptSecret(secret)
		if encErr != nil {
			err = encErr
			return AgentWebhook{}, s.mapError(encErr)
		}
		webhook.Secret = encrypted.Ciphertext + ":" + encrypted.IV
		webhook.SecretVersion = encrypted.KeyVersion
	}

	created, createErr := s.agentWebhookStore.Create(ctx, webhook)
	if createErr != nil {
		err = createErr
		return AgentWebhook{}, s.mapError(createErr)
	}
	fields["webhook_id"] = created.ID
	return created, nil
}

// UpdateAgentWebhook patches an inline webhook. Nil request fields leave the
// stored value untouched.
func (s *Service) UpdateAgentWebhook(ctx context.Context, req UpdateAgentWebhookRequest) (AgentWebhook, error) {
	startedAt := s.clock()
	fields := map[string]any{"webhook_id": req.ID}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "update_agent_webhook", err, fields) }()

	if s.agentWebhookStore == nil {
		err = errNotConfigured("agent webhook store")
		return AgentWebhook{}, s.mapError(err)
	}
	webhook, getErr := s.agentWebhookStore.Get(ctx, req.ID)
	if getErr != nil {
		err = getErr
		return AgentWebhook{}, s.mapError(getErr)
	}

	if req.URL != nil {
		if validateErr := s.validateOutboundURL(ctx, *req.URL); validateErr != nil {
			err = validateErr
			return AgentWebhook{}, s.mapError(validateErr)
		}
		webhook.URL = strings.TrimSpace(*req.URL)
	}
	if req.Events != nil {
		webhook.Events = append([]string(nil), req.Events...)
	}
	if req.Secret != nil {
		if secret := strings.TrimSpace(*req.Secret); secret == "" {
			webhook.Secret = ""
			webhook.SecretVersion = 0
		} else {
			encrypted, encErr := s.encryptSecret(secret)
			if encErr != nil {
				err = encErr
				return AgentWebhook{}, s.mapError(encErr)
			}
			webhook.Secret = encrypted.Ciphertext + ":" + encrypted.IV
			webhook.SecretVersion = encrypted.KeyVersion
		}
	}
	if req.Enabled != nil {
		webhook.Enabled = *req.Enabled
	}

	updated, updateErr := s.agentWebhookStore.Update(ctx, webhook)
	if updateErr != nil {
		err = updateErr
		return AgentWebhook{}, s.mapError(updateErr)
	}
	return updated, nil
}

func (s *Service) DeleteAgentWebhook(ctx context.Context, id string) error {
	startedAt := s.clock()
	fields := map[string]any{"webhook_id": id}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "delete_agent_webhook", err, fields) }()

	if s.agentWebhookStore == nil {
		err = errNotConfigured("agent webhook store")
		return s.mapError(err)
	}
	if deleteErr := s.agentWebhookStore.Delete(ctx, id); deleteErr != nil {
		err = deleteErr
		return s.mapError(deleteErr)
	}
	return nil
}

func (s *Service) ListAgentWebhooks(ctx context.Context, agentID string) ([]AgentWebhook, error) {
	startedAt := s.clock()
	fields := map[string]any{"agent_id": agentID}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "list_agent_webhooks", err, fields) }()

	if s.agentWebhookStore == nil {
		err = errNotConfigured("agent webhook store")
		return nil, s.mapError(err)
	}
	webhooks, listErr := s.agentWebhookStore.ListByAgent(ctx, agentID)
	if listErr != nil {
		err = listErr
		return nil, s.mapError(listErr)
	}
	return webhooks, nil
}

// DispatchAgentEvent delivers an event to every enabled inline webhook the
// agent has subscribed to it. The loop guard runs before any delivery is
// created, so a feedback storm is suppressed in memory without touching the
// store.
func (s *Service) DispatchAgentEvent(ctx context.Context, event Event) (DispatchReceipt, error) {
	startedAt := s.clock()
	fields := map[string]any{
		"agent_id":   event.AgentID,
		"event_type": event.Type,
	}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "dispatch_agent_event", err, fields) }()

	if s.agentWebhookStore == nil || s.agentDeliveryStore == nil {
		err = errNotConfigured("agent webhook stores")
		return DispatchReceipt{}, s.mapError(err)
	}
	if strings.TrimSpace(event.AgentID) == "" {
		err = goerrors.NewValidation("agent id is required",
			goerrors.FieldError{Field: "agent_id", Message: "must not be empty"})
		return DispatchReceipt{}, s.mapError(err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock()
	}

	if s.loopGuard != nil && !s.loopGuard.Allow(event.AgentID, event.Type, s.clock()) {
		s.logWarn(ctx, "agent event suppressed by loop guard", map[string]any{
			"agent_id":   event.AgentID,
			"event_type": event.Type,
		})
		return DispatchReceipt{Suppressed: 1}, nil
	}

	webhooks, listErr := s.agentWebhookStore.ListByAgent(ctx, event.AgentID)
	if listErr != nil {
		err = listErr
		return DispatchReceipt{}, s.mapError(listErr)
	}

	receipt := DispatchReceipt{}
	for _, webhook := range webhooks {
		if !webhook.Enabled || !webhook.WantsEvent(event.Type) {
			continue
		}
		receipt.Matched++
		delivery := AgentWebhookDelivery{
			ID:        uuid.NewString(),
			WebhookID: webhook.ID,
			AgentID:   event.AgentID,
			EventType: event.Type,
			Status:    DeliveryStatusPending,
		}
		created, createErr := s.agentDeliveryStore.Create(ctx, delivery)
		if createErr != nil {
			s.logError(ctx, "agent webhook delivery record create failed", map[string]any{
				"webhook_id": webhook.ID,
				"error":      createErr.Error(),
			})
			continue
		}
		receipt.Dispatched = append(receipt.Dispatched, created.ID)
		if deliverErr := s.runAgentAttempt(ctx, webhook, created, event.Payload); deliverErr != nil {
			s.logWarn(ctx, "agent webhook delivery did not succeed", map[string]any{
				"webhook_id":  webhook.ID,
				"delivery_id": created.ID,
				"error":       deliverErr.Error(),
			})
		}
	}
	return receipt, nil
}

// runAgentAttempt performs one inline webhook delivery through the webhook
// destination and records the outcome.
func (s *Service) runAgentAttempt(ctx context.Context, webhook AgentWebhook, delivery AgentWebhookDelivery, payload map[string]any) error {
	attemptNumber := delivery.AttemptNumber + 1

	destination, err := s.resolveDestination(DestinationWebhook)
	if err != nil {
		markErr := s.agentDeliveryStore.MarkFailed(ctx, delivery.ID, attemptNumber, err.Error())
		return joinErrors(err, markErr)
	}

	config := map[string]any{"url": webhook.URL}
	if webhook.Secret != "" {
		if secret := s.decryptSecret(webhook.Secret, webhook.SecretVersion); secret != "" {
			config["secret"] = secret
		} else {
			s.logWarn(ctx, "agent webhook secret could not be decrypted, delivering unsigned", map[string]any{
				"webhook_id":  webhook.ID,
				"key_version": webhook.SecretVersion,
			})
		}
	}

	body := copyAnyMap(payload)
	body["event"] = delivery.EventType
	body["deliveryId"] = delivery.ID

	deliverCtx, cancel := context.WithTimeout(ctx, s.config.WebhookTimeout)
	defer cancel()

	result, deliverErr := destination.Deliver(deliverCtx, config, body)
	now := s.clock()

	if deliverErr == nil {
		responseCode := 0
		if result != nil {
			responseCode = result.ResponseCode
		}
		return s.agentDeliveryStore.MarkDelivered(ctx, delivery.ID, attemptNumber, responseCode)
	}

	policy := DefaultRetryPolicy()
	if IsSecurityRejection(deliverErr) || !IsRetryable(deliverErr) || attemptNumber > policy.MaxRetries {
		markErr := s.agentDeliveryStore.MarkFailed(ctx, delivery.ID, attemptNumber, deliverErr.Error())
		return joinErrors(deliverErr, markErr)
	}
	nextRetryAt := now.Add(policy.Delay(attemptNumber))
	markErr := s.agentDeliveryStore.MarkRetrying(ctx, delivery.ID, attemptNumber, deliverErr.Error(), nextRetryAt)
	return joinErrors(deliverErr, markErr)
}

// resumeAgentAttempt re-runs a claimed inline webhook delivery. The stored
// record carries no payload, so retries send the envelope alone.
func (s *Service) resumeAgentAttempt(ctx context.Context, delivery AgentWebhookDelivery) DeliveryStatus {
	webhook, err := s.agentWebhookStore.Get(ctx, delivery.WebhookID)
	if err != nil || !webhook.Enabled {
		reason := "webhook disabled"
		if err != nil {
			reason = err.Error()
		}
		if markErr := s.agentDeliveryStore.MarkFailed(ctx, delivery.ID, delivery.AttemptNumber+1, reason); markErr != nil {
			s.logError(ctx, "retry sweep could not fail agent delivery", map[string]any{
				"delivery_id": delivery.ID,
				"error":       markErr.Error(),
			})
		}
		return DeliveryStatusFailed
	}

	if err := s.runAgentAttempt(ctx, webhook, delivery, map[string]any{}); err != nil {
		refreshed, getErr := s.agentDeliveryStore.Get(ctx, delivery.ID)
		if getErr != nil {
			return DeliveryStatusFailed
		}
		return refreshed.Status
	}
	return DeliveryStatusDelivered
}

func (s *Service) encryptSecret(secret string) (EncryptedValue, error) {
	if s.keyring == nil {
		return EncryptedValue{}, errNotConfigured("keyring")
	}
	return s.keyring.Encrypt(secret)
}

// decryptSecret unpacks the stored ciphertext:iv pair. Any failure yields an
// empty string, crypto errors never propagate out of a read path.
func (s *Service) decryptSecret(stored string, version int) string {
	if s.keyring == nil {
		return ""
	}
	parts := strings.SplitN(stored, ":", 2)
	value := EncryptedValue{Ciphertext: parts[0], KeyVersion: version}
	if len(parts) == 2 {
		value.IV = parts[1]
	}
	plaintext := s.keyring.Decrypt(value)
	if plaintext == nil {
		return ""
	}
	return string(plaintext)
}

func (s *Service) validateOutboundURL(ctx context.Context, rawURL string) error {
	if s.urlValidator == nil {
		return errNotConfigured("url validator")
	}
	return s.urlValidator.ValidateOutboundURL(ctx, rawURL)
}
