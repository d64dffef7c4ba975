package core

import (
	"context"
	"time"
)

// RunSweepLoop runs SweepDueRetries every SweepInterval until the context is
// cancelled. Pass errors are logged and the loop keeps ticking.
func (s *Service) RunSweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepDueRetries(ctx); err != nil {
				s.logError(ctx, "retry sweep pass failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}

// SweepDueRetries claims delivery records whose retry time has passed and
// re-runs their attempts. The claim clears the retry timestamp, so a record
// picked up here is invisible to any concurrent sweep until the attempt
// outcome writes a new one. Per-record failures are logged and counted, they
// never abort the pass.
func (s *Service) SweepDueRetries(ctx context.Context) (SweepStats, error) {
	startedAt := s.clock()
	fields := map[string]any{}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "sweep_due_retries", err, fields) }()

	if s.deliveryStore == nil {
		err = errNotConfigured("delivery store")
		return SweepStats{}, s.mapError(err)
	}

	stats := SweepStats{}
	batchSize := s.config.SweepBatchSize
	now := s.clock()

	due, claimErr := s.deliveryStore.ClaimDueRetries(ctx, batchSize, now)
	if claimErr != nil {
		err = claimErr
		return stats, s.mapError(claimErr)
	}
	stats.Claimed = len(due)

	for _, attempt := range due {
		outcome := s.resumeAttempt(ctx, attempt)
		switch outcome {
		case DeliveryStatusDelivered:
			stats.Delivered++
		case DeliveryStatusRetrying:
			stats.Retried++
		default:
			stats.Failed++
		}
	}

	if s.agentDeliveryStore != nil {
		agentDue, agentErr := s.agentDeliveryStore.ClaimDueRetries(ctx, batchSize, now)
		if agentErr != nil {
			err = agentErr
			return stats, s.mapError(agentErr)
		}
		stats.AgentClaimed = len(agentDue)
		for _, delivery := range agentDue {
			switch s.resumeAgentAttempt(ctx, delivery) {
			case DeliveryStatusDelivered:
				stats.AgentDelivered++
			case DeliveryStatusRetrying:
				stats.AgentRetried++
			default:
				stats.AgentFailed++
			}
		}
	}

	fields["claimed"] = stats.Claimed
	fields["delivered"] = stats.Delivered
	fields["retried"] = stats.Retried
	fields["failed"] = stats.Failed
	return stats, nil
}

// resumeAttempt reloads the route for a claimed record and runs the next
// delivery attempt. It reports the status the record ended the attempt in.
func (s *Service) resumeAttempt(ctx context.Context, attempt DeliveryAttempt) DeliveryStatus {
	route, err := s.routeStore.Get(ctx, attempt.RouteID)
	if err != nil {
		s.logError(ctx, "retry sweep could not load route", map[string]any{
			"delivery_id": attempt.ID,
			"route_id":    attempt.RouteID,
			"error":       err.Error(),
		})
		if markErr := s.deliveryStore.MarkFailed(ctx, attempt.ID, attempt.AttemptNumber+1, 0, err.Error()); markErr != nil {
			s.logError(ctx, "retry sweep could not fail orphaned record", map[string]any{
				"delivery_id": attempt.ID,
				"error":       markErr.Error(),
			})
		}
		return DeliveryStatusFailed
	}

	if !route.Enabled {
		if markErr := s.deliveryStore.MarkFailed(ctx, attempt.ID, attempt.AttemptNumber+1, 0, "route disabled"); markErr != nil {
			s.logError(ctx, "retry sweep could not fail record for disabled route", map[string]any{
				"delivery_id": attempt.ID,
				"error":       markErr.Error(),
			})
		}
		return DeliveryStatusFailed
	}

	payload := attempt.Payload
	if s.enricher != nil {
		enriched, enrichErr := s.enricher.Enrich(ctx, attempt)
		if enrichErr != nil {
			s.logWarn(ctx, "payload enrichment failed, retrying with stored payload", map[string]any{
				"delivery_id": attempt.ID,
				"error":       enrichErr.Error(),
			})
		} else if enriched != nil {
			payload = enriched
		}
	}

	if err := s.runAttempt(ctx, route, attempt, payload); err != nil {
		s.logWarn(ctx, "retry attempt did not deliver", map[string]any{
			"delivery_id": attempt.ID,
			"route_id":    route.ID,
			"attempt":     attempt.AttemptNumber + 1,
			"error":       err.Error(),
		})
		refreshed, getErr := s.deliveryStore.Get(ctx, attempt.ID)
		if getErr != nil {
			return DeliveryStatusFailed
		}
		return refreshed.Status
	}
	return DeliveryStatusDelivered
}
