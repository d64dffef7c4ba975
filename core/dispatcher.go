package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DispatchEvent matches the event against enabled routes and delivers to
// each match concurrently. Route failures are independent: one destination
// blowing up never stops the others, so the receipt reports per-route
// outcomes instead of a single error.
func (s *Service) DispatchEvent(ctx context.Context, event Event) (DispatchReceipt, error) {
	startedAt := s.clock()
	fields := map[string]any{
		"event_type": event.Type,
		"project_id": event.ProjectID,
	}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "dispatch_event", err, fields) }()

	if strings.TrimSpace(event.Type) == "" {
		err = goerrors.NewValidation("event type is required",
			goerrors.FieldError{Field: "type", Message: "must not be empty"})
		return DispatchReceipt{}, s.mapError(err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock()
	}

	routes, findErr := s.FindMatchingRoutes(ctx, event)
	if findErr != nil {
		err = findErr
		return DispatchReceipt{}, s.mapError(findErr)
	}

	receipt := DispatchReceipt{Matched: len(routes)}
	if len(routes) == 0 {
		return receipt, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, route := range routes {
		route := route
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logError(ctx, "route dispatch panicked", map[string]any{
						"route_id": route.ID,
						"panic":    fmt.Sprint(r),
					})
				}
			}()
			attemptID, dispatchErr := s.dispatchRoute(ctx, route, event)
			mu.Lock()
			defer mu.Unlock()
			if attemptID != "" {
				receipt.Dispatched = append(receipt.Dispatched, attemptID)
			}
			if dispatchErr != nil {
				s.logError(ctx, "route dispatch failed", map[string]any{
					"route_id":   route.ID,
					"event_type": event.Type,
					"error":      dispatchErr.Error(),
				})
			}
		}()
	}
	wg.Wait()

	return receipt, nil
}

// dispatchRoute builds the payload, creates the durable attempt record and
// runs the first delivery attempt. It returns the attempt record ID.
func (s *Service) dispatchRoute(ctx context.Context, route Route, event Event) (string, error) {
	payload, err := s.buildPayload(ctx, route, event)
	if err != nil {
		return "", err
	}

	attempt := DeliveryAttempt{
		ID:            uuid.NewString(),
		RouteID:       route.ID,
		ProjectID:     event.ProjectID,
		EventType:     event.Type,
		DeliverableID: eventDeliverableID(event),
		Status:        DeliveryStatusPending,
		AttemptNumber: 0,
		Payload:       payload,
	}
	payload["deliveryId"] = attempt.ID
	if attempt.DeliverableID != "" {
		payload["deliverableId"] = attempt.DeliverableID
	}

	created, err := s.deliveryStore.Create(ctx, attempt)
	if err != nil {
		return "", err
	}

	return created.ID, s.runAttempt(ctx, route, created, payload)
}

// eventDeliverableID pulls the deliverable reference off the event payload.
// Deliverable lifecycle events carry it, everything else leaves it empty.
func eventDeliverableID(event Event) string {
	id, _ := event.Payload["deliverableId"].(string)
	return strings.TrimSpace(id)
}

// runAttempt performs one delivery attempt against the route destination and
// records the outcome. Shared by the initial dispatch and the retry sweep.
func (s *Service) runAttempt(ctx context.Context, route Route, attempt DeliveryAttempt, payload map[string]any) error {
	attemptNumber := attempt.AttemptNumber + 1

	destination, err := s.resolveDestination(route.Destination)
	if err != nil {
		markErr := s.deliveryStore.MarkFailed(ctx, attempt.ID, attemptNumber, 0, err.Error())
		return joinErrors(err, markErr)
	}

	deliverCtx, cancel := context.WithTimeout(ctx, s.config.WebhookTimeout)
	defer cancel()

	result, deliverErr := destination.Deliver(deliverCtx, route.DestinationConfig, payload)
	now := s.clock()

	responseCode := 0
	responseBody := ""
	if result != nil {
		responseCode = result.ResponseCode
		responseBody = s.truncateBody(result.ResponseBody)
	}

	if deliverErr == nil {
		return s.deliveryStore.MarkDelivered(ctx, attempt.ID, attemptNumber, responseCode, responseBody, now)
	}

	if IsSecurityRejection(deliverErr) {
		s.logWarn(ctx, "delivery blocked by outbound url guard", map[string]any{
			"route_id":    route.ID,
			"delivery_id": attempt.ID,
			"destination": string(route.Destination),
			"error":       deliverErr.Error(),
		})
		markErr := s.deliveryStore.MarkFailed(ctx, attempt.ID, attemptNumber, responseCode, deliverErr.Error())
		return joinErrors(deliverErr, markErr)
	}

	policy := route.RetryPolicy
	if policy.BackoffType == "" {
		policy = DefaultRetryPolicy()
	}

	if !IsRetryable(deliverErr) || attemptNumber > policy.MaxRetries {
		markErr := s.deliveryStore.MarkFailed(ctx, attempt.ID, attemptNumber, responseCode, deliverErr.Error())
		return joinErrors(deliverErr, markErr)
	}

	nextRetryAt := now.Add(policy.Delay(attemptNumber))
	markErr := s.deliveryStore.MarkRetrying(ctx, attempt.ID, attemptNumber, responseCode, deliverErr.Error(), nextRetryAt)
	return joinErrors(deliverErr, markErr)
}

// buildPayload renders the route payload: a custom template when the route
// carries one, otherwise the default envelope over the field-mapped event
// payload.
func (s *Service) buildPayload(ctx context.Context, route Route, event Event) (map[string]any, error) {
	if strings.TrimSpace(route.PayloadTemplate) != "" {
		if s.templateRenderer == nil {
			return nil, errNotConfigured("template renderer")
		}
		rendered, err := s.templateRenderer.Render(route.PayloadTemplate, event.Payload)
		if err != nil {
			return nil, newDispatchError(
				fmt.Sprintf("payload template render failed: %v", err),
				goerrors.CategoryBadInput, DispatchErrorTemplate)
		}
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(rendered), &payload); err != nil {
			return nil, newDispatchError(
				fmt.Sprintf("payload template produced invalid JSON: %v", err),
				goerrors.CategoryBadInput, DispatchErrorTemplate)
		}
		return payload, nil
	}

	body := copyAnyMap(event.Payload)
	if len(route.FieldMapping) > 0 && s.fieldMapper != nil {
		mapped, warnings := s.fieldMapper.Apply(body, route.FieldMapping)
		for _, warning := range warnings {
			s.logWarn(ctx, "field mapping entry skipped", map[string]any{
				"route_id": route.ID,
				"detail":   warning,
			})
		}
		body = mapped
	}

	body["event"] = event.Type
	body["timestamp"] = event.OccurredAt.UTC().Format(time.RFC3339)
	return body, nil
}

// TestRoute exercises a route configuration end to end without creating
// delivery records. Webhook and email routes perform a real delivery with
// the sample payload, storage and chat routes verify connectivity only.
func (s *Service) TestRoute(ctx context.Context, req TestRouteRequest) (TestRouteResult, error) {
	startedAt := s.clock()
	fields := map[string]any{"route_id": req.RouteID}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "test_route", err, fields) }()

	if s.routeStore == nil {
		err = errNotConfigured("route store")
		return TestRouteResult{}, s.mapError(err)
	}
	route, getErr := s.routeStore.Get(ctx, req.RouteID)
	if getErr != nil {
		err = getErr
		return TestRouteResult{}, s.mapError(getErr)
	}

	destination, resolveErr := s.resolveDestination(route.Destination)
	if resolveErr != nil {
		err = resolveErr
		return TestRouteResult{}, s.mapError(resolveErr)
	}

	testCtx, cancel := context.WithTimeout(ctx, s.config.WebhookTimeout)
	defer cancel()

	began := s.clock()
	switch route.Destination {
	case DestinationStorage, DestinationSlack:
		if checkErr := destination.CheckConfig(testCtx, route.DestinationConfig); checkErr != nil {
			return TestRouteResult{OK: false, Detail: checkErr.Error(), Duration: s.clock().Sub(began)}, nil
		}
		return TestRouteResult{OK: true, Duration: s.clock().Sub(began)}, nil
	}

	sample := req.SamplePayload
	if sample == nil {
		sample = map[string]any{"test": true}
	}
	event := Event{
		Type:       route.TriggerEvent,
		OccurredAt: s.clock(),
		Payload:    sample,
	}
	payload, buildErr := s.buildPayload(ctx, route, event)
	if buildErr != nil {
		err = buildErr
		return TestRouteResult{}, s.mapError(buildErr)
	}

	result, deliverErr := destination.Deliver(testCtx, route.DestinationConfig, payload)
	duration := s.clock().Sub(began)
	if deliverErr != nil {
		return TestRouteResult{OK: false, Detail: deliverErr.Error(), Duration: duration}, nil
	}
	out := TestRouteResult{OK: true, Duration: duration}
	if result != nil {
		out.ResponseCode = result.ResponseCode
	}
	return out, nil
}

func (s *Service) resolveDestination(kind DestinationKind) (Destination, error) {
	if s.destinationRegistry == nil {
		return nil, errNotConfigured("destination registry")
	}
	destination, err := s.destinationRegistry.Resolve(kind)
	if err != nil {
		return nil, err
	}
	if destination == nil {
		return nil, fmt.Errorf("core: destination %q is not registered", kind)
	}
	return destination, nil
}

func (s *Service) truncateBody(body string) string {
	limit := s.config.MaxResponseBody
	if limit <= 0 || len(body) <= limit {
		return body
	}
	return body[:limit]
}

func errNotConfigured(component string) error {
	return fmt.Errorf("core: %s is not configured", component)
}

func joinErrors(primary, secondary error) error {
	if primary == nil {
		return secondary
	}
	if secondary == nil {
		return primary
	}
	return fmt.Errorf("%w; %v", primary, secondary)
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
