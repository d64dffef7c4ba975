package sqlstore

import (
	"strings"

	"github.com/cavendo/go-dispatch/core"
)

func routeToRecord(route core.Route) *routeRecord {
	record := &routeRecord{
		ID:                route.ID,
		Scope:             string(route.Scope),
		Name:              route.Name,
		TriggerEvent:      route.TriggerEvent,
		TriggerConditions: conditionsToMap(route.TriggerConditions),
		Destination:       string(route.Destination),
		DestinationConfig: copyAnyMap(route.DestinationConfig),
		FieldMapping:      copyStringMap(route.FieldMapping),
		PayloadTemplate:   route.PayloadTemplate,
		RetryPolicy:       retryPolicyToMap(route.RetryPolicy),
		Enabled:           route.Enabled,
		CreatedAt:         route.CreatedAt,
		UpdatedAt:         route.UpdatedAt,
	}
	if trimmed := strings.TrimSpace(route.ProjectID); trimmed != "" {
		record.ProjectID = &trimmed
	}
	return record
}

func recordToRoute(record *routeRecord) core.Route {
	route := core.Route{
		ID:                record.ID,
		Scope:             core.RouteScope(record.Scope),
		Name:              record.Name,
		TriggerEvent:      record.TriggerEvent,
		TriggerConditions: mapToConditions(record.TriggerConditions),
		Destination:       core.DestinationKind(record.Destination),
		DestinationConfig: copyAnyMap(record.DestinationConfig),
		FieldMapping:      copyStringMap(record.FieldMapping),
		PayloadTemplate:   record.PayloadTemplate,
		RetryPolicy:       mapToRetryPolicy(record.RetryPolicy),
		Enabled:           record.Enabled,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
	if record.ProjectID != nil {
		route.ProjectID = strings.TrimSpace(*record.ProjectID)
	}
	return route
}

func attemptToRecord(attempt core.DeliveryAttempt) *deliveryAttemptRecord {
	record := &deliveryAttemptRecord{
		ID:            attempt.ID,
		RouteID:       attempt.RouteID,
		EventType:     attempt.EventType,
		Status:        string(attempt.Status),
		AttemptNumber: attempt.AttemptNumber,
		Payload:       copyAnyMap(attempt.Payload),
		ResponseCode:  attempt.ResponseCode,
		ResponseBody:  attempt.ResponseBody,
		LastError:     attempt.LastError,
		NextRetryAt:   attempt.NextRetryAt,
		DeliveredAt:   attempt.DeliveredAt,
		CreatedAt:     attempt.CreatedAt,
		UpdatedAt:     attempt.UpdatedAt,
	}
	if trimmed := strings.TrimSpace(attempt.ProjectID); trimmed != "" {
		record.ProjectID = &trimmed
	}
	if trimmed := strings.TrimSpace(attempt.DeliverableID); trimmed != "" {
		record.DeliverableID = &trimmed
	}
	return record
}

func recordToAttempt(record *deliveryAttemptRecord) core.DeliveryAttempt {
	attempt := core.DeliveryAttempt{
		ID:            record.ID,
		RouteID:       record.RouteID,
		EventType:     record.EventType,
		Status:        core.DeliveryStatus(record.Status),
		AttemptNumber: record.AttemptNumber,
		Payload:       copyAnyMap(record.Payload),
		ResponseCode:  record.ResponseCode,
		ResponseBody:  record.ResponseBody,
		LastError:     record.LastError,
		NextRetryAt:   record.NextRetryAt,
		DeliveredAt:   record.DeliveredAt,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if record.ProjectID != nil {
		attempt.ProjectID = strings.TrimSpace(*record.ProjectID)
	}
	if record.DeliverableID != nil {
		attempt.DeliverableID = strings.TrimSpace(*record.DeliverableID)
	}
	return attempt
}

func webhookToRecord(webhook core.AgentWebhook) *agentWebhookRecord {
	return &agentWebhookRecord{
		ID:            webhook.ID,
		AgentID:       webhook.AgentID,
		URL:           webhook.URL,
		Events:        append([]string{}, webhook.Events...),
		Secret:        webhook.Secret,
		SecretVersion: webhook.SecretVersion,
		Enabled:       webhook.Enabled,
		CreatedAt:     webhook.CreatedAt,
		UpdatedAt:     webhook.UpdatedAt,
	}
}

func recordToWebhook(record *agentWebhookRecord) core.AgentWebhook {
	return core.AgentWebhook{
		ID:            record.ID,
		AgentID:       record.AgentID,
		URL:           record.URL,
		Events:        append([]string(nil), record.Events...),
		Secret:        record.Secret,
		SecretVersion: record.SecretVersion,
		Enabled:       record.Enabled,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func agentDeliveryToRecord(delivery core.AgentWebhookDelivery) *agentWebhookDeliveryRecord {
	return &agentWebhookDeliveryRecord{
		ID:            delivery.ID,
		WebhookID:     delivery.WebhookID,
		AgentID:       delivery.AgentID,
		EventType:     delivery.EventType,
		Status:        string(delivery.Status),
		AttemptNumber: delivery.AttemptNumber,
		ResponseCode:  delivery.ResponseCode,
		LastError:     delivery.LastError,
		NextRetryAt:   delivery.NextRetryAt,
		CreatedAt:     delivery.CreatedAt,
		UpdatedAt:     delivery.UpdatedAt,
	}
}

func recordToAgentDelivery(record *agentWebhookDeliveryRecord) core.AgentWebhookDelivery {
	return core.AgentWebhookDelivery{
		ID:            record.ID,
		WebhookID:     record.WebhookID,
		AgentID:       record.AgentID,
		EventType:     record.EventType,
		Status:        core.DeliveryStatus(record.Status),
		AttemptNumber: record.AttemptNumber,
		ResponseCode:  record.ResponseCode,
		LastError:     record.LastError,
		NextRetryAt:   record.NextRetryAt,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func conditionsToMap(conditions core.TriggerConditions) map[string]any {
	out := map[string]any{}
	if len(conditions.TagsIncludeAny) > 0 {
		out["tags_include_any"] = append([]string(nil), conditions.TagsIncludeAny...)
	}
	if len(conditions.TagsIncludeAll) > 0 {
		out["tags_include_all"] = append([]string(nil), conditions.TagsIncludeAll...)
	}
	if len(conditions.Metadata) > 0 {
		metadata := map[string]any{}
		for key, value := range conditions.Metadata {
			metadata[key] = value
		}
		out["metadata"] = metadata
	}
	return out
}

func mapToConditions(raw map[string]any) core.TriggerConditions {
	conditions := core.TriggerConditions{}
	conditions.TagsIncludeAny = toStringSlice(raw["tags_include_any"])
	conditions.TagsIncludeAll = toStringSlice(raw["tags_include_all"])
	if metadata, ok := raw["metadata"].(map[string]any); ok && len(metadata) > 0 {
		conditions.Metadata = map[string]string{}
		for key, value := range metadata {
			if s, ok := value.(string); ok {
				conditions.Metadata[key] = s
			}
		}
	}
	return conditions
}

func retryPolicyToMap(policy core.RetryPolicy) map[string]any {
	return map[string]any{
		"max_retries":      policy.MaxRetries,
		"backoff_type":     string(policy.BackoffType),
		"initial_delay_ms": policy.InitialDelayMs,
	}
}

func mapToRetryPolicy(raw map[string]any) core.RetryPolicy {
	policy := core.DefaultRetryPolicy()
	if len(raw) == 0 {
		return policy
	}
	if value, ok := toInt(raw["max_retries"]); ok {
		policy.MaxRetries = value
	}
	if value, ok := raw["backoff_type"].(string); ok && value != "" {
		policy.BackoffType = core.BackoffType(value)
	}
	if value, ok := toInt(raw["initial_delay_ms"]); ok {
		policy.InitialDelayMs = value
	}
	return policy
}

func toStringSlice(raw any) []string {
	switch values := raw.(type) {
	case []string:
		return append([]string(nil), values...)
	case []any:
		out := make([]string, 0, len(values))
		for _, value := range values {
			if s, ok := value.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}

// toInt tolerates the numeric types jsonb scanning can produce.
func toInt(raw any) (int, bool) {
	switch value := raw.(type) {
	case int:
		return value, true
	case int32:
		return int(value), true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	}
	return 0, false
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
