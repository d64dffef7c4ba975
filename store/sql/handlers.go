package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// stringIDHandlers builds repository handlers for records that store their
// UUID primary key as a string column named "id".
func stringIDHandlers[T any](newRecord func() *T, idField func(*T) *string) repository.ModelHandlers[*T] {
	return repository.ModelHandlers[*T]{
		NewRecord: newRecord,
		GetID: func(record *T) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(*idField(record))
		},
		SetID: func(record *T, id uuid.UUID) {
			if record != nil {
				*idField(record) = id.String()
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *T) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(*idField(record))
		},
	}
}

func routeHandlers() repository.ModelHandlers[*routeRecord] {
	return stringIDHandlers(
		func() *routeRecord { return &routeRecord{} },
		func(r *routeRecord) *string { return &r.ID },
	)
}

func deliveryAttemptHandlers() repository.ModelHandlers[*deliveryAttemptRecord] {
	return stringIDHandlers(
		func() *deliveryAttemptRecord { return &deliveryAttemptRecord{} },
		func(r *deliveryAttemptRecord) *string { return &r.ID },
	)
}

func agentWebhookHandlers() repository.ModelHandlers[*agentWebhookRecord] {
	return stringIDHandlers(
		func() *agentWebhookRecord { return &agentWebhookRecord{} },
		func(r *agentWebhookRecord) *string { return &r.ID },
	)
}

func agentWebhookDeliveryHandlers() repository.ModelHandlers[*agentWebhookDeliveryRecord] {
	return stringIDHandlers(
		func() *agentWebhookDeliveryRecord { return &agentWebhookDeliveryRecord{} },
		func(r *agentWebhookDeliveryRecord) *string { return &r.ID },
	)
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
