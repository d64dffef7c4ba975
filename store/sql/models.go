package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type routeRecord struct {
	bun.BaseModel `bun:"table:delivery_routes,alias:dr"`

	ID                string            `bun:"id,pk"`
	Scope             string            `bun:"scope,notnull"`
	ProjectID         *string           `bun:"project_id"`
	Name              string            `bun:"name,notnull"`
	TriggerEvent      string            `bun:"trigger_event,notnull"`
	TriggerConditions map[string]any    `bun:"trigger_conditions,type:jsonb,notnull"`
	Destination       string            `bun:"destination,notnull"`
	DestinationConfig map[string]any    `bun:"destination_config,type:jsonb,notnull"`
	FieldMapping      map[string]string `bun:"field_mapping,type:jsonb,notnull"`
	PayloadTemplate   string            `bun:"payload_template"`
	RetryPolicy       map[string]any    `bun:"retry_policy,type:jsonb,notnull"`
	Enabled           bool              `bun:"enabled,notnull"`
	CreatedAt         time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt         *time.Time        `bun:"deleted_at,soft_delete"`
}

type deliveryAttemptRecord struct {
	bun.BaseModel `bun:"table:delivery_attempts,alias:da"`

	ID            string         `bun:"id,pk"`
	RouteID       string         `bun:"route_id,notnull"`
	ProjectID     *string        `bun:"project_id"`
	EventType     string         `bun:"event_type,notnull"`
	DeliverableID *string        `bun:"deliverable_id"`
	Status        string         `bun:"status,notnull"`
	AttemptNumber int            `bun:"attempt_number,notnull"`
	Payload       map[string]any `bun:"payload,type:jsonb,notnull"`
	ResponseCode  int            `bun:"response_code,notnull"`
	ResponseBody  string         `bun:"response_body,notnull"`
	LastError     string         `bun:"last_error,notnull"`
	NextRetryAt   *time.Time     `bun:"next_retry_at,nullzero"`
	DeliveredAt   *time.Time     `bun:"delivered_at,nullzero"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type agentWebhookRecord struct {
	bun.BaseModel `bun:"table:agent_webhooks,alias:aw"`

	ID            string     `bun:"id,pk"`
	AgentID       string     `bun:"agent_id,notnull"`
	URL           string     `bun:"url,notnull"`
	Events        []string   `bun:"events,type:jsonb,notnull"`
	Secret        string     `bun:"secret,notnull"`
	SecretVersion int        `bun:"secret_key_version,notnull"`
	Enabled       bool       `bun:"enabled,notnull"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete"`
}

type agentWebhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:agent_webhook_deliveries,alias:awd"`

	ID            string     `bun:"id,pk"`
	WebhookID     string     `bun:"webhook_id,notnull"`
	AgentID       string     `bun:"agent_id,notnull"`
	EventType     string     `bun:"event_type,notnull"`
	Status        string     `bun:"status,notnull"`
	AttemptNumber int        `bun:"attempt_number,notnull"`
	ResponseCode  int        `bun:"response_code,notnull"`
	LastError     string     `bun:"last_error,notnull"`
	NextRetryAt   *time.Time `bun:"next_retry_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
