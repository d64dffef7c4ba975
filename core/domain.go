package core

import (
	"fmt"
	"math"
	"time"
)

// DeliveryStatus tracks the lifecycle of a delivery attempt record.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusRetrying  DeliveryStatus = "retrying"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string {
	return string(s)
}

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

var allowedDeliveryTransitions = map[DeliveryStatus]map[DeliveryStatus]struct{}{
	DeliveryStatusPending: {
		DeliveryStatusRetrying:  {},
		DeliveryStatusDelivered: {},
		DeliveryStatusFailed:    {},
	},
	DeliveryStatusRetrying: {
		DeliveryStatusRetrying:  {},
		DeliveryStatusDelivered: {},
		DeliveryStatusFailed:    {},
	},
	DeliveryStatusDelivered: {},
	DeliveryStatusFailed:    {},
}

// TransitionTo validates the requested status change. Terminal states never
// transition.
func (s DeliveryStatus) TransitionTo(next DeliveryStatus) error {
	allowed, ok := allowedDeliveryTransitions[s]
	if !ok {
		return fmt.Errorf("core: unknown delivery status %q", s)
	}
	if _, ok := allowed[next]; !ok {
		return fmt.Errorf("core: invalid delivery transition %s -> %s", s, next)
	}
	return nil
}

// RouteScope determines which events a route can see.
type RouteScope string

const (
	RouteScopeGlobal  RouteScope = "global"
	RouteScopeProject RouteScope = "project"
)

func (s RouteScope) Valid() bool {
	return s == RouteScopeGlobal || s == RouteScopeProject
}

// DestinationKind names a delivery channel.
type DestinationKind string

const (
	DestinationWebhook DestinationKind = "webhook"
	DestinationEmail   DestinationKind = "email"
	DestinationStorage DestinationKind = "storage"
	DestinationSlack   DestinationKind = "slack"
)

func (k DestinationKind) Valid() bool {
	switch k {
	case DestinationWebhook, DestinationEmail, DestinationStorage, DestinationSlack:
		return true
	}
	return false
}

// BackoffType selects the delay curve between retry attempts.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffLinear      BackoffType = "linear"
	BackoffExponential BackoffType = "exponential"
)

func (b BackoffType) Valid() bool {
	switch b {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		return true
	}
	return false
}

// RetryPolicy controls how many times a failed delivery is retried and how
// long to wait between attempts. MaxRetries counts retries after the first
// attempt, so a policy with MaxRetries 3 allows four attempts total.
type RetryPolicy struct {
	MaxRetries     int         `json:"max_retries"`
	BackoffType    BackoffType `json:"backoff_type"`
	InitialDelayMs int         `json:"initial_delay_ms"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		BackoffType:    BackoffExponential,
		InitialDelayMs: 1000,
	}
}

// Delay computes the wait before the next attempt given the 1-indexed
// number of the attempt that just failed.
func (p RetryPolicy) Delay(failedAttempt int) time.Duration {
	if failedAttempt < 1 {
		failedAttempt = 1
	}
	base := time.Duration(p.InitialDelayMs) * time.Millisecond
	switch p.BackoffType {
	case BackoffLinear:
		return base * time.Duration(failedAttempt+1)
	case BackoffExponential:
		return base * time.Duration(math.Pow(2, float64(failedAttempt)))
	default:
		return base
	}
}

func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("core: retry policy max retries must not be negative")
	}
	if p.InitialDelayMs < 0 {
		return fmt.Errorf("core: retry policy initial delay must not be negative")
	}
	if !p.BackoffType.Valid() {
		return fmt.Errorf("core: unknown backoff type %q", p.BackoffType)
	}
	return nil
}

// TriggerConditions narrows which events a route fires for beyond the
// trigger event name. Empty conditions match everything.
type TriggerConditions struct {
	TagsIncludeAny []string          `json:"tags_include_any,omitempty"`
	TagsIncludeAll []string          `json:"tags_include_all,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Route binds a trigger event to a destination.
type Route struct {
	ID                string
	Scope             RouteScope
	ProjectID         string
	Name              string
	TriggerEvent      string
	TriggerConditions TriggerConditions
	Destination       DestinationKind
	DestinationConfig map[string]any
	FieldMapping      map[string]string
	PayloadTemplate   string
	RetryPolicy       RetryPolicy
	Enabled           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DeliveryAttempt is the durable record of one route delivery, updated in
// place as retries run.
type DeliveryAttempt struct {
	ID            string
	RouteID       string
	ProjectID     string
	EventType     string
	DeliverableID string
	Status        DeliveryStatus
	AttemptNumber int
	Payload       map[string]any
	ResponseCode  int
	ResponseBody  string
	LastError     string
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeliveredAt   *time.Time
}

// AgentWebhook is an inline webhook target attached directly to an agent,
// outside the route table.
type AgentWebhook struct {
	ID            string
	AgentID       string
	URL           string
	Events        []string
	Secret        string
	SecretVersion int
	Enabled       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WantsEvent reports whether the webhook subscribes to the event type. An
// empty event list subscribes to everything.
func (w AgentWebhook) WantsEvent(eventType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, candidate := range w.Events {
		if candidate == eventType {
			return true
		}
	}
	return false
}

// AgentWebhookDelivery records one inline webhook dispatch.
type AgentWebhookDelivery struct {
	ID            string
	WebhookID     string
	AgentID       string
	EventType     string
	Status        DeliveryStatus
	AttemptNumber int
	ResponseCode  int
	LastError     string
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event is the unit of work entering the dispatcher.
type Event struct {
	Type       string
	ProjectID  string
	AgentID    string
	Tags       []string
	Metadata   map[string]string
	Payload    map[string]any
	OccurredAt time.Time
}

// Event vocabulary emitted by the surrounding system. Routes can trigger on
// any string, these are the well-known names.
const (
	EventTaskAssigned                 = "task.assigned"
	EventTaskUpdated                  = "task.updated"
	EventTaskClaimed                  = "task.claimed"
	EventTaskProgressUpdated          = "task.progress_updated"
	EventDeliverableApproved          = "deliverable.approved"
	EventDeliverableRevisionRequested = "deliverable.revision_requested"
	EventDeliverableRejected          = "deliverable.rejected"
	EventSprintStarted                = "sprint.started"
	EventProjectKnowledgeUpdated      = "project.knowledge_updated"
	EventBriefingGenerated            = "briefing.generated"
	EventAgentRegistered              = "agent.registered"
)

// GlobalOnlyEvents have no project affinity. Only global routes match them.
var GlobalOnlyEvents = map[string]struct{}{
	EventAgentRegistered: {},
}
