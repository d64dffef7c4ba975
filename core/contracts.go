package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger aliases keep callers on the go-logger contracts without importing
// the library directly.
type (
	Logger         = glog.Logger
	LoggerProvider = glog.LoggerProvider
	FieldsLogger   = glog.FieldsLogger
)

// RouteStore persists delivery routes.
type RouteStore interface {
	Create(ctx context.Context, route Route) (Route, error)
	Update(ctx context.Context, route Route) (Route, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Route, error)
	List(ctx context.Context, filter RouteFilter) ([]Route, error)
	// FindCandidates returns enabled routes whose trigger event matches,
	// scoped to the project plus global routes. A nil project ID restricts
	// the result to global routes.
	FindCandidates(ctx context.Context, eventType string, projectID string) ([]Route, error)
}

// DeliveryStore persists delivery attempt records.
type DeliveryStore interface {
	Create(ctx context.Context, attempt DeliveryAttempt) (DeliveryAttempt, error)
	Get(ctx context.Context, id string) (DeliveryAttempt, error)
	List(ctx context.Context, filter DeliveryFilter) ([]DeliveryAttempt, error)
	MarkDelivered(ctx context.Context, id string, attemptNumber int, responseCode int, responseBody string, at time.Time) error
	MarkRetrying(ctx context.Context, id string, attemptNumber int, responseCode int, lastError string, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, id string, attemptNumber int, responseCode int, lastError string) error
	// ClaimDueRetries selects retrying records whose next retry time has
	// passed and clears that time in the same statement. A record claimed
	// once will not appear in a concurrent claim.
	ClaimDueRetries(ctx context.Context, limit int, now time.Time) ([]DeliveryAttempt, error)
}

// AgentWebhookStore persists inline webhook targets.
type AgentWebhookStore interface {
	Create(ctx context.Context, webhook AgentWebhook) (AgentWebhook, error)
	Update(ctx context.Context, webhook AgentWebhook) (AgentWebhook, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (AgentWebhook, error)
	ListByAgent(ctx context.Context, agentID string) ([]AgentWebhook, error)
}

// AgentWebhookDeliveryStore persists inline webhook dispatch records.
type AgentWebhookDeliveryStore interface {
	Create(ctx context.Context, delivery AgentWebhookDelivery) (AgentWebhookDelivery, error)
	Get(ctx context.Context, id string) (AgentWebhookDelivery, error)
	ListByWebhook(ctx context.Context, webhookID string, limit int) ([]AgentWebhookDelivery, error)
	MarkDelivered(ctx context.Context, id string, attemptNumber int, responseCode int) error
	MarkRetrying(ctx context.Context, id string, attemptNumber int, lastError string, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, id string, attemptNumber int, lastError string) error
	ClaimDueRetries(ctx context.Context, limit int, now time.Time) ([]AgentWebhookDelivery, error)
}

// RouteFilter narrows ListRoutes.
type RouteFilter struct {
	ProjectID    string
	Scope        RouteScope
	TriggerEvent string
	EnabledOnly  bool
	Limit        int
	Offset       int
}

// DeliveryFilter narrows ListDeliveries.
type DeliveryFilter struct {
	RouteID   string
	ProjectID string
	Status    DeliveryStatus
	EventType string
	Limit     int
	Offset    int
}

// DeliveryResult is what a destination reports back for one attempt.
type DeliveryResult struct {
	ResponseCode int
	ResponseBody string
	Duration     time.Duration
}

// Destination delivers a rendered payload to one channel kind.
type Destination interface {
	Kind() DestinationKind
	// Deliver sends the payload. A nil error means the attempt succeeded.
	// Errors are classified through the dispatch error taxonomy to decide
	// whether a retry is scheduled.
	Deliver(ctx context.Context, config map[string]any, payload map[string]any) (*DeliveryResult, error)
	// CheckConfig verifies connectivity and configuration without producing
	// a durable delivery. Used by route tests.
	CheckConfig(ctx context.Context, config map[string]any) error
}

// DestinationRegistry resolves a destination by kind.
type DestinationRegistry interface {
	Resolve(kind DestinationKind) (Destination, error)
}

// URLValidator rejects outbound URLs that resolve to private or otherwise
// blocked address space.
type URLValidator interface {
	ValidateOutboundURL(ctx context.Context, rawURL string) error
}

// ProviderEndpointValidator guards operator-supplied provider base URLs.
// URL validators that also implement it get custom endpoint checks on
// route configuration.
type ProviderEndpointValidator interface {
	ValidateProviderBaseURL(ctx context.Context, rawURL string) error
}

// PayloadSigner produces and verifies webhook signature headers.
type PayloadSigner interface {
	SignatureHeaders(secret string, timestamp time.Time, body []byte) map[string]string
	Verify(secret string, timestamp string, body []byte, signature string) bool
}

// EncryptedValue is a ciphertext column value with its key version.
type EncryptedValue struct {
	Ciphertext string
	IV         string
	KeyVersion int
}

// Keyring encrypts and decrypts stored secrets under versioned keys.
// Decrypt never returns an error for bad input; it reports nil plaintext so
// a corrupt column cannot take down a read path.
type Keyring interface {
	Encrypt(plaintext string) (EncryptedValue, error)
	Decrypt(value EncryptedValue) []byte
	CurrentVersion() int
}

// EncryptedColumnRef locates one encrypted value for the health scan.
// Error carries the failure detail when the value shows up in a report's
// failure list.
type EncryptedColumnRef struct {
	Table  string
	RowID  string
	Column string
	Value  EncryptedValue
	Error  string
}

// EncryptedValueSource streams every encrypted column value the engine owns.
type EncryptedValueSource interface {
	EncryptedValues(ctx context.Context) ([]EncryptedColumnRef, error)
}

// EncryptionHealthReport summarizes a keyring scan over stored ciphertexts.
type EncryptionHealthReport struct {
	OK             bool
	Scanned        int
	Failed         int
	Truncated      bool
	Failures       []EncryptedColumnRef
	KeyVersions    map[int]int
	CurrentVersion int
}

// FieldMapper copies dotted source paths into dotted destination paths.
type FieldMapper interface {
	Apply(payload map[string]any, mapping map[string]string) (map[string]any, []string)
}

// TemplateRenderer renders custom payload templates against event data.
type TemplateRenderer interface {
	Render(template string, data map[string]any) (string, error)
}

// LoopGuard suppresses feedback loops between agent events and webhook
// dispatches. State is process local.
type LoopGuard interface {
	Allow(agentID, eventType string, now time.Time) bool
}

// Enricher lets the host refresh a stale payload before a retry is
// re-dispatched. Returning the input unchanged is valid.
type Enricher interface {
	Enrich(ctx context.Context, attempt DeliveryAttempt) (map[string]any, error)
}

// EmailProvider sends rendered email notifications.
type EmailProvider interface {
	Send(ctx context.Context, msg EmailMessage) error
	Check(ctx context.Context) error
}

// EmailMessage is the provider-facing email shape.
type EmailMessage struct {
	To      []string
	Subject string
	Body    string
}

// StorageProvider writes deliverable objects.
type StorageProvider interface {
	Put(ctx context.Context, key string, contentType string, body []byte) error
	Check(ctx context.Context) error
}

// ChatProvider posts chat notifications, Slack-compatible payloads.
type ChatProvider interface {
	Post(ctx context.Context, webhookURL string, payload map[string]any) error
}

// SweepStats summarizes one retry sweep pass.
type SweepStats struct {
	Claimed        int
	Delivered      int
	Retried        int
	Failed         int
	AgentClaimed   int
	AgentDelivered int
	AgentRetried   int
	AgentFailed    int
}

// MetricsRecorder receives operation counters and durations.
type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// StoreProvider bundles the persistence stores the service needs.
type StoreProvider interface {
	RouteStore() RouteStore
	DeliveryStore() DeliveryStore
	AgentWebhookStore() AgentWebhookStore
	AgentWebhookDeliveryStore() AgentWebhookDeliveryStore
	EncryptedValueSource() EncryptedValueSource
}

// JobExecutionMessage is the queue payload for background work, the retry
// sweep included.
type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// CreateRouteRequest creates a new route.
type CreateRouteRequest struct {
	Scope             RouteScope
	ProjectID         string
	Name              string
	TriggerEvent      string
	TriggerConditions TriggerConditions
	Destination       DestinationKind
	DestinationConfig map[string]any
	FieldMapping      map[string]string
	PayloadTemplate   string
	RetryPolicy       *RetryPolicy
	Enabled           *bool
}

// UpdateRouteRequest patches an existing route. Nil fields are untouched.
type UpdateRouteRequest struct {
	ID                string
	Name              *string
	TriggerEvent      *string
	TriggerConditions *TriggerConditions
	Destination       *DestinationKind
	DestinationConfig map[string]any
	FieldMapping      map[string]string
	PayloadTemplate   *string
	RetryPolicy       *RetryPolicy
	Enabled           *bool
}

// TestRouteRequest exercises a route configuration without durable records.
type TestRouteRequest struct {
	RouteID       string
	SamplePayload map[string]any
}

// TestRouteResult reports the outcome of a route test.
type TestRouteResult struct {
	OK           bool
	ResponseCode int
	Detail       string
	Duration     time.Duration
}

// DispatchReceipt reports what a dispatch fan-out produced.
type DispatchReceipt struct {
	Matched    int
	Dispatched []string
	Suppressed int
}

// CreateAgentWebhookRequest registers an inline webhook for an agent.
type CreateAgentWebhookRequest struct {
	AgentID string
	URL     string
	Events  []string
	Secret  string
	Enabled *bool
}

// UpdateAgentWebhookRequest patches an inline webhook. Nil fields are
// untouched.
type UpdateAgentWebhookRequest struct {
	ID      string
	URL     *string
	Events  []string
	Secret  *string
	Enabled *bool
}
